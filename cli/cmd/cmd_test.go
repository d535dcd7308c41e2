package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/pulse/archive"
	"github.com/justapithecus/pulse/cli/config"
	"github.com/justapithecus/pulse/iox"
	"github.com/justapithecus/pulse/log"
	"github.com/justapithecus/pulse/notify"
	"github.com/justapithecus/pulse/registry"
	"github.com/justapithecus/pulse/runtime"
	"github.com/justapithecus/pulse/types"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func testApp(out, errOut *bytes.Buffer) *cli.App {
	return &cli.App{
		Name:           "pulse",
		Writer:         out,
		ErrWriter:      errOut,
		ExitErrHandler: func(*cli.Context, error) {},
		Commands: []*cli.Command{
			ShowCommand(),
			RefreshCommand(),
			WatchCommand(),
			ViewsCommand(),
			HistoryCommand(),
			VersionCommand("abc123"),
		},
	}
}

func flagNames(flags []cli.Flag) map[string]bool {
	names := make(map[string]bool)
	for _, f := range flags {
		names[f.Names()[0]] = true
	}
	return names
}

func TestRunFlags_IncludesSelectionAndOutput(t *testing.T) {
	names := flagNames(RunFlags())
	for _, want := range []string{"config", "verbose", "only", "except", "all", "timeout", "strict", "archive", "notify", "format", "no-color"} {
		if !names[want] {
			t.Errorf("RunFlags missing --%s", want)
		}
	}
	if names["tui"] {
		t.Error("RunFlags should not include --tui; show adds it")
	}
}

func TestShowCommand_HasTUIFlags(t *testing.T) {
	names := flagNames(ShowCommand().Flags)
	if !names["tui"] || !names["interval"] {
		t.Errorf("show flags = %v, want tui and interval", names)
	}
}

func TestResolveTimeout(t *testing.T) {
	tests := []struct {
		name       string
		flag       time.Duration
		configured time.Duration
		want       time.Duration
	}{
		{"flag wins", 2 * time.Second, 5 * time.Second, 2 * time.Second},
		{"config when no flag", 0, 5 * time.Second, 5 * time.Second},
		{"default", 0, 0, config.DefaultTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resolveTimeout(tt.flag, tt.configured); got != tt.want {
				t.Errorf("resolveTimeout(%v, %v) = %v, want %v", tt.flag, tt.configured, got, tt.want)
			}
		})
	}
}

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg, _, err := loadRegistry(writeConfig(t, "views:\n  disabled: [newrelic_incidents]\n"))
	if err != nil {
		t.Fatalf("loadRegistry: %v", err)
	}
	return reg
}

func TestSelectViews(t *testing.T) {
	reg := testRegistry(t)

	tests := []struct {
		name  string
		opts  dashboardOptions
		views config.ViewsConfig
		want  []types.ViewID
	}{
		{
			name: "default is enabled views",
			want: []types.ViewID{"jira", "gh_prs", "gh_runs", "slack_unread", "oncall", "pagerduty_alerts", "sentry_issues"},
		},
		{
			name: "all includes disabled",
			opts: dashboardOptions{All: true},
			want: []types.ViewID{"jira", "gh_prs", "gh_runs", "slack_unread", "oncall", "pagerduty_alerts", "sentry_issues", "newrelic_incidents"},
		},
		{
			name:  "config only applies without flags",
			views: config.ViewsConfig{Only: []string{"oncall", "jira"}},
			want:  []types.ViewID{"jira", "oncall"},
		},
		{
			name:  "flags replace config",
			opts:  dashboardOptions{Only: []string{"gh_prs"}},
			views: config.ViewsConfig{Only: []string{"oncall"}},
			want:  []types.ViewID{"gh_prs"},
		},
		{
			name:  "config except",
			views: config.ViewsConfig{Except: []string{"jira", "slack_unread"}},
			want:  []types.ViewID{"gh_prs", "gh_runs", "oncall", "pagerduty_alerts", "sentry_issues", "newrelic_incidents"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := selectViews(reg, tt.opts, tt.views)
			if err != nil {
				t.Fatalf("selectViews: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("views[%d] = %s, want %s", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestSelectViews_Errors(t *testing.T) {
	reg := testRegistry(t)

	_, err := selectViews(reg, dashboardOptions{Only: []string{"jria"}}, config.ViewsConfig{})
	var unknown *registry.UnknownViewError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownViewError, got %v", err)
	}
	if unknown.Suggestion != types.ViewJira {
		t.Errorf("suggestion = %q, want jira", unknown.Suggestion)
	}

	_, err = selectViews(reg, dashboardOptions{Only: []string{"jira"}, All: true}, config.ViewsConfig{})
	if !errors.Is(err, registry.ErrConflictingSelection) {
		t.Errorf("expected ErrConflictingSelection, got %v", err)
	}
}

func TestFatal(t *testing.T) {
	err := fatal(&registry.UnknownViewError{View: "jria", Suggestion: "jira"})
	var exitCoder cli.ExitCoder
	if !errors.As(err, &exitCoder) {
		t.Fatal("fatal should return a cli.ExitCoder")
	}
	if exitCoder.ExitCode() != runtime.ExitCodeFatal {
		t.Errorf("exit code = %d, want %d", exitCoder.ExitCode(), runtime.ExitCodeFatal)
	}
	if !strings.Contains(err.Error(), `did you mean "jira"`) {
		t.Errorf("message = %q, want suggestion", err.Error())
	}

	if err := fatal(errors.New("bad config")); !strings.Contains(err.Error(), "bad config") {
		t.Errorf("message = %q", err.Error())
	}
}

func TestExitWith(t *testing.T) {
	if err := exitWith(runtime.ExitCodeOK); err != nil {
		t.Errorf("exitWith(0) = %v, want nil", err)
	}
	var exitCoder cli.ExitCoder
	if err := exitWith(runtime.ExitCodeDegraded); !errors.As(err, &exitCoder) || exitCoder.ExitCode() != 1 {
		t.Errorf("exitWith(1) = %v", err)
	}
}

func TestQuitExit(t *testing.T) {
	failed := types.NewSnapshot("run", []types.ViewID{"jira"}, []types.ViewResult{
		{View: "jira", State: types.StateCompleted, Err: types.Unexpected("boom", nil)},
	}, time.Now(), time.Second)

	tests := []struct {
		name   string
		strict bool
		snap   *types.Snapshot
		want   int
	}{
		{name: "quit before first snapshot", strict: true, snap: nil, want: runtime.ExitCodeOK},
		{name: "failed view lenient", strict: false, snap: failed, want: runtime.ExitCodeOK},
		{name: "failed view strict", strict: true, snap: failed, want: runtime.ExitCodeDegraded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := quitExit(&dashboard{strict: tt.strict}, tt.snap)
			if tt.want == runtime.ExitCodeOK {
				if err != nil {
					t.Errorf("quitExit = %v, want nil", err)
				}
				return
			}
			var exitCoder cli.ExitCoder
			if !errors.As(err, &exitCoder) || exitCoder.ExitCode() != tt.want {
				t.Errorf("quitExit = %v, want exit code %d", err, tt.want)
			}
		})
	}
}

// blockingArchive waits for its context before returning.
type blockingArchive struct {
	sawDeadline bool
}

func (b *blockingArchive) Write(ctx context.Context, _ *types.Snapshot) error {
	_, b.sawDeadline = ctx.Deadline()
	<-ctx.Done()
	return ctx.Err()
}

func TestDashboard_DeliverBoundsArchiveWrite(t *testing.T) {
	var buf bytes.Buffer
	logger := log.NewLogger(&buf, log.WarnLevel)
	stub := &blockingArchive{}
	d := &dashboard{logger: logger, archive: stub, archiveTimeout: 10 * time.Millisecond}
	snap := types.NewSnapshot("run", nil, nil, time.Now(), 0)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	done := make(chan struct{})
	go func() {
		d.deliver(ctx, snap, logger)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("deliver did not return after the archive timeout")
	}

	if !stub.sawDeadline {
		t.Error("archive write had no deadline")
	}
	if !strings.Contains(buf.String(), "archive write failed") {
		t.Errorf("log = %q, want archive write failure", buf.String())
	}
}

func TestNewDashboard_UnconfiguredViewsAreUnauthorized(t *testing.T) {
	var logs bytes.Buffer
	d, err := newDashboard(t.Context(), dashboardOptions{
		ConfigPath: writeConfig(t, "timeout: 2s\n"),
		Only:       []string{"jira", "oncall"},
		Stderr:     &logs,
	})
	if err != nil {
		t.Fatalf("newDashboard: %v", err)
	}
	defer iox.DiscardClose(d)

	if d.timeout != 2*time.Second {
		t.Errorf("timeout = %v, want config value 2s", d.timeout)
	}

	snap, err := d.Run(t.Context())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if snap.Len() != 2 {
		t.Fatalf("got %d results, want 2", snap.Len())
	}
	for _, r := range snap.Results() {
		if r.Err == nil || r.Err.Kind != types.KindUnauthorized {
			t.Errorf("%s: got %v, want unauthorized", r.View, r.Err)
		}
	}
	if got := d.ExitCode(snap); got != runtime.ExitCodeOK {
		t.Errorf("non-strict exit code = %d, want 0", got)
	}
	d.strict = true
	if got := d.ExitCode(snap); got != runtime.ExitCodeDegraded {
		t.Errorf("strict exit code = %d, want 1", got)
	}
	if stats := d.collector.Snapshot(); stats.Runs != 1 {
		t.Errorf("collector runs = %d, want 1", stats.Runs)
	}
}

func TestNewDashboard_MissingConfig(t *testing.T) {
	_, err := newDashboard(t.Context(), dashboardOptions{
		ConfigPath: filepath.Join(t.TempDir(), "missing.yaml"),
		Stderr:     &bytes.Buffer{},
	})
	if err == nil {
		t.Fatal("expected error for missing explicit config")
	}
}

func TestNewDashboard_NotifyWithoutNotifiers(t *testing.T) {
	_, err := newDashboard(t.Context(), dashboardOptions{
		ConfigPath: writeConfig(t, ""),
		Notify:     true,
		Stderr:     &bytes.Buffer{},
	})
	if err == nil || !strings.Contains(err.Error(), "no notifier configured") {
		t.Errorf("expected missing notifier error, got %v", err)
	}
}

func TestDashboard_ArchivesAndNotifies(t *testing.T) {
	var (
		mu     sync.Mutex
		events []notify.SnapshotEvent
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ev notify.SnapshotEvent
		if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
			t.Errorf("decode event: %v", err)
		}
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	root := t.TempDir()
	cfgPath := writeConfig(t, `
archive:
  enabled: true
  backend: fs
  path: `+root+`
notify:
  enabled: true
  webhook:
    url: `+srv.URL+`
`)

	d, err := newDashboard(t.Context(), dashboardOptions{
		ConfigPath: cfgPath,
		Only:       []string{"sentry_issues"},
		Stderr:     &bytes.Buffer{},
	})
	if err != nil {
		t.Fatalf("newDashboard: %v", err)
	}
	defer iox.DiscardClose(d)

	snap, err := d.Run(t.Context())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	mu.Lock()
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	ev := events[0]
	mu.Unlock()
	if ev.RunID != snap.RunID() || ev.Failed != 1 || len(ev.Failures) != 1 {
		t.Errorf("unexpected event: %+v", ev)
	}

	a, err := archive.NewFS("", root)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	got, err := a.Latest(t.Context(), "")
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if got.RunID() != snap.RunID() {
		t.Errorf("archived run = %s, want %s", got.RunID(), snap.RunID())
	}

	stats := d.collector.Snapshot()
	if stats.ArchiveWriteSuccess != 1 || stats.NotifySuccess != 1 {
		t.Errorf("collector = %+v, want one archive write and one notification", stats)
	}
}

func TestDashboard_NotifyFailureKeepsSnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	var logs bytes.Buffer
	d, err := newDashboard(t.Context(), dashboardOptions{
		ConfigPath: writeConfig(t, "notify:\n  webhook:\n    url: "+srv.URL+"\n"),
		Only:       []string{"jira"},
		Notify:     true,
		Stderr:     &logs,
	})
	if err != nil {
		t.Fatalf("newDashboard: %v", err)
	}
	defer iox.DiscardClose(d)

	snap, err := d.Run(t.Context())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if snap.Len() != 1 {
		t.Errorf("got %d results, want 1", snap.Len())
	}
	if !strings.Contains(logs.String(), "notify failed") {
		t.Errorf("expected notify warning in logs, got %q", logs.String())
	}
	if stats := d.collector.Snapshot(); stats.NotifyFailure != 1 {
		t.Errorf("notify failures = %d, want 1", stats.NotifyFailure)
	}
}

func TestWatchLoop_EmitsUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	runs := 0
	run := func(context.Context) (*types.Snapshot, error) {
		runs++
		return types.NewSnapshot("run", nil, nil, time.Now(), 0), nil
	}
	emitted := 0
	emit := func(any) error {
		emitted++
		if emitted == 3 {
			cancel()
		}
		return nil
	}

	last, err := watchLoop(ctx, run, time.Millisecond, emit)
	if err != nil {
		t.Fatalf("watchLoop: %v", err)
	}
	if last == nil {
		t.Fatal("expected last snapshot")
	}
	if runs != 3 || emitted != 3 {
		t.Errorf("runs = %d, emitted = %d, want 3 each", runs, emitted)
	}
}

func TestWatchLoop_StopsOnRunError(t *testing.T) {
	boom := errors.New("boom")
	run := func(context.Context) (*types.Snapshot, error) { return nil, boom }

	_, err := watchLoop(t.Context(), run, time.Millisecond, func(any) error { return nil })
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
}

func TestApp_Show(t *testing.T) {
	var out, errOut bytes.Buffer
	cfgPath := writeConfig(t, "")

	err := testApp(&out, &errOut).Run([]string{"pulse", "show", "--config", cfgPath, "--only", "jira,gh_prs"})
	if err != nil {
		t.Fatalf("show: %v", err)
	}

	var decoded struct {
		RunID   string `json:"run_id"`
		Results []struct {
			View   string `json:"view"`
			Status string `json:"status"`
			Error  struct {
				Kind string `json:"kind"`
			} `json:"error"`
		} `json:"results"`
	}
	if err := json.Unmarshal(out.Bytes(), &decoded); err != nil {
		t.Fatalf("decode output %q: %v", out.String(), err)
	}
	if len(decoded.Results) != 2 || decoded.Results[0].View != "jira" || decoded.Results[1].View != "gh_prs" {
		t.Fatalf("unexpected results: %+v", decoded.Results)
	}
	if decoded.Results[0].Error.Kind != "unauthorized" {
		t.Errorf("jira kind = %q, want unauthorized", decoded.Results[0].Error.Kind)
	}
}

func TestApp_ShowStrict(t *testing.T) {
	var out, errOut bytes.Buffer
	cfgPath := writeConfig(t, "")

	err := testApp(&out, &errOut).Run([]string{"pulse", "show", "--config", cfgPath, "--only", "jira", "--strict"})
	var exitCoder cli.ExitCoder
	if !errors.As(err, &exitCoder) || exitCoder.ExitCode() != runtime.ExitCodeDegraded {
		t.Errorf("err = %v, want exit code 1", err)
	}
	if out.Len() == 0 {
		t.Error("strict mode should still render the snapshot")
	}
}

func TestApp_ShowUnknownView(t *testing.T) {
	var out, errOut bytes.Buffer
	cfgPath := writeConfig(t, "")

	err := testApp(&out, &errOut).Run([]string{"pulse", "show", "--config", cfgPath, "--only", "oncal"})
	var exitCoder cli.ExitCoder
	if !errors.As(err, &exitCoder) || exitCoder.ExitCode() != runtime.ExitCodeFatal {
		t.Fatalf("err = %v, want exit code 2", err)
	}
	if !strings.Contains(err.Error(), `did you mean "oncall"`) {
		t.Errorf("message = %q", err.Error())
	}
	if out.Len() != 0 {
		t.Errorf("no snapshot should be rendered, got %q", out.String())
	}
}

func TestApp_Views(t *testing.T) {
	var out, errOut bytes.Buffer
	cfgPath := writeConfig(t, "github:\n  token: ghp_test\nviews:\n  disabled: [sentry_issues]\n")

	if err := testApp(&out, &errOut).Run([]string{"pulse", "views", "--config", cfgPath}); err != nil {
		t.Fatalf("views: %v", err)
	}

	var rows []ViewRow
	if err := json.Unmarshal(out.Bytes(), &rows); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(rows) != 8 {
		t.Fatalf("got %d rows, want 8", len(rows))
	}
	byID := make(map[string]ViewRow)
	for _, r := range rows {
		byID[r.ID] = r
	}
	if r := byID["gh_prs"]; !r.Configured || r.Service != "github" || !r.Enabled {
		t.Errorf("gh_prs row = %+v", r)
	}
	if r := byID["sentry_issues"]; r.Enabled || r.Configured {
		t.Errorf("sentry_issues row = %+v", r)
	}
}

func TestApp_History(t *testing.T) {
	root := t.TempDir()
	cfgPath := writeConfig(t, "archive:\n  path: "+root+"\n")

	var out, errOut bytes.Buffer
	err := testApp(&out, &errOut).Run([]string{"pulse", "history", "--config", cfgPath})
	var exitCoder cli.ExitCoder
	if !errors.As(err, &exitCoder) || exitCoder.ExitCode() != runtime.ExitCodeDegraded {
		t.Fatalf("empty archive: err = %v, want exit code 1", err)
	}

	out.Reset()
	if err := testApp(&out, &errOut).Run([]string{"pulse", "show", "--config", cfgPath, "--only", "jira,oncall", "--archive"}); err != nil {
		t.Fatalf("show --archive: %v", err)
	}

	out.Reset()
	if err := testApp(&out, &errOut).Run([]string{"pulse", "history", "--config", cfgPath, "--view", "oncall"}); err != nil {
		t.Fatalf("history: %v", err)
	}
	var decoded struct {
		Results []struct {
			View string `json:"view"`
		} `json:"results"`
	}
	if err := json.Unmarshal(out.Bytes(), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(decoded.Results) != 1 || decoded.Results[0].View != "oncall" {
		t.Errorf("results = %+v, want only oncall", decoded.Results)
	}

	err = testApp(&out, &errOut).Run([]string{"pulse", "history", "--config", cfgPath, "--view", "jiraa"})
	if !errors.As(err, &exitCoder) || exitCoder.ExitCode() != runtime.ExitCodeFatal {
		t.Errorf("unknown view: err = %v, want exit code 2", err)
	}
}

func TestApp_Version(t *testing.T) {
	var out, errOut bytes.Buffer
	if err := testApp(&out, &errOut).Run([]string{"pulse", "version"}); err != nil {
		t.Fatalf("version: %v", err)
	}
	var resp VersionResponse
	if err := json.Unmarshal(out.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Version != types.Version || resp.Commit != "abc123" {
		t.Errorf("unexpected version response: %+v", resp)
	}
}
