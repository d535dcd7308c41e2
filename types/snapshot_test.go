package types //nolint:revive // types is a valid package name

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func testSnapshot() *Snapshot {
	retry := 30 * time.Second
	results := []ViewResult{
		{View: ViewJira, State: StateCompleted, Data: []string{"A-1", "A-2", "A-3"}, Elapsed: 10 * time.Millisecond},
		{View: ViewGitHubPRs, State: StateCompleted, Err: RateLimited(&retry, "secondary rate limit"), Elapsed: 15 * time.Millisecond},
		{View: ViewSlackUnread, State: StateTimedOut, Err: Timeout(), Elapsed: 200 * time.Millisecond},
	}
	started := time.Date(2026, 2, 7, 12, 0, 0, 0, time.UTC)
	return NewSnapshot("run-001", []ViewID{ViewJira, ViewGitHubPRs, ViewSlackUnread}, results, started, 201*time.Millisecond)
}

func TestFetchError_IsSentinel(t *testing.T) {
	tests := []struct {
		err    *FetchError
		target error
	}{
		{Timeout(), ErrTimeout},
		{Unauthorized("token expired"), ErrUnauthorized},
		{RateLimited(nil, ""), ErrRateLimited},
		{Network("dial", errors.New("connection refused")), ErrNetwork},
		{Unexpected("decode", nil), ErrUnexpected},
	}

	for _, tt := range tests {
		t.Run(string(tt.err.Kind), func(t *testing.T) {
			if !errors.Is(tt.err, tt.target) {
				t.Errorf("errors.Is(%v, %v) = false, want true", tt.err, tt.target)
			}
			for _, other := range FetchErrorKinds {
				if other == tt.err.Kind {
					continue
				}
				if errors.Is(tt.err, other.Sentinel()) {
					t.Errorf("%s error should not match %s sentinel", tt.err.Kind, other)
				}
			}
		})
	}
}

func TestFetchError_UnwrapPreservesCause(t *testing.T) {
	cause := errors.New("connection reset by peer")
	err := Network("GET /search", cause)

	if !errors.Is(err, cause) {
		t.Error("expected cause to be reachable via errors.Is")
	}
	if !strings.Contains(err.Error(), "network") {
		t.Errorf("error text should mention kind, got %q", err.Error())
	}
}

func TestFetchError_RetryAfterInMessage(t *testing.T) {
	d := 2 * time.Second
	err := RateLimited(&d, "slow down")
	if !strings.Contains(err.Error(), "retry after 2s") {
		t.Errorf("expected retry hint in %q", err.Error())
	}
}

func TestSnapshot_AccessorsReturnCopies(t *testing.T) {
	snap := testSnapshot()

	results := snap.Results()
	results[0].View = "mutated"
	results[0].Err = Timeout()

	views := snap.RequestedViews()
	views[0] = "mutated"

	if got := snap.Results()[0]; got.View != ViewJira || !got.OK() {
		t.Errorf("snapshot results mutated through accessor: %+v", got)
	}
	if got := snap.RequestedViews()[0]; got != ViewJira {
		t.Errorf("snapshot requested views mutated through accessor: %s", got)
	}
}

func TestSnapshot_ErrorsAreNotShared(t *testing.T) {
	snap := testSnapshot()

	results := snap.Results()
	results[1].Err.Kind = KindUnauthorized
	*results[1].Err.RetryAfter = time.Hour

	r, _ := snap.Result(ViewGitHubPRs)
	r.Err.Message = "mutated"

	got, _ := snap.Result(ViewGitHubPRs)
	if got.Err.Kind != KindRateLimited {
		t.Errorf("Kind = %s, want rate_limited", got.Err.Kind)
	}
	if *got.Err.RetryAfter != 30*time.Second {
		t.Errorf("RetryAfter = %s, want 30s", *got.Err.RetryAfter)
	}
	if got.Err.Message != "secondary rate limit" {
		t.Errorf("Message = %q", got.Err.Message)
	}
}

func TestNewSnapshot_CopiesErrors(t *testing.T) {
	retry := 5 * time.Second
	shared := RateLimited(&retry, "shared")
	snap := NewSnapshot("run", []ViewID{ViewJira}, []ViewResult{{View: ViewJira, State: StateCompleted, Err: shared}}, time.Now(), 0)

	shared.Kind = KindNetwork
	retry = time.Minute

	got := snap.Results()[0].Err
	if got.Kind != KindRateLimited || *got.RetryAfter != 5*time.Second {
		t.Errorf("snapshot changed through the caller's error: %+v (retry %s)", got, *got.RetryAfter)
	}
}

func TestFetchError_CloneNil(t *testing.T) {
	var e *FetchError
	if e.Clone() != nil {
		t.Error("Clone of nil should be nil")
	}
}

func TestNewSnapshot_CopiesInput(t *testing.T) {
	results := []ViewResult{{View: ViewJira, State: StateCompleted}}
	snap := NewSnapshot("run", []ViewID{ViewJira}, results, time.Now(), time.Millisecond)

	results[0].View = "changed"
	if snap.Results()[0].View != ViewJira {
		t.Error("NewSnapshot must copy the results slice")
	}
}

func TestSnapshot_Summary(t *testing.T) {
	sum := testSnapshot().Summary()

	if sum.Total != 3 || sum.Succeeded != 1 || sum.Failed != 2 || sum.TimedOut != 1 {
		t.Errorf("unexpected summary: %+v", sum)
	}
	if sum.ByKind[KindRateLimited] != 1 || sum.ByKind[KindTimeout] != 1 {
		t.Errorf("unexpected by-kind counts: %v", sum.ByKind)
	}
}

func TestSnapshot_Result(t *testing.T) {
	snap := testSnapshot()

	r, ok := snap.Result(ViewSlackUnread)
	if !ok {
		t.Fatal("expected slack result")
	}
	if r.State != StateTimedOut || !errors.Is(r.Err, ErrTimeout) {
		t.Errorf("unexpected slack result: %+v", r)
	}

	if _, ok := snap.Result("missing"); ok {
		t.Error("expected no result for unrequested view")
	}
}

func TestSnapshot_MarshalJSON_Shape(t *testing.T) {
	data, err := json.Marshal(testSnapshot())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if decoded["run_id"] != "run-001" {
		t.Errorf("run_id = %v", decoded["run_id"])
	}
	if decoded["total_elapsed_ms"] != float64(201) {
		t.Errorf("total_elapsed_ms = %v", decoded["total_elapsed_ms"])
	}

	results, ok := decoded["results"].([]any)
	if !ok || len(results) != 3 {
		t.Fatalf("expected 3 results, got %v", decoded["results"])
	}

	gh := results[1].(map[string]any)
	if gh["view"] != "gh_prs" || gh["status"] != "error" {
		t.Errorf("unexpected gh result: %v", gh)
	}
	ghErr := gh["error"].(map[string]any)
	if ghErr["kind"] != "rate_limited" || ghErr["retry_after_ms"] != float64(30000) {
		t.Errorf("unexpected gh error: %v", ghErr)
	}
	if _, hasData := gh["data"]; hasData {
		t.Error("failed result should not carry data")
	}
}

func TestSnapshot_JSONRoundTripKeepsOrderAndKinds(t *testing.T) {
	original := testSnapshot()
	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded Snapshot
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	want := original.Results()
	got := decoded.Results()
	if len(got) != len(want) {
		t.Fatalf("got %d results, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].View != want[i].View || got[i].State != want[i].State || got[i].Status() != want[i].Status() {
			t.Errorf("result %d: got %s/%s/%s, want %s/%s/%s", i,
				got[i].View, got[i].State, got[i].Status(),
				want[i].View, want[i].State, want[i].Status())
		}
	}
	if r := got[1]; r.Err.RetryAfter == nil || *r.Err.RetryAfter != 30*time.Second {
		t.Errorf("retry_after lost in round trip: %+v", r.Err)
	}
	if !decoded.StartedAt().Equal(original.StartedAt()) {
		t.Errorf("started_at = %v, want %v", decoded.StartedAt(), original.StartedAt())
	}
}

func TestSnapshot_UnmarshalJSON_RejectsUnknownKind(t *testing.T) {
	raw := `{"run_id":"r","results":[{"view":"jira","state":"completed","status":"error","error":{"kind":"bogus"}}]}`
	var s Snapshot
	if err := json.Unmarshal([]byte(raw), &s); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}
