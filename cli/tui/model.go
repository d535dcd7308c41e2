package tui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/justapithecus/pulse/cli/render"
	"github.com/justapithecus/pulse/types"
)

// RunFunc performs one aggregation run.
type RunFunc func(ctx context.Context) (*types.Snapshot, error)

// keyMap defines key bindings.
type keyMap struct {
	Refresh key.Binding
	Quit    key.Binding
}

var keys = keyMap{
	Refresh: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "refresh"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c", "esc"),
		key.WithHelp("q", "quit"),
	),
}

// snapshotMsg carries a finished run.
type snapshotMsg struct {
	snap *types.Snapshot
	err  error
}

// tickMsg triggers an automatic refresh.
type tickMsg time.Time

// Model is the dashboard Bubble Tea model.
type Model struct {
	ctx      context.Context
	run      RunFunc
	interval time.Duration
	now      func() time.Time

	spinner  spinner.Model
	snap     *types.Snapshot
	err      error
	loading  bool
	runs     int
	quitting bool
}

// NewModel creates a dashboard model. interval <= 0 disables auto-refresh.
func NewModel(ctx context.Context, run RunFunc, interval time.Duration) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle
	return Model{
		ctx:      ctx,
		run:      run,
		interval: interval,
		now:      time.Now,
		spinner:  s,
		loading:  true,
	}
}

// Snapshot returns the most recent snapshot, or nil before the first run.
func (m Model) Snapshot() *types.Snapshot { return m.snap }

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetch())
}

func (m Model) fetch() tea.Cmd {
	ctx, run := m.ctx, m.run
	return func() tea.Msg {
		snap, err := run(ctx)
		return snapshotMsg{snap: snap, err: err}
	}
}

func (m Model) schedule() tea.Cmd {
	if m.interval <= 0 {
		return nil
	}
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, keys.Refresh):
			if m.loading {
				return m, nil
			}
			m.loading = true
			return m, tea.Batch(m.spinner.Tick, m.fetch())
		}

	case snapshotMsg:
		m.loading = false
		m.runs++
		m.err = msg.err
		if msg.snap != nil {
			m.snap = msg.snap
		}
		return m, m.schedule()

	case tickMsg:
		if m.loading {
			return m, nil
		}
		m.loading = true
		return m, tea.Batch(m.spinner.Tick, m.fetch())

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	title := "pulse"
	if m.loading {
		title += " " + m.spinner.View()
	}
	b.WriteString(TitleStyle.Render(title))
	b.WriteString("\n")

	switch {
	case m.snap != nil:
		b.WriteString(BoxStyle.Render(render.DashboardAt(m.snap, true, m.now())))
	case m.loading:
		b.WriteString("fetching views...")
	}
	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(ErrorStyle.Render("error: " + m.err.Error()))
	}

	help := keys.Refresh.Help().Key + " " + keys.Refresh.Help().Desc + " · " +
		keys.Quit.Help().Key + " " + keys.Quit.Help().Desc
	if m.interval > 0 {
		help += " · every " + m.interval.String()
	}
	b.WriteString("\n")
	b.WriteString(HelpStyle.Render(help))
	return b.String()
}

// Run starts the dashboard and blocks until the user quits or ctx is done.
// Returns the last snapshot shown.
func Run(ctx context.Context, run RunFunc, interval time.Duration) (*types.Snapshot, error) {
	p := tea.NewProgram(NewModel(ctx, run, interval), tea.WithAltScreen(), tea.WithContext(ctx))
	final, err := p.Run()
	if m, ok := final.(Model); ok {
		return m.Snapshot(), err
	}
	return nil, err
}
