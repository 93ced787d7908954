package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/georag/georag/internal/store"
)

// pollInterval controls how often watchModel re-checks CurrentBuild while
// `georag status --watch` is waiting for a build to finish.
const pollInterval = 500 * time.Millisecond

// watchModel is a bubbletea Elm-architecture program driving a spinner while
// polling store.BuildStore for a build newer than the one observed at start.
// Build() itself is a single blocking call with no live progress channel, so
// this polls CurrentBuild rather than subscribing to per-chunk events.
type watchModel struct {
	ctx       context.Context
	build     store.BuildStore
	workspace string
	baseline  *store.IndexBuild

	spin   spinner.Model
	done   bool
	result *store.IndexBuild
	err    error
}

type buildTickMsg struct{}
type buildDoneMsg struct {
	build *store.IndexBuild
	err   error
}

func newWatchModel(ctx context.Context, buildStore store.BuildStore, workspaceID string, baseline *store.IndexBuild) watchModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("154"))
	return watchModel{ctx: ctx, build: buildStore, workspace: workspaceID, baseline: baseline, spin: s}
}

func pollCmd(ctx context.Context, buildStore store.BuildStore, workspaceID string, baseline *store.IndexBuild) tea.Cmd {
	return func() tea.Msg {
		time.Sleep(pollInterval)
		current, err := buildStore.CurrentBuild(ctx, workspaceID)
		if err != nil {
			return buildDoneMsg{err: err}
		}
		if current != nil && (baseline == nil || current.ID != baseline.ID) {
			return buildDoneMsg{build: current}
		}
		return buildTickMsg{}
	}
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, pollCmd(m.ctx, m.build, m.workspace, m.baseline))
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			return m, tea.Quit
		}
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	case buildTickMsg:
		return m, pollCmd(m.ctx, m.build, m.workspace, m.baseline)
	case buildDoneMsg:
		m.done = true
		m.result = msg.build
		m.err = msg.err
		return m, tea.Quit
	}
	return m, nil
}

func (m watchModel) View() string {
	if m.done {
		if m.err != nil {
			return fmt.Sprintf("watch failed: %v\n", m.err)
		}
		return fmt.Sprintf("build ready: %d chunks (model %s)\n", m.result.ChunkCount, m.result.EmbedderModel)
	}
	return fmt.Sprintf("%s waiting for a new index build...\n", m.spin.View())
}
