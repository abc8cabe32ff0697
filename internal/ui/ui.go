package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"tunegrab/internal/models"
	"tunegrab/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	DownloadView ViewState = iota
	ResultView
)

// Model represents the TUI application state for one batch run.
type Model struct {
	ctx    context.Context
	view   ViewState
	engine *tasks.DownloadEngine
	tracks []models.Track
	opts   tasks.BatchOptions

	width  int
	height int

	bar          progress.Model
	progressChan chan tasks.ProgressUpdate
	current      tasks.ProgressUpdate
	succeeded    int
	skipped      int
	failed       int
	stopping     bool

	result *tasks.BatchResult
	err    error

	help help.Model
	keys keyMap
}

// keyMap defines the key bindings for the TUI.
type keyMap struct {
	quit key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "cancel"),
		),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.quit}}
}

type progressUpdateMsg tasks.ProgressUpdate

type batchCompleteMsg struct {
	result *tasks.BatchResult
	err    error
}

// NewModel creates a TUI model that will download the given tracks on Init.
func NewModel(ctx context.Context, engine *tasks.DownloadEngine, tracks []models.Track, opts tasks.BatchOptions) *Model {
	return &Model{
		ctx:    ctx,
		view:   DownloadView,
		engine: engine,
		tracks: tracks,
		opts:   opts,
		bar:    progress.New(progress.WithDefaultGradient()),
		help:   help.New(),
		keys:   newKeyMap(),
	}
}

// Init starts the batch in the background and begins draining progress.
func (m *Model) Init() tea.Cmd {
	return m.startBatch()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = min(msg.Width-8, 60)
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case DownloadView:
			if msg.String() == "q" || msg.String() == "ctrl+c" {
				m.stopping = true
				m.engine.Stop()
			}
			return m, nil
		case ResultView:
			switch msg.String() {
			case "q", "ctrl+c", "enter", "esc":
				return m, tea.Quit
			}
			return m, nil
		}

	case progressUpdateMsg:
		m.current = tasks.ProgressUpdate(msg)
		if item, ok := m.current.Data.(tasks.ItemResult); ok {
			switch item.Status {
			case models.StatusSucceeded:
				m.succeeded++
			case models.StatusSkipped:
				m.skipped++
			case models.StatusFailed:
				m.failed++
			}
		}
		return m, m.waitForProgress()

	case batchCompleteMsg:
		m.result = msg.result
		m.err = msg.err
		m.view = ResultView
		return m, nil
	}

	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case DownloadView:
		return m.renderDownload()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) startBatch() tea.Cmd {
	m.progressChan = make(chan tasks.ProgressUpdate, 50)

	go func() {
		result, err := m.engine.RunBatch(m.ctx, m.tracks, m.opts, m.progressChan)
		m.result = result
		m.err = err
		close(m.progressChan)
	}()

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	return func() tea.Msg {
		if m.progressChan == nil {
			return batchCompleteMsg{result: m.result, err: m.err}
		}

		update, ok := <-m.progressChan
		if !ok {
			return batchCompleteMsg{result: m.result, err: m.err}
		}
		return progressUpdateMsg(update)
	}
}

func (m *Model) renderDownload() string {
	title := styles.title.Render(fmt.Sprintf("Downloading %d tracks", len(m.tracks)))

	percent := float64(m.current.Percent()) / 100
	bar := m.bar.ViewAs(percent)

	tallies := fmt.Sprintf("%s  %s  %s",
		styles.ok.Render(fmt.Sprintf("✓ %d", m.succeeded)),
		styles.warn.Render(fmt.Sprintf("• %d", m.skipped)),
		styles.err.Render(fmt.Sprintf("✗ %d", m.failed)),
	)

	status := m.current.Message
	if m.stopping {
		status = "Cancelling after the current track..."
	}

	helpView := m.help.ShortHelpView(m.keys.ShortHelp())

	return fmt.Sprintf("%s\n%s  %d/%d\n\n%s\n%s\n\n%s",
		title, bar, m.current.Step, m.current.Total, tallies, status, helpView)
}

func (m *Model) renderResult() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Download failed: %v\n\nPress q to quit", m.err))
	}
	if m.result == nil {
		return styles.err.Render("No result available\n\nPress q to quit")
	}

	var title string
	switch m.result.Outcome().Severity() {
	case tasks.SeverityInfo:
		title = styles.ok.Render("✓ " + m.result.Summary())
	case tasks.SeverityWarn:
		title = styles.warn.Render("! " + m.result.Summary())
	default:
		title = styles.err.Render("✗ " + m.result.Summary())
	}

	var failures strings.Builder
	if m.result.Failed > 0 {
		failures.WriteString("\n")
		for _, item := range m.result.Items {
			if item.Status == models.StatusFailed {
				failures.WriteString(fmt.Sprintf("\n  ✗ %s - %s: %s", item.Track.Artist, item.Track.Title, item.Reason))
			}
		}
	}

	var manifestLine string
	if m.result.ManifestPath != "" {
		manifestLine = fmt.Sprintf("\n\nManifest: %s", m.result.ManifestPath)
	}

	helpView := m.help.ShortHelpView(m.keys.ShortHelp())

	return fmt.Sprintf("%s%s%s\n\n%s", title, failures.String(), manifestLine, helpView)
}
