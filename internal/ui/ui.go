package ui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/muzik-tools/bandsync/internal/models"
	"github.com/muzik-tools/bandsync/internal/shared"
	"github.com/muzik-tools/bandsync/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	SyncView ViewState = iota
	ResultView
)

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	cancel       context.CancelFunc
	view         ViewState
	engine       *tasks.SyncEngine
	opts         tasks.SyncOptions
	width        int
	spinner      spinner.Model
	bar          progress.Model
	progressChan chan tasks.ProgressUpdate
	progress     tasks.ProgressUpdate
	item         tasks.ItemProgress
	report       *models.FetchReport
	err          error
	help         help.Model
	keys         keyMap
}

// keyMap defines the key bindings for the TUI.
type keyMap struct {
	quit key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
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

type syncCompleteMsg struct {
	report *models.FetchReport
	err    error
}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, engine *tasks.SyncEngine, opts tasks.SyncOptions) *Model {
	ctx, cancel := context.WithCancel(ctx)
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return &Model{
		ctx:     ctx,
		cancel:  cancel,
		view:    SyncView,
		engine:  engine,
		opts:    opts,
		spinner: sp,
		bar:     progress.New(progress.WithDefaultGradient()),
		help:    help.New(),
		keys:    newKeyMap(),
	}
}

// Report returns the final fetch report, nil until the run completes.
func (m *Model) Report() *models.FetchReport { return m.report }

// Err returns the pipeline error, if the run failed before fetching.
func (m *Model) Err() error { return m.err }

// Init starts the sync pipeline in a goroutine and begins the spinner.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.startSync(), m.spinner.Tick)
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = min(msg.Width-8, 60)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.cancel()
			if m.view == ResultView {
				return m, tea.Quit
			}
			return m, nil
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progressUpdateMsg:
		m.progress = tasks.ProgressUpdate(msg)
		if item, ok := m.progress.Data.(tasks.ItemProgress); ok {
			m.item = item
		}
		return m, m.waitForProgress()

	case syncCompleteMsg:
		m.report = msg.report
		m.err = msg.err
		m.view = ResultView
		return m, nil
	}

	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case SyncView:
		return m.renderSync()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) startSync() tea.Cmd {
	m.progressChan = make(chan tasks.ProgressUpdate, 50)

	go func() {
		report, err := m.engine.Run(m.ctx, m.progressChan, m.opts)
		m.report = report
		m.err = err
		close(m.progressChan)
	}()

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	return func() tea.Msg {
		update, ok := <-m.progressChan
		if !ok {
			return syncCompleteMsg{report: m.report, err: m.err}
		}
		return progressUpdateMsg(update)
	}
}

func (m *Model) renderSync() string {
	title := styles.title.Render("Syncing Collection")

	var phase string
	switch m.progress.Phase {
	case tasks.Authenticating:
		phase = "Validating session..."
	case tasks.Enumerating:
		phase = m.progress.Message
	case tasks.Reconciling:
		phase = m.progress.Message
	case tasks.Downloading:
		phase = fmt.Sprintf("Downloading (%d/%d)", m.progress.Step, m.progress.Total)
	default:
		phase = "Starting..."
	}

	var detail string
	if m.progress.Phase == tasks.Downloading {
		detail = m.item.Item.Display()
		if m.item.Total > 0 {
			pct := float64(m.item.Written) / float64(m.item.Total)
			detail = fmt.Sprintf("%s\n%s %s / %s",
				detail,
				m.bar.ViewAs(pct),
				shared.FormatBytes(m.item.Written),
				shared.FormatBytes(m.item.Total),
			)
		}
	}

	helpView := m.help.ShortHelpView([]key.Binding{m.keys.quit})
	return fmt.Sprintf("%s\n%s %s\n\n%s\n\n%s", title, m.spinner.View(), phase, detail, helpView)
}

func (m *Model) renderResult() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Sync failed: %v\n\nPress q to quit", m.err))
	}

	if m.report == nil {
		return styles.err.Render("No report available\n\nPress q to quit")
	}

	title := styles.ok.Render("✓ Sync Complete")
	info := fmt.Sprintf(
		"\nDownloaded: %d\nFailed: %d\nSkipped: %d\nDuration: %s",
		len(m.report.Succeeded),
		len(m.report.Failed),
		m.report.Skipped,
		m.report.Duration.Round(time.Second),
	)

	var failed string
	if !m.report.Ok() {
		failed = "\n\n" + styles.warn.Render(fmt.Sprintf("Failed to download %d items:", len(m.report.Failed)))
		for _, res := range m.report.Failed {
			failed += fmt.Sprintf("\n  • %s", res.Item.Display())
		}
	}

	helpView := m.help.ShortHelpView([]key.Binding{m.keys.quit})
	return fmt.Sprintf("%s\n%s%s\n\n%s", title, info, failed, helpView)
}
