package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/randomizedcoder/go-devmux/internal/command"
	"github.com/randomizedcoder/go-devmux/internal/discovery"
	"github.com/randomizedcoder/go-devmux/internal/logtail"
	"github.com/randomizedcoder/go-devmux/internal/orchestrator"
	"github.com/randomizedcoder/go-devmux/internal/process"
)

// DefaultRefreshInterval is how often the model reads a new snapshot.
const DefaultRefreshInterval = 100 * time.Millisecond

// =============================================================================
// Messages
// =============================================================================

// TickMsg is sent periodically to refresh the display.
type TickMsg time.Time

// QuitMsg signals the TUI should exit.
type QuitMsg struct{}

// =============================================================================
// Model
// =============================================================================

// Controller is the subset of the orchestrator the UI drives.
type Controller interface {
	Snapshot() *orchestrator.Snapshot
	Spawn(id process.ID)
	Kill(id process.ID)
	Restart(id process.ID)
	SpawnAll()
	RestartAll()
	ClearOutput(id process.ID)
	Scroll(id process.ID, delta int)
	ClearLogs()
	RunCommand(req command.Request)
	CancelCommand()
	ClearCommand()
	WriteStdin(line string) error
}

// Tab is a top-level view.
type Tab int

const (
	TabProcesses Tab = iota
	TabLogs
	TabCommands
)

var tabNames = [...]string{"Processes", "Logs", "Commands"}

func (t Tab) String() string { return tabNames[t] }

type inputMode int

const (
	inputNone inputMode = iota
	inputSearch
	inputArgs
	inputStdin
)

// Config holds TUI configuration.
type Config struct {
	Controller  Controller
	Tools       []discovery.Tool
	ProjectDir  string
	MetricsAddr string
	Version     string

	// MinLevel is the initial log severity filter.
	MinLevel logtail.Level

	RefreshInterval time.Duration
}

// Model represents the TUI state.
type Model struct {
	ctl         Controller
	tools       []discovery.Tool
	projectDir  string
	metricsAddr string
	version     string
	refresh     time.Duration

	keys  KeyMap
	help  help.Model
	input textinput.Model
	mode  inputMode

	snap     *orchestrator.Snapshot
	tab      Tab
	selected int
	toolSel  int
	status   string

	filter    orchestrator.LogFilter
	logView   viewport.Model
	logFollow bool
	cmdView   viewport.Model

	width  int
	height int

	quitting bool
}

// New creates a new TUI model.
func New(cfg Config) Model {
	refresh := cfg.RefreshInterval
	if refresh <= 0 {
		refresh = DefaultRefreshInterval
	}
	h := help.New()
	h.ShowAll = false

	ti := textinput.New()
	ti.CharLimit = 512
	ti.Prompt = "> "

	m := Model{
		ctl:         cfg.Controller,
		tools:       cfg.Tools,
		projectDir:  cfg.ProjectDir,
		metricsAddr: cfg.MetricsAddr,
		version:     cfg.Version,
		refresh:     refresh,
		keys:        DefaultKeyMap(),
		help:        h,
		input:       ti,
		filter:      orchestrator.LogFilter{MinLevel: cfg.MinLevel},
		logView:     viewport.New(80, 10),
		logFollow:   true,
		cmdView:     viewport.New(80, 10),
		width:       80,
		height:      24,
	}
	if m.ctl != nil {
		m.snap = m.ctl.Snapshot()
	}
	m.resize()
	return m
}

// =============================================================================
// Bubble Tea Interface
// =============================================================================

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return m.tickCmd()
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.mode != inputNone {
			return m.updateInput(msg)
		}
		return m.updateKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		m.refreshPanes()
		return m, nil

	case TickMsg:
		if m.ctl != nil {
			m.snap = m.ctl.Snapshot()
		}
		m.clampSelection()
		m.refreshPanes()
		return m, m.tickCmd()

	case QuitMsg:
		m.quitting = true
		return m, tea.Quit
	}
	return m, nil
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	return m.render()
}

func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// =============================================================================
// Key handling
// =============================================================================

func (m Model) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.resize()
		return m, nil
	case key.Matches(msg, m.keys.NextTab):
		m.tab = (m.tab + 1) % Tab(len(tabNames))
		return m, nil
	case key.Matches(msg, m.keys.PrevTab):
		m.tab = (m.tab + Tab(len(tabNames)) - 1) % Tab(len(tabNames))
		return m, nil
	case key.Matches(msg, m.keys.Tab1):
		m.tab = TabProcesses
		return m, nil
	case key.Matches(msg, m.keys.Tab2):
		m.tab = TabLogs
		return m, nil
	case key.Matches(msg, m.keys.Tab3):
		m.tab = TabCommands
		return m, nil
	}

	switch m.tab {
	case TabProcesses:
		m.updateProcesses(msg)
	case TabLogs:
		return m.updateLogs(msg)
	case TabCommands:
		return m.updateCommands(msg)
	}
	return m, nil
}

func (m *Model) updateProcesses(msg tea.KeyMsg) {
	id, ok := m.selectedID()

	switch {
	case key.Matches(msg, m.keys.Up):
		m.selected = max(m.selected-1, 0)
	case key.Matches(msg, m.keys.Down):
		m.selected = min(m.selected+1, max(m.processCount()-1, 0))
	case key.Matches(msg, m.keys.PageUp):
		if ok {
			m.ctl.Scroll(id, m.outputHeight())
		}
	case key.Matches(msg, m.keys.PageDown):
		if ok {
			m.ctl.Scroll(id, -m.outputHeight())
		}
	case key.Matches(msg, m.keys.Bottom):
		if ok {
			m.ctl.Scroll(id, -process.MaxOutputLines)
		}
	case key.Matches(msg, m.keys.RestartAll):
		m.ctl.RestartAll()
		m.status = "Restarting all processes..."
	case key.Matches(msg, m.keys.StartAll):
		m.ctl.SpawnAll()
		m.status = "Starting stopped processes..."
	case key.Matches(msg, m.keys.Clear):
		if ok {
			m.ctl.ClearOutput(id)
		}
	case key.Matches(msg, m.keys.Kill):
		if ok {
			m.ctl.Kill(id)
			m.status = "Stopping " + m.displayName(id) + "..."
		}
	case key.Matches(msg, m.keys.Start):
		if ok {
			m.startOrRestart(id)
		}
	case key.Matches(msg, m.keys.Logs):
		m.tab = TabLogs
	default:
		m.hotkey(msg)
	}
}

// hotkey restarts the process bound to a single-letter key.
func (m *Model) hotkey(msg tea.KeyMsg) {
	if msg.Type != tea.KeyRunes || len(msg.Runes) != 1 || m.snap == nil {
		return
	}
	r := msg.Runes[0]
	for i, p := range m.snap.Processes {
		if p.Hotkey != 0 && p.Hotkey == r {
			m.selected = i
			m.startOrRestart(p.ID)
			return
		}
	}
}

func (m *Model) startOrRestart(id process.ID) {
	p, ok := m.snap.Process(id)
	if !ok {
		return
	}
	if p.Status.IsActive() {
		m.ctl.Restart(id)
		m.status = "Restarting " + p.DisplayName + "..."
		return
	}
	m.ctl.Spawn(id)
	m.status = "Starting " + p.DisplayName + "..."
}

func (m Model) updateLogs(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Level):
		m.filter.MinLevel = nextLevel(m.filter.MinLevel)
	case key.Matches(msg, m.keys.File):
		m.filter.File = m.nextFile()
	case key.Matches(msg, m.keys.Search):
		m.mode = inputSearch
		m.input.Placeholder = "search logs"
		m.input.SetValue(m.filter.Search)
		cmd := m.input.Focus()
		return m, cmd
	case key.Matches(msg, m.keys.Cancel):
		m.filter = orchestrator.LogFilter{}
	case key.Matches(msg, m.keys.Clear):
		m.ctl.ClearLogs()
	case key.Matches(msg, m.keys.Up):
		m.logView.LineUp(1)
		m.logFollow = false
	case key.Matches(msg, m.keys.Down):
		m.logView.LineDown(1)
		m.logFollow = m.logView.AtBottom()
	case key.Matches(msg, m.keys.PageUp):
		m.logView.HalfViewUp()
		m.logFollow = false
	case key.Matches(msg, m.keys.PageDown):
		m.logView.HalfViewDown()
		m.logFollow = m.logView.AtBottom()
	case key.Matches(msg, m.keys.Bottom):
		m.logFollow = true
	}
	m.refreshPanes()
	return m, nil
}

func (m Model) updateCommands(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	running := m.snap != nil && m.snap.Command.Running

	switch {
	case key.Matches(msg, m.keys.Up):
		m.toolSel = max(m.toolSel-1, 0)
	case key.Matches(msg, m.keys.Down):
		m.toolSel = min(m.toolSel+1, max(len(m.tools)-1, 0))
	case key.Matches(msg, m.keys.Run):
		if len(m.tools) == 0 {
			return m, nil
		}
		m.mode = inputArgs
		m.input.Placeholder = "extra arguments (optional)"
		m.input.SetValue("")
		cmd := m.input.Focus()
		return m, cmd
	case key.Matches(msg, m.keys.Input):
		if running {
			m.mode = inputStdin
			m.input.Placeholder = "stdin"
			m.input.SetValue("")
			cmd := m.input.Focus()
			return m, cmd
		}
	case key.Matches(msg, m.keys.Cancel):
		if running {
			m.ctl.CancelCommand()
			m.status = "Cancelling command..."
		}
	case key.Matches(msg, m.keys.Clear):
		m.ctl.ClearCommand()
	case key.Matches(msg, m.keys.PageUp):
		m.cmdView.HalfViewUp()
	case key.Matches(msg, m.keys.PageDown):
		m.cmdView.HalfViewDown()
	case key.Matches(msg, m.keys.Bottom):
		m.cmdView.GotoBottom()
	}
	return m, nil
}

func (m Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		m.quitting = true
		return m, tea.Quit

	case tea.KeyEsc:
		m.mode = inputNone
		m.input.Blur()
		return m, nil

	case tea.KeyEnter:
		value := m.input.Value()
		switch m.mode {
		case inputSearch:
			m.filter.Search = value
			m.mode = inputNone
			m.input.Blur()
			m.refreshPanes()
		case inputArgs:
			tool := m.tools[m.toolSel]
			m.ctl.RunCommand(tool.Request(m.projectDir, value))
			m.status = "Running " + tool.DisplayName + "..."
			m.mode = inputNone
			m.input.Blur()
			if tool.Interactive {
				m.mode = inputStdin
				m.input.Placeholder = "stdin"
				m.input.SetValue("")
				cmd := m.input.Focus()
				return m, cmd
			}
		case inputStdin:
			if err := m.ctl.WriteStdin(value); err != nil {
				m.status = fmt.Sprintf("stdin: %v", err)
				m.mode = inputNone
				m.input.Blur()
			}
		}
		m.input.SetValue("")
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// =============================================================================
// Helpers
// =============================================================================

func (m Model) processCount() int {
	if m.snap == nil {
		return 0
	}
	return len(m.snap.Processes)
}

func (m Model) selectedID() (process.ID, bool) {
	if m.snap == nil || m.selected >= len(m.snap.Processes) {
		return process.ID{}, false
	}
	return m.snap.Processes[m.selected].ID, true
}

func (m Model) displayName(id process.ID) string {
	if p, ok := m.snap.Process(id); ok {
		return p.DisplayName
	}
	return id.Name()
}

func (m *Model) clampSelection() {
	m.selected = min(m.selected, max(m.processCount()-1, 0))
	m.toolSel = min(m.toolSel, max(len(m.tools)-1, 0))
}

// nextLevel cycles all -> info -> warning -> error -> all.
func nextLevel(l logtail.Level) logtail.Level {
	switch {
	case l < logtail.LevelInfo:
		return logtail.LevelInfo
	case l < logtail.LevelWarning:
		return logtail.LevelWarning
	case l < logtail.LevelError:
		return logtail.LevelError
	default:
		return logtail.LevelUnknown
	}
}

// nextFile cycles through "" (all files) and the files seen so far.
func (m Model) nextFile() string {
	if m.snap == nil || len(m.snap.LogFiles) == 0 {
		return ""
	}
	files := m.snap.LogFiles
	if m.filter.File == "" {
		return files[0]
	}
	for i, f := range files {
		if f == m.filter.File && i+1 < len(files) {
			return files[i+1]
		}
	}
	return ""
}

// outputHeight is the number of output lines shown for a process.
func (m Model) outputHeight() int {
	return max(m.bodyHeight()-3, 1)
}

func (m Model) bodyHeight() int {
	footer := 2
	if m.help.ShowAll {
		footer = 7
	}
	return max(m.height-3-footer, 3)
}

func (m *Model) resize() {
	h := max(m.bodyHeight()-3, 1)
	m.logView.Width = max(m.width-4, 10)
	m.logView.Height = h
	m.cmdView.Width = max(m.width-sidebarWidth-6, 10)
	m.cmdView.Height = h
	m.help.Width = m.width
	m.input.Width = max(m.width-8, 10)
}

// refreshPanes reloads viewport contents from the snapshot.
func (m *Model) refreshPanes() {
	if m.snap == nil {
		return
	}
	m.logView.SetContent(m.renderLogLines())
	if m.logFollow {
		m.logView.GotoBottom()
	}

	atBottom := m.cmdView.AtBottom()
	m.cmdView.SetContent(renderLines(m.snap.Command.Output))
	if atBottom || m.snap.Command.Running {
		m.cmdView.GotoBottom()
	}
}

// =============================================================================
// Accessors
// =============================================================================

// ActiveTab returns the current tab.
func (m Model) ActiveTab() Tab { return m.tab }

// Selected returns the selected process index.
func (m Model) Selected() int { return m.selected }

// Filter returns the current log filter.
func (m Model) Filter() orchestrator.LogFilter { return m.filter }

// Status returns the last status message.
func (m Model) Status() string { return m.status }

// SendQuit sends a quit message to the TUI.
func SendQuit(p *tea.Program) {
	if p != nil {
		p.Send(QuitMsg{})
	}
}
