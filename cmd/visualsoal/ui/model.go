package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"visualsoal/internal/history"
	"visualsoal/internal/logging"
	"visualsoal/internal/types"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Controller is the workflow surface the terminal renderer drives.
type Controller interface {
	Snapshot() types.State
	History() []types.Record
	SetInput(input string) error
	SetStyle(style types.Style) error
	SetAspectRatio(ratio types.AspectRatio) error
	SetView(view types.View)
	DismissError()
	StartAnalysis(ctx context.Context) error
	StartRender(ctx context.Context) error
	Restore(rec types.Record) error
	DeleteRecord(id string) error
}

// Options configures the root model.
type Options struct {
	// Timeout bounds each generation call. Zero means no bound.
	Timeout time.Duration
	// ExportDir receives images saved with ctrl+o or x.
	ExportDir string
	Styles    *Styles
}

// stageDoneMsg reports the end of a stage started from the UI.
type stageDoneMsg struct {
	stage string
	err   error
}

// Model is the root bubbletea model.
type Model struct {
	ctrl      Controller
	styles    Styles
	input     textarea.Model
	spinner   spinner.Model
	generate  GeneratePageModel
	history   HistoryPageModel
	layout    LayoutConfig
	timeout   time.Duration
	exportDir string
	status    string
	quitting  bool
}

// NewModel creates the root model over ctrl.
func NewModel(ctrl Controller, opts Options) Model {
	styles := DefaultStyles()
	if opts.Styles != nil {
		styles = *opts.Styles
	}

	ta := textarea.New()
	ta.Placeholder = "Describe the scenario, e.g. social interaction at a traditional market showing cultural acculturation..."
	ta.ShowLineNumbers = false
	ta.CharLimit = 8000
	ta.SetWidth(80)
	ta.SetHeight(InputHeight - 2)
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Spinner

	st := ctrl.Snapshot()
	ta.SetValue(st.Input)

	m := Model{
		ctrl:      ctrl,
		styles:    styles,
		input:     ta,
		spinner:   sp,
		generate:  NewGeneratePageModel(styles),
		history:   NewHistoryPageModel(styles),
		layout:    NewLayoutConfig(80, 30),
		timeout:   opts.Timeout,
		exportDir: opts.ExportDir,
	}
	m.resize()
	m.refresh()
	return m
}

// Init starts the cursor blink and the spinner.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.spinner.Tick)
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = NewLayoutConfig(msg.Width, msg.Height)
		m.resize()
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.ctrl.Snapshot().Busy() {
			m.refresh()
		}
		return m, cmd

	case stageDoneMsg:
		logging.UIDebug("Stage %s finished: err=%v", msg.stage, msg.err)
		if msg.err == nil && msg.stage == "render" {
			m.status = "Image saved to history."
		}
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		if cmd, handled := m.handleKey(msg); handled {
			m.refresh()
			return m, cmd
		}
	}

	st := m.ctrl.Snapshot()
	if st.View == types.ViewHistory {
		var cmd tea.Cmd
		m.history, cmd = m.history.Update(msg)
		cmds = append(cmds, cmd)
	} else {
		var cmd tea.Cmd
		before := m.input.Value()
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
		if m.input.Value() != before {
			m.status = ""
		}
		m.generate, cmd = m.generate.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

// handleKey runs global and per-view shortcuts. It reports whether the key
// was consumed.
func (m *Model) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	st := m.ctrl.Snapshot()

	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return tea.Quit, true
	case "tab":
		if st.View == types.ViewGenerate {
			m.ctrl.SetView(types.ViewHistory)
			m.input.Blur()
		} else {
			m.ctrl.SetView(types.ViewGenerate)
			m.input.Focus()
		}
		return nil, true
	case "esc":
		m.ctrl.DismissError()
		m.status = ""
		return nil, true
	}

	if st.View == types.ViewHistory {
		return m.handleHistoryKey(msg)
	}
	return m.handleGenerateKey(msg, st)
}

func (m *Model) handleGenerateKey(msg tea.KeyMsg, st types.State) (tea.Cmd, bool) {
	switch msg.String() {
	case "ctrl+g":
		if st.Busy() {
			return nil, true
		}
		if err := m.ctrl.SetInput(m.input.Value()); err != nil {
			return nil, true
		}
		m.status = ""
		return tea.Batch(m.runStage("analyze", m.ctrl.StartAnalysis), m.spinner.Tick), true
	case "ctrl+t":
		if st.Busy() || !st.HasPrompt() {
			return nil, true
		}
		m.status = ""
		return tea.Batch(m.runStage("render", m.ctrl.StartRender), m.spinner.Tick), true
	case "ctrl+s":
		_ = m.ctrl.SetStyle(nextStyle(st.Style))
		return nil, true
	case "ctrl+r":
		_ = m.ctrl.SetAspectRatio(nextRatio(st.AspectRatio))
		return nil, true
	case "ctrl+o":
		if st.ImageData == "" {
			return nil, true
		}
		rec := types.Record{ID: fmt.Sprintf("visual-soal-%d", time.Now().UnixMilli()), ImageData: st.ImageData}
		m.export(rec)
		return nil, true
	}
	return nil, false
}

func (m *Model) handleHistoryKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch msg.String() {
	case "up", "k":
		m.history.MoveCursor(-1)
		return nil, true
	case "down", "j":
		m.history.MoveCursor(1)
		return nil, true
	case "enter":
		rec, ok := m.history.Selected()
		if !ok {
			return nil, true
		}
		if err := m.ctrl.Restore(rec); err == nil {
			m.input.SetValue(rec.SourceText)
			m.input.Focus()
			m.status = "Restored " + shortID(rec.ID)
		}
		return nil, true
	case "d", "delete":
		if rec, ok := m.history.Selected(); ok {
			if err := m.ctrl.DeleteRecord(rec.ID); err == nil {
				m.status = "Deleted " + shortID(rec.ID)
			}
		}
		return nil, true
	case "x":
		if rec, ok := m.history.Selected(); ok {
			m.export(rec)
		}
		return nil, true
	}
	return nil, false
}

func (m *Model) export(rec types.Record) {
	path, err := history.ExportImage(rec, m.exportDir)
	if err != nil {
		logging.UI("Export failed: %v", err)
		m.status = "Export failed: " + err.Error()
		return
	}
	m.status = "Saved " + path
}

// runStage runs a blocking controller transition off the update loop.
func (m Model) runStage(name string, fn func(context.Context) error) tea.Cmd {
	timeout := m.timeout
	return func() tea.Msg {
		ctx := context.Background()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		return stageDoneMsg{stage: name, err: fn(ctx)}
	}
}

func (m *Model) resize() {
	w := m.layout.ContentWidth()
	m.input.SetWidth(w)
	m.generate.SetSize(w, m.layout.PageHeight(true))
	m.history.SetSize(w, m.layout.PageHeight(false))
}

// refresh re-renders both pages from the controller.
func (m *Model) refresh() {
	st := m.ctrl.Snapshot()
	m.generate.UpdateContent(st, m.spinner.View())
	m.history.UpdateContent(m.ctrl.History())
}

// View renders the whole screen.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	st := m.ctrl.Snapshot()
	width := m.layout.ContentWidth()

	var sections []string
	sections = append(sections, m.styles.Header.Render("Visual Soal")+"  "+
		m.styles.Muted.Render("Sociology question visualizer"))
	sections = append(sections, m.renderTabs(st.View))

	if st.Error != "" {
		sections = append(sections, m.styles.Error.Render("✗ "+st.Error)+m.styles.Muted.Render("  (esc to dismiss)"))
	} else if m.status != "" {
		sections = append(sections, m.styles.Success.Render(m.status))
	} else {
		sections = append(sections, "")
	}

	if st.View == types.ViewHistory {
		sections = append(sections, m.history.View())
	} else {
		sections = append(sections, m.styles.Card.Width(width).Render(m.input.View()))
		sections = append(sections, m.generate.View())
	}

	sections = append(sections, m.styles.RenderDivider(width))
	sections = append(sections, m.styles.Footer.Render(m.helpLine(st)))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderTabs(view types.View) string {
	gen, hist := m.styles.Tab, m.styles.Tab
	if view == types.ViewHistory {
		hist = m.styles.ActiveTab
	} else {
		gen = m.styles.ActiveTab
	}
	count := len(m.ctrl.History())
	return gen.Render("Generate") + hist.Render(fmt.Sprintf("History (%d)", count))
}

func (m Model) helpLine(st types.State) string {
	if st.View == types.ViewHistory {
		return "↑/↓ select • enter restore • d delete • x save image • tab generate • ctrl+c quit"
	}
	parts := []string{"ctrl+g analyze", "ctrl+t image", "ctrl+s style", "ctrl+r ratio"}
	if st.ImageData != "" {
		parts = append(parts, "ctrl+o save")
	}
	parts = append(parts, "tab history", "ctrl+c quit")
	return strings.Join(parts, " • ")
}

func nextStyle(s types.Style) types.Style {
	all := types.Styles()
	for i, v := range all {
		if v == s {
			return all[(i+1)%len(all)]
		}
	}
	return all[0]
}

func nextRatio(r types.AspectRatio) types.AspectRatio {
	all := types.AspectRatios()
	for i, v := range all {
		if v == r {
			return all[(i+1)%len(all)]
		}
	}
	return all[0]
}
