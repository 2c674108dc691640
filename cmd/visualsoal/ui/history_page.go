package ui

import (
	"fmt"
	"strings"

	"visualsoal/internal/types"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// HistoryPageModel lists saved runs with a cursor.
type HistoryPageModel struct {
	viewport viewport.Model
	records  []types.Record
	cursor   int
	styles   Styles
	width    int
	height   int
}

// NewHistoryPageModel creates the history page.
func NewHistoryPageModel(styles Styles) HistoryPageModel {
	return HistoryPageModel{
		viewport: viewport.New(80, 20),
		styles:   styles,
	}
}

// SetSize updates the size of the viewport.
func (m *HistoryPageModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.viewport.Width = w
	m.viewport.Height = h
	m.render()
}

// UpdateContent replaces the list. The cursor stays on the same index,
// clamped to the new length.
func (m *HistoryPageModel) UpdateContent(records []types.Record) {
	m.records = records
	if m.cursor >= len(records) {
		m.cursor = max(len(records)-1, 0)
	}
	m.render()
}

// Selected returns the record under the cursor.
func (m HistoryPageModel) Selected() (types.Record, bool) {
	if len(m.records) == 0 {
		return types.Record{}, false
	}
	return m.records[m.cursor], true
}

// MoveCursor moves the cursor by delta within bounds.
func (m *HistoryPageModel) MoveCursor(delta int) {
	if len(m.records) == 0 {
		return
	}
	m.cursor = min(max(m.cursor+delta, 0), len(m.records)-1)
	m.render()

	// Each entry is three lines tall.
	top := m.cursor * 3
	if top < m.viewport.YOffset {
		m.viewport.SetYOffset(top)
	} else if top+3 > m.viewport.YOffset+m.viewport.Height {
		m.viewport.SetYOffset(top + 3 - m.viewport.Height)
	}
}

func (m *HistoryPageModel) render() {
	if len(m.records) == 0 {
		m.viewport.SetContent(m.styles.Muted.Render("No history yet. Completed images are saved here automatically."))
		return
	}

	width := max(m.width-4, 20)
	var sb strings.Builder
	for i, r := range m.records {
		marker := "  "
		title := m.styles.Body
		if i == m.cursor {
			marker = m.styles.Selected.Render("▸ ")
			title = m.styles.Selected
		}
		sb.WriteString(marker)
		sb.WriteString(title.Render(truncate(oneLine(r.SourceText), width)))
		sb.WriteString("\n  ")
		sb.WriteString(m.styles.Muted.Render(fmt.Sprintf("%s  %s  %s  %s",
			r.CreatedAt.Format("2006-01-02 15:04"), r.Style.Label(), r.AspectRatio, shortID(r.ID))))
		sb.WriteString("\n\n")
	}
	m.viewport.SetContent(sb.String())
}

// Update handles messages.
func (m HistoryPageModel) Update(msg tea.Msg) (HistoryPageModel, tea.Cmd) {
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the page.
func (m HistoryPageModel) View() string {
	return m.viewport.View()
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, l int) string {
	r := []rune(s)
	if len(r) > l {
		return string(r[:l-3]) + "..."
	}
	return s
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
