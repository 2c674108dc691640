package ui

import (
	"fmt"
	"strings"

	"visualsoal/internal/types"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
)

// GeneratePageModel renders the working state: settings, analysis, prompt
// and the image area.
type GeneratePageModel struct {
	viewport viewport.Model
	renderer *glamour.TermRenderer
	styles   Styles
	width    int
	height   int
}

// NewGeneratePageModel creates the generate page.
func NewGeneratePageModel(styles Styles) GeneratePageModel {
	return GeneratePageModel{
		viewport: viewport.New(80, 20),
		renderer: newRenderer(styles, 76),
		styles:   styles,
	}
}

func newRenderer(styles Styles, wrap int) *glamour.TermRenderer {
	var r *glamour.TermRenderer
	if styles.Theme.IsDark {
		r, _ = glamour.NewTermRenderer(
			glamour.WithStylePath("dark"),
			glamour.WithWordWrap(wrap),
		)
	} else {
		r, _ = glamour.NewTermRenderer(
			glamour.WithStylePath("light"),
			glamour.WithWordWrap(wrap),
		)
	}
	return r
}

// SetSize updates the size of the viewport.
func (m *GeneratePageModel) SetSize(w, h int) {
	if w != m.width {
		m.renderer = newRenderer(m.styles, max(w-4, 20))
	}
	m.width = w
	m.height = h
	m.viewport.Width = w
	m.viewport.Height = h
}

// UpdateContent refreshes the viewport from a state snapshot. busy is the
// spinner frame shown while a stage runs.
func (m *GeneratePageModel) UpdateContent(st types.State, busy string) {
	var sb strings.Builder

	sb.WriteString(m.styles.Label.Render("Style: "))
	sb.WriteString(m.renderChoices(styleLabels(), string(st.Style)))
	sb.WriteString("\n")
	sb.WriteString(m.styles.Label.Render("Ratio: "))
	sb.WriteString(m.renderChoices(ratioLabels(), string(st.AspectRatio)))
	sb.WriteString("\n\n")

	sb.WriteString(m.styles.Title.Render("Analysis"))
	sb.WriteString("\n")
	switch {
	case st.Analyzing:
		sb.WriteString(busy + " Analyzing stimulus...\n")
	case st.Analysis != "":
		sb.WriteString(m.renderMarkdown(st.Analysis))
		sb.WriteString("\n")
	default:
		sb.WriteString(m.styles.Muted.Render("The sociology analysis appears here."))
		sb.WriteString("\n")
	}
	sb.WriteString("\n")

	sb.WriteString(m.styles.Title.Render("Visual prompt"))
	sb.WriteString("\n")
	if st.VisualPrompt != "" {
		sb.WriteString(m.styles.Prompt.Width(max(m.width-2, 10)).Render(st.VisualPrompt))
	} else {
		sb.WriteString(m.styles.Muted.Render("// The English image prompt appears here."))
	}
	sb.WriteString("\n\n")

	sb.WriteString(m.styles.Title.Render("Image"))
	sb.WriteString("\n")
	sb.WriteString(m.imageSummary(st, busy))
	sb.WriteString("\n")

	m.viewport.SetContent(sb.String())
}

func (m *GeneratePageModel) renderChoices(choices [][2]string, current string) string {
	parts := make([]string, 0, len(choices))
	for _, c := range choices {
		if c[0] == current {
			parts = append(parts, m.styles.Selected.Render("["+c[1]+"]"))
		} else {
			parts = append(parts, m.styles.Body.Render(" "+c[1]+" "))
		}
	}
	return strings.Join(parts, " ")
}

func (m *GeneratePageModel) renderMarkdown(text string) string {
	if m.renderer == nil {
		return m.styles.Analysis.Render(text)
	}
	out, err := m.renderer.Render(text)
	if err != nil {
		return m.styles.Analysis.Render(text)
	}
	return strings.TrimRight(out, "\n")
}

func (m *GeneratePageModel) imageSummary(st types.State, busy string) string {
	switch {
	case st.Rendering:
		return busy + " Drawing image..."
	case st.ImageData != "":
		mime, data, err := types.DecodeDataURL(st.ImageData)
		if err != nil {
			return m.styles.Warning.Render("Image data is unreadable: " + err.Error())
		}
		return m.styles.Success.Render("Image ready") +
			m.styles.Body.Render(fmt.Sprintf(" %s, %s (ctrl+o to save)", mime, humanBytes(len(data))))
	case st.VisualPrompt != "":
		return m.styles.Muted.Render("Press ctrl+t to generate the image.")
	}
	return m.styles.Muted.Render("The image is generated after the analysis.")
}

// Update handles messages.
func (m GeneratePageModel) Update(msg tea.Msg) (GeneratePageModel, tea.Cmd) {
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the page.
func (m GeneratePageModel) View() string {
	return m.viewport.View()
}

func styleLabels() [][2]string {
	out := make([][2]string, 0, 4)
	for _, s := range types.Styles() {
		out = append(out, [2]string{string(s), s.Label()})
	}
	return out
}

func ratioLabels() [][2]string {
	out := make([][2]string, 0, 3)
	for _, r := range types.AspectRatios() {
		out = append(out, [2]string{string(r), string(r)})
	}
	return out
}

func humanBytes(n int) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	}
	return fmt.Sprintf("%d B", n)
}
