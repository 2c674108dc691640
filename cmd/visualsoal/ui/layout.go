package ui

// Layout constants for consistent spacing
const (
	HeaderHeight = 2
	TabBarHeight = 2
	FooterHeight = 2
	InputHeight  = 6
	ErrorHeight  = 2

	MinimumTerminalWidth = 60
	CompactModeWidth     = 100
	ContentIndent        = 2
)

// LayoutConfig provides computed layout dimensions based on terminal size
type LayoutConfig struct {
	TerminalWidth  int
	TerminalHeight int
	IsCompact      bool
}

// NewLayoutConfig creates a layout configuration for the given terminal size
func NewLayoutConfig(width, height int) LayoutConfig {
	return LayoutConfig{
		TerminalWidth:  width,
		TerminalHeight: height,
		IsCompact:      width < CompactModeWidth,
	}
}

// ContentWidth returns the usable width for page content
func (l LayoutConfig) ContentWidth() int {
	return max(l.TerminalWidth-ContentIndent*2, MinimumTerminalWidth-ContentIndent*2)
}

// PageHeight returns the height left for a page below the chrome.
func (l LayoutConfig) PageHeight(withInput bool) int {
	h := l.TerminalHeight - HeaderHeight - TabBarHeight - FooterHeight - ErrorHeight
	if withInput {
		h -= InputHeight
	}
	return max(h, 3)
}
