package ui

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"visualsoal/internal/types"
)

func TestDetectTheme(t *testing.T) {
	t.Setenv("COLORFGBG", "")
	t.Setenv("VISUALSOAL_DARK_MODE", "1")
	if !DetectTheme().IsDark {
		t.Fatalf("expected dark theme when VISUALSOAL_DARK_MODE=1")
	}

	t.Setenv("VISUALSOAL_DARK_MODE", "")
	if DetectTheme().IsDark {
		t.Fatalf("expected light theme when VISUALSOAL_DARK_MODE is unset")
	}

	t.Setenv("COLORFGBG", "15;0")
	if !DetectTheme().IsDark {
		t.Fatalf("expected dark theme for a black background")
	}
}

func TestGeneratePageStates(t *testing.T) {
	page := NewGeneratePageModel(NewStyles(LightTheme()))
	page.SetSize(90, 40)

	st := types.NewState()
	page.UpdateContent(st, "*")
	view := page.View()
	if !strings.Contains(view, "[3D Render]") {
		t.Errorf("current style not highlighted:\n%s", view)
	}
	if !strings.Contains(view, "[16:9]") {
		t.Errorf("current ratio not highlighted:\n%s", view)
	}
	if !strings.Contains(view, "generated after the analysis") {
		t.Errorf("empty image placeholder missing:\n%s", view)
	}

	st.Analyzing = true
	page.UpdateContent(st, "*")
	if !strings.Contains(page.View(), "Analyzing") {
		t.Error("analysis spinner text missing")
	}

	st.Analyzing = false
	st.Analysis = "Konsep akulturasi"
	st.VisualPrompt = "market at dawn"
	page.UpdateContent(st, "*")
	view = page.View()
	if !strings.Contains(view, "market at dawn") || !strings.Contains(view, "ctrl+t") {
		t.Errorf("prompt state not rendered:\n%s", view)
	}

	st.Rendering = true
	page.UpdateContent(st, "*")
	if !strings.Contains(page.View(), "Drawing image") {
		t.Error("render spinner text missing")
	}

	st.Rendering = false
	st.ImageData = types.DataURL("image/png", make([]byte, 2048))
	page.UpdateContent(st, "*")
	if !strings.Contains(page.View(), "2.0 KB") {
		t.Errorf("image size not rendered:\n%s", page.View())
	}
}

func TestHistoryPageCursor(t *testing.T) {
	page := NewHistoryPageModel(NewStyles(LightTheme()))
	page.SetSize(80, 6)

	if _, ok := page.Selected(); ok {
		t.Fatal("empty page should have no selection")
	}
	page.MoveCursor(1)

	records := make([]types.Record, 5)
	for i := range records {
		records[i] = types.Record{
			ID:          fmt.Sprintf("record-%d-xxxxxxxx", i),
			CreatedAt:   time.Date(2025, 1, i+1, 10, 0, 0, 0, time.UTC),
			SourceText:  fmt.Sprintf("stimulus\nnumber %d", i),
			Style:       types.StyleFlat,
			AspectRatio: types.AspectSquare,
		}
	}
	page.UpdateContent(records)

	rec, ok := page.Selected()
	if !ok || rec.ID != records[0].ID {
		t.Fatalf("expected first record selected, got %+v", rec)
	}

	page.MoveCursor(10)
	rec, _ = page.Selected()
	if rec.ID != records[4].ID {
		t.Errorf("cursor should clamp to last record, got %s", rec.ID)
	}
	if !strings.Contains(page.View(), "stimulus number 4") {
		t.Errorf("selected record not visible after scrolling:\n%s", page.View())
	}

	page.UpdateContent(records[:2])
	rec, _ = page.Selected()
	if rec.ID != records[1].ID {
		t.Errorf("cursor should clamp after shrink, got %s", rec.ID)
	}

	page.MoveCursor(-5)
	rec, _ = page.Selected()
	if rec.ID != records[0].ID {
		t.Errorf("cursor should clamp to first record, got %s", rec.ID)
	}
}

func TestTruncateAndHumanBytes(t *testing.T) {
	if got := truncate("abcdefghij", 6); got != "abc..." {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("abc", 6); got != "abc" {
		t.Errorf("truncate short = %q", got)
	}
	if got := humanBytes(512); got != "512 B" {
		t.Errorf("humanBytes(512) = %q", got)
	}
	if got := humanBytes(3 << 20); got != "3.0 MB" {
		t.Errorf("humanBytes(3MB) = %q", got)
	}
}

func TestLayoutConfig(t *testing.T) {
	l := NewLayoutConfig(120, 40)
	if l.IsCompact {
		t.Error("120 columns should not be compact")
	}
	if l.ContentWidth() != 116 {
		t.Errorf("ContentWidth = %d", l.ContentWidth())
	}
	if l.PageHeight(true) >= l.PageHeight(false) {
		t.Error("input area should reduce page height")
	}
	if NewLayoutConfig(10, 5).PageHeight(true) != 3 {
		t.Error("page height should have a floor")
	}
}
