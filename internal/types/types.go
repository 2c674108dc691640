// Package types provides shared type definitions used across visualsoal packages.
// This package exists so generation, history, workflow and the renderers agree on
// one vocabulary without importing each other.
// Types in this package should be foundational data structures with no complex dependencies.
package types

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// ENUMERATIONS
// =============================================================================

// Style is the visual rendering style requested for a stimulus.
type Style string

const (
	StyleThreeD    Style = "3D"
	StyleRealistic Style = "REALISTIC"
	StyleFlat      Style = "FLAT"
	StyleSketch    Style = "SKETCH"
)

// Styles returns every supported style in display order.
func Styles() []Style {
	return []Style{StyleThreeD, StyleRealistic, StyleFlat, StyleSketch}
}

// Valid reports whether s is one of the closed set of styles.
func (s Style) Valid() bool {
	switch s {
	case StyleThreeD, StyleRealistic, StyleFlat, StyleSketch:
		return true
	}
	return false
}

// Label returns a short human label for menus.
func (s Style) Label() string {
	switch s {
	case StyleThreeD:
		return "3D Render"
	case StyleRealistic:
		return "Realistic"
	case StyleFlat:
		return "Flat Vector"
	case StyleSketch:
		return "Sketch"
	}
	return string(s)
}

// ParseStyle accepts the stored value ("3D", "REALISTIC", ...) in any case,
// plus the aliases "threed" and "three_d".
func ParseStyle(v string) (Style, error) {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "3D", "THREED", "THREE_D":
		return StyleThreeD, nil
	case "REALISTIC":
		return StyleRealistic, nil
	case "FLAT":
		return StyleFlat, nil
	case "SKETCH":
		return StyleSketch, nil
	}
	return "", fmt.Errorf("unknown style %q (valid: 3d, realistic, flat, sketch)", v)
}

// AspectRatio is the target frame of the generated image.
type AspectRatio string

const (
	AspectLandscape AspectRatio = "16:9"
	AspectSquare    AspectRatio = "1:1"
	AspectPortrait  AspectRatio = "9:16"
)

// AspectRatios returns every supported ratio in display order.
func AspectRatios() []AspectRatio {
	return []AspectRatio{AspectLandscape, AspectSquare, AspectPortrait}
}

// Valid reports whether r is one of the closed set of ratios.
func (r AspectRatio) Valid() bool {
	switch r {
	case AspectLandscape, AspectSquare, AspectPortrait:
		return true
	}
	return false
}

// Label returns a short human label for menus.
func (r AspectRatio) Label() string {
	switch r {
	case AspectLandscape:
		return "Landscape (16:9)"
	case AspectSquare:
		return "Square (1:1)"
	case AspectPortrait:
		return "Portrait (9:16)"
	}
	return string(r)
}

// ParseAspectRatio accepts either the ratio ("16:9") or its name ("landscape").
func ParseAspectRatio(v string) (AspectRatio, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "16:9", "landscape":
		return AspectLandscape, nil
	case "1:1", "square":
		return AspectSquare, nil
	case "9:16", "portrait":
		return AspectPortrait, nil
	}
	return "", fmt.Errorf("unknown aspect ratio %q (valid: 16:9, 1:1, 9:16)", v)
}

// =============================================================================
// RECORDS
// =============================================================================

// PromptResult is the structured payload returned by the analysis stage.
type PromptResult struct {
	Analysis     string `json:"analysis"`
	VisualPrompt string `json:"visualPrompt"`
}

// Record is one completed workflow persisted in history.
// Records are immutable once created; restoring one copies its values out.
type Record struct {
	ID           string
	CreatedAt    time.Time
	SourceText   string
	Style        Style
	AspectRatio  AspectRatio
	AnalysisText string
	VisualPrompt string
	ImageData    string // data URL, empty when no image was produced
}

// recordJSON is the stored layout. Field names match the documents written
// under the visual_soal_history_v1 key so existing history stays readable.
type recordJSON struct {
	ID           string      `json:"id"`
	Timestamp    int64       `json:"timestamp"`
	Input        string      `json:"input"`
	Style        Style       `json:"style"`
	Ratio        AspectRatio `json:"ratio"`
	Analysis     string      `json:"analysis"`
	VisualPrompt string      `json:"visualPrompt"`
	ImageBase64  string      `json:"imageBase64,omitempty"`
}

// MarshalJSON encodes the record in the stored history layout.
func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(recordJSON{
		ID:           r.ID,
		Timestamp:    r.CreatedAt.UnixMilli(),
		Input:        r.SourceText,
		Style:        r.Style,
		Ratio:        r.AspectRatio,
		Analysis:     r.AnalysisText,
		VisualPrompt: r.VisualPrompt,
		ImageBase64:  r.ImageData,
	})
}

// UnmarshalJSON decodes the stored history layout.
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw recordJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = Record{
		ID:           raw.ID,
		CreatedAt:    time.UnixMilli(raw.Timestamp),
		SourceText:   raw.Input,
		Style:        raw.Style,
		AspectRatio:  raw.Ratio,
		AnalysisText: raw.Analysis,
		VisualPrompt: raw.VisualPrompt,
		ImageData:    raw.ImageBase64,
	}
	return nil
}

// =============================================================================
// WORKING STATE
// =============================================================================

// Phase is the position of the working state in the two-stage pipeline.
type Phase string

const (
	PhaseIdle          Phase = "idle"
	PhaseAnalyzing     Phase = "analyzing"
	PhaseAnalyzedReady Phase = "analyzed"
	PhaseRendering     Phase = "rendering"
	PhaseComplete      Phase = "complete"
)

// View is the surface a renderer should show.
type View string

const (
	ViewGenerate View = "generate"
	ViewHistory  View = "history"
)

// State is the live, unsaved working data. Values handed out by the
// controller are snapshots; mutating them has no effect on the controller.
type State struct {
	Input       string      `json:"input"`
	Style       Style       `json:"style"`
	AspectRatio AspectRatio `json:"ratio"`

	Analysis     string `json:"analysis"`
	VisualPrompt string `json:"visualPrompt"`
	ImageData    string `json:"image,omitempty"`

	Analyzing bool `json:"analyzing"`
	Rendering bool `json:"rendering"`

	Phase     Phase  `json:"phase"`
	View      View   `json:"view"`
	Error     string `json:"error,omitempty"`
	ErrorKind Kind   `json:"errorKind,omitempty"`
}

// NewState returns the empty state created at process start.
func NewState() State {
	return State{
		Style:       StyleThreeD,
		AspectRatio: AspectLandscape,
		Phase:       PhaseIdle,
		View:        ViewGenerate,
	}
}

// Busy reports whether either stage has a call in flight.
func (s State) Busy() bool {
	return s.Analyzing || s.Rendering
}

// HasPrompt reports whether the render stage may be started.
func (s State) HasPrompt() bool {
	return s.VisualPrompt != ""
}
