package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestParseStyle(t *testing.T) {
	cases := map[string]Style{
		"3D":        StyleThreeD,
		"3d":        StyleThreeD,
		"realistic": StyleRealistic,
		" Flat ":    StyleFlat,
		"SKETCH":    StyleSketch,
	}
	for in, want := range cases {
		got, err := ParseStyle(in)
		if err != nil {
			t.Fatalf("ParseStyle(%q) returned error: %v", in, err)
		}
		if got != want {
			t.Errorf("ParseStyle(%q) = %s, want %s", in, got, want)
		}
	}
	if _, err := ParseStyle("watercolor"); err == nil {
		t.Error("expected error for unknown style")
	}
	for _, s := range Styles() {
		if !s.Valid() {
			t.Errorf("style %s should be valid", s)
		}
	}
}

func TestParseAspectRatio(t *testing.T) {
	cases := map[string]AspectRatio{
		"16:9":      AspectLandscape,
		"landscape": AspectLandscape,
		"1:1":       AspectSquare,
		"Square":    AspectSquare,
		"9:16":      AspectPortrait,
		"portrait":  AspectPortrait,
	}
	for in, want := range cases {
		got, err := ParseAspectRatio(in)
		if err != nil {
			t.Fatalf("ParseAspectRatio(%q) returned error: %v", in, err)
		}
		if got != want {
			t.Errorf("ParseAspectRatio(%q) = %s, want %s", in, got, want)
		}
	}
	if _, err := ParseAspectRatio("4:3"); err == nil {
		t.Error("expected error for unsupported ratio")
	}
}

func TestRecordJSONLayout(t *testing.T) {
	rec := Record{
		ID:           "abc",
		CreatedAt:    time.UnixMilli(1700000000123),
		SourceText:   "pasar tradisional",
		Style:        StyleSketch,
		AspectRatio:  AspectSquare,
		AnalysisText: "analisis",
		VisualPrompt: "a market",
	}

	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal into map failed: %v", err)
	}
	for _, key := range []string{"id", "timestamp", "input", "style", "ratio", "analysis", "visualPrompt"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("expected key %q in stored layout, got %s", key, data)
		}
	}
	if _, ok := raw["imageBase64"]; ok {
		t.Errorf("imageBase64 should be omitted when empty")
	}

	var back Record
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if !back.CreatedAt.Equal(rec.CreatedAt) || back.SourceText != rec.SourceText || back.Style != rec.Style {
		t.Errorf("decoded record mismatch: %+v", back)
	}
}

func TestKindOf(t *testing.T) {
	if KindOf(nil) != "" {
		t.Error("nil error should have no kind")
	}
	if got := KindOf(errors.New("boom")); got != KindTransport {
		t.Errorf("foreign error kind = %s, want %s", got, KindTransport)
	}
	wrapped := fmt.Errorf("stage 1: %w", NewError(KindMalformedResponse, errors.New("bad json")))
	if got := KindOf(wrapped); got != KindMalformedResponse {
		t.Errorf("wrapped kind = %s, want %s", got, KindMalformedResponse)
	}
	if !errors.Is(Errorf(KindBusy, "analysis in flight"), ErrBusy) {
		t.Error("errors.Is should match sentinel by kind")
	}
	if errors.Is(NewError(KindEmptyInput, nil), ErrBusy) {
		t.Error("different kinds must not match")
	}
}

func TestDetail(t *testing.T) {
	err := NewError(KindTransport, errors.New("quota exceeded"))
	if got := Detail(err); got != "quota exceeded" {
		t.Errorf("Detail = %q", got)
	}
	if got := Detail(Errorf(KindNoImageReturned, "3 text parts")); got != "3 text parts" {
		t.Errorf("Detail = %q", got)
	}
}

func TestDataURLRoundTrip(t *testing.T) {
	url := DataURL("image/png", []byte{0, 0, 0})
	if url != "data:image/png;base64,AAAA" {
		t.Fatalf("DataURL = %q", url)
	}
	mime, data, err := DecodeDataURL(url)
	if err != nil {
		t.Fatalf("DecodeDataURL failed: %v", err)
	}
	if mime != "image/png" || len(data) != 3 {
		t.Errorf("decoded %s %v", mime, data)
	}
	if _, _, err := DecodeDataURL("https://example.com/a.png"); err == nil {
		t.Error("expected error for non data URL")
	}
	if FileExtension("image/jpeg") != ".jpg" || FileExtension("") != ".png" {
		t.Error("unexpected file extension mapping")
	}
}

func TestNewStateDefaults(t *testing.T) {
	s := NewState()
	if s.Style != StyleThreeD || s.AspectRatio != AspectLandscape {
		t.Errorf("unexpected defaults: %+v", s)
	}
	if s.Phase != PhaseIdle || s.View != ViewGenerate || s.Busy() || s.HasPrompt() {
		t.Errorf("unexpected initial state: %+v", s)
	}
}
