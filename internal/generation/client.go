// Package generation wraps the two Gemini calls behind the pipeline: the
// analysis call that turns a stimulus into an analysis plus an English image
// prompt, and the render call that turns that prompt into an image.
package generation

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"visualsoal/internal/logging"
	"visualsoal/internal/types"

	"google.golang.org/genai"
)

// DefaultAnalysisLanguage is the language the analysis text is requested in.
const DefaultAnalysisLanguage = "Bahasa Indonesia"

// Backend is the transport to the generative endpoints.
type Backend interface {
	GenerateText(ctx context.Context, req TextRequest) (string, error)
	GenerateImage(ctx context.Context, req ImageRequest) ([]Part, error)
}

// TextRequest is a stage-1 call.
type TextRequest struct {
	Model             string
	SystemInstruction string
	UserText          string
	ResponseMIMEType  string
	Temperature       float32
}

// ImageRequest is a stage-2 call.
type ImageRequest struct {
	Model       string
	Prompt      string
	AspectRatio types.AspectRatio
}

// Part is one content part of an image response. Data is raw bytes.
type Part struct {
	Text     string
	Data     []byte
	MIMEType string
}

// Config holds the model selection for both stages.
type Config struct {
	TextModel        string
	ImageModel       string
	Temperature      float32
	AnalysisLanguage string
}

// DefaultConfig returns the models and temperature the tool was tuned with.
func DefaultConfig() Config {
	return Config{
		TextModel:        "gemini-3-flash-preview",
		ImageModel:       "gemini-2.5-flash-image",
		Temperature:      0.3,
		AnalysisLanguage: DefaultAnalysisLanguage,
	}
}

// Client performs the two generation stages. It never retries.
type Client struct {
	backend Backend
	cfg     Config
}

// NewClient creates a client over backend. Empty config fields take defaults.
func NewClient(backend Backend, cfg Config) *Client {
	def := DefaultConfig()
	if strings.TrimSpace(cfg.TextModel) == "" {
		cfg.TextModel = def.TextModel
	}
	if strings.TrimSpace(cfg.ImageModel) == "" {
		cfg.ImageModel = def.ImageModel
	}
	if cfg.AnalysisLanguage == "" {
		cfg.AnalysisLanguage = def.AnalysisLanguage
	}
	return &Client{backend: backend, cfg: cfg}
}

// AnalyzeAndPrompt runs stage 1. The caller guarantees input is non-empty
// after trimming.
func (c *Client) AnalyzeAndPrompt(ctx context.Context, input string, style types.Style, ratio types.AspectRatio) (types.PromptResult, error) {
	req := c.BuildAnalysisRequest(input, style, ratio)
	logging.GenerationDebug("Analyze: style=%s ratio=%s input_len=%d", style, ratio, len(input))

	raw, err := c.backend.GenerateText(ctx, req)
	if err != nil {
		logging.GenerationError("Analyze transport failure: %v", err)
		return types.PromptResult{}, types.NewError(types.KindTransport, err)
	}

	result, err := ParsePromptResult(raw)
	if err != nil {
		logging.GenerationError("Analyze parse failure: %v (raw_len=%d)", err, len(raw))
		return types.PromptResult{}, err
	}
	logging.Generation("Analyze: prompt_len=%d analysis_len=%d", len(result.VisualPrompt), len(result.Analysis))
	return result, nil
}

// RenderImage runs stage 2 and returns the image as a data URL. The caller
// guarantees prompt is non-empty.
func (c *Client) RenderImage(ctx context.Context, prompt string, ratio types.AspectRatio) (string, error) {
	req := c.BuildImageRequest(prompt, ratio)
	logging.GenerationDebug("Render: ratio=%s prompt_len=%d", ratio, len(prompt))

	parts, err := c.backend.GenerateImage(ctx, req)
	if err != nil {
		logging.GenerationError("Render transport failure: %v", err)
		return "", classifyImageError(err)
	}

	image, err := FirstImage(parts)
	if err != nil {
		logging.GenerationError("Render: %v", err)
		return "", err
	}
	logging.Generation("Render: image received (%d parts scanned)", len(parts))
	return image, nil
}

// classifyImageError separates "model not found / temporarily unavailable"
// from other transport failures so the user is told to retry later.
func classifyImageError(err error) error {
	if isModelUnavailable(err) {
		return types.NewError(types.KindModelUnavailable, err)
	}
	return types.NewError(types.KindTransport, err)
}

func isModelUnavailable(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return unavailableStatus(apiErr.Code, apiErr.Status)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return unavailableStatus(apiErrPtr.Code, apiErrPtr.Status)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return strings.Contains(err.Error(), "404")
}

func unavailableStatus(code int, status string) bool {
	switch code {
	case http.StatusNotFound, http.StatusServiceUnavailable:
		return true
	}
	switch status {
	case "NOT_FOUND", "UNAVAILABLE":
		return true
	}
	return false
}
