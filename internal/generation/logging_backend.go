package generation

import (
	"context"
	"time"

	"visualsoal/internal/logging"
)

// LoggingBackend wraps any Backend and records every call to the api log.
type LoggingBackend struct {
	underlying Backend
	slow       time.Duration
}

// NewLoggingBackend creates a logging wrapper. Calls slower than slow are
// logged as warnings.
func NewLoggingBackend(underlying Backend, slow time.Duration) *LoggingBackend {
	if slow <= 0 {
		slow = 30 * time.Second
	}
	return &LoggingBackend{underlying: underlying, slow: slow}
}

// GenerateText logs and forwards a stage-1 call.
func (b *LoggingBackend) GenerateText(ctx context.Context, req TextRequest) (string, error) {
	timer := logging.StartTimer(logging.CategoryAPI, "GenerateText "+req.Model)
	logging.APIDebug("GenerateText: model=%s temperature=%.2f mime=%s", req.Model, req.Temperature, req.ResponseMIMEType)

	text, err := b.underlying.GenerateText(ctx, req)
	elapsed := timer.StopWithThreshold(b.slow)
	if err != nil {
		logging.APIError("GenerateText failed after %v: %v", elapsed, err)
		return "", err
	}
	logging.API("GenerateText: model=%s response_len=%d duration=%v", req.Model, len(text), elapsed)
	return text, nil
}

// GenerateImage logs and forwards a stage-2 call.
func (b *LoggingBackend) GenerateImage(ctx context.Context, req ImageRequest) ([]Part, error) {
	timer := logging.StartTimer(logging.CategoryAPI, "GenerateImage "+req.Model)
	logging.APIDebug("GenerateImage: model=%s ratio=%s", req.Model, req.AspectRatio)

	parts, err := b.underlying.GenerateImage(ctx, req)
	elapsed := timer.StopWithThreshold(b.slow)
	if err != nil {
		logging.APIError("GenerateImage failed after %v: %v", elapsed, err)
		return nil, err
	}

	images := 0
	for _, p := range parts {
		if len(p.Data) > 0 {
			images++
		}
	}
	logging.API("GenerateImage: model=%s parts=%d image_parts=%d duration=%v", req.Model, len(parts), images, elapsed)
	return parts, nil
}
