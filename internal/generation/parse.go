package generation

import (
	"encoding/json"
	"strings"

	"visualsoal/internal/types"
)

// ParsePromptResult extracts the stage-1 JSON object from raw model text.
// Models sometimes wrap the object in code fences or commentary, so only the
// span from the first '{' to the last '}' is decoded.
func ParsePromptResult(raw string) (types.PromptResult, error) {
	var result types.PromptResult

	if raw == "" {
		return result, types.Errorf(types.KindEmptyResponse, "model returned no text")
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end < start {
		return result, types.Errorf(types.KindMalformedResponse, "no JSON object in response")
	}

	if err := json.Unmarshal([]byte(raw[start:end+1]), &result); err != nil {
		return result, &types.Error{
			Kind:    types.KindMalformedResponse,
			Message: "response JSON did not decode",
			Cause:   err,
		}
	}
	return result, nil
}

// FirstImage scans parts in order and returns the first one carrying binary
// data as a data URL.
func FirstImage(parts []Part) (string, error) {
	for _, part := range parts {
		if len(part.Data) == 0 {
			continue
		}
		return types.DataURL(part.MIMEType, part.Data), nil
	}
	return "", types.Errorf(types.KindNoImageReturned, "%d parts without inline data", len(parts))
}
