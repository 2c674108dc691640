package generation

import (
	"fmt"
	"strings"

	"visualsoal/internal/types"
)

// styleTemplates holds the fixed visual-description fragment for each style.
var styleTemplates = map[types.Style]string{
	types.StyleThreeD:    "3D render, Pixar style animation, educational illustration, soft volumetric lighting, vibrant but balanced colors, high fidelity 8k.",
	types.StyleRealistic: "Cinematic documentary photography, national geographic style, highly detailed, 8k resolution, sociology context.",
	types.StyleFlat:      "Corporate memphis art style, modern vector illustration, flat design, clean lines, educational infographic style, pastel colors.",
	types.StyleSketch:    "Academic pencil sketch, architectural drawing style, graphite on paper, detailed shading, cross-hatching, black and white.",
}

// StyleTemplate returns the visual-description template for style.
// Unknown styles fall back to the 3D template.
func StyleTemplate(style types.Style) string {
	if tmpl, ok := styleTemplates[style]; ok {
		return tmpl
	}
	return styleTemplates[types.StyleThreeD]
}

const systemInstructionTemplate = `Role: Expert Educational Illustrator & Sociologist.
Task: Convert the provided Sociology stimulus (text) into a precise visual description (prompt) for an AI image generator.

Style: %s
Aspect Ratio: %s

Steps:
1. Analyze the input to identify key sociological concepts.
2. Formulate a visual scene (concrete, avoiding abstract symbols).
3. Construct a detailed English prompt.

Output JSON format strictly:
{
  "analysis": "%s explanation",
  "visualPrompt": "English image prompt"
}`

// SystemInstruction renders the analysis instruction for a style and ratio.
func SystemInstruction(style types.Style, ratio types.AspectRatio, analysisLanguage string) string {
	if strings.TrimSpace(analysisLanguage) == "" {
		analysisLanguage = DefaultAnalysisLanguage
	}
	return fmt.Sprintf(systemInstructionTemplate, StyleTemplate(style), ratio, analysisLanguage)
}

// BuildAnalysisRequest assembles the stage-1 request. The result depends
// only on its arguments.
func (c *Client) BuildAnalysisRequest(input string, style types.Style, ratio types.AspectRatio) TextRequest {
	return TextRequest{
		Model:             c.cfg.TextModel,
		SystemInstruction: SystemInstruction(style, ratio, c.cfg.AnalysisLanguage),
		UserText:          input,
		ResponseMIMEType:  "application/json",
		Temperature:       c.cfg.Temperature,
	}
}

// BuildImageRequest assembles the stage-2 request.
func (c *Client) BuildImageRequest(prompt string, ratio types.AspectRatio) ImageRequest {
	return ImageRequest{
		Model:       c.cfg.ImageModel,
		Prompt:      prompt,
		AspectRatio: ratio,
	}
}
