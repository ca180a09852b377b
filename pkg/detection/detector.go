package detection

import (
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/deutschvfx-create/EduFlow-2026-Platform-sub000/pkg/client"
	"github.com/deutschvfx-create/EduFlow-2026-Platform-sub000/pkg/processing"
	"github.com/deutschvfx-create/EduFlow-2026-Platform-sub000/pkg/types"
)

// SimpleTestPrompt for testing if the model can see images
const SimpleTestPrompt = `What do you see in this image? Describe it briefly.`

// FacePrompt asks the model for the head-and-shoulders region of the person in a portrait
const FacePrompt = `You are a face locator for passport photos.

Return JSON only:
{
  "primary": {
    "label": "face",
    "confidence": 0.0,
    "box": {"x": 0.0, "y": 0.0, "w": 0.0, "h": 0.0},
    "cx": 0.0,
    "cy": 0.0
  },
  "description": "short neutral sentence (≤ 15 words)",
  "tags": ["tag1", "tag2", "tag3"]
}

HARD RULES
- All coordinates are normalized to [0,1] (NOT pixels), origin top-left.
- The box must tightly include the face of the main person, from the top of the hair to the chin.
- cx and cy are the center of that box.
- If several people are visible, pick the largest face.
- Do not guess real identities.
- If no face is found, return:
  {
    "primary":{"label":"none","confidence":0.0,"box":{"x":0.25,"y":0.25,"w":0.50,"h":0.50},"cx":0.5,"cy":0.5},
    "description":"no face found",
    "tags":["none"]
  }
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

// Options control how images are sent to the model
type Options struct {
	Model         string
	MaxDimension  int
	Quality       int
	MinConfidence float64
}

// DefaultOptions returns settings that keep requests small
func DefaultOptions(model string) Options {
	return Options{
		Model:         model,
		MaxDimension:  768,
		Quality:       85,
		MinConfidence: 0.3,
	}
}

// Detector locates faces using a vision model
type Detector struct {
	client    client.VisionClient
	processor *processing.Processor
	opts      Options
}

// NewDetector creates a new detector with a vision client
func NewDetector(vc client.VisionClient, opts Options) *Detector {
	if opts.MaxDimension <= 0 {
		opts.MaxDimension = 768
	}
	if opts.Quality <= 0 {
		opts.Quality = 85
	}
	return &Detector{client: vc, processor: processing.NewProcessor(), opts: opts}
}

// Locate returns the normalized face box in img. Answers below the confidence
// threshold, or without a face, yield the centered fallback box.
func (d *Detector) Locate(ctx context.Context, img image.Image) (types.Box, error) {
	imgB64, err := d.processor.PrepareImageForModel(img, "jpg", d.opts.MaxDimension, d.opts.Quality)
	if err != nil {
		return types.Box{}, fmt.Errorf("failed to prepare image: %w", err)
	}

	result, err := d.DetectFace(ctx, imgB64)
	if err != nil {
		return types.Box{}, err
	}
	if result.Primary.Label == "none" || result.Primary.Confidence < d.opts.MinConfidence {
		return client.FallbackBox, nil
	}
	return result.Primary.Box, nil
}

// DetectFace analyzes a base64 image and returns the model's cleaned-up answer
func (d *Detector) DetectFace(ctx context.Context, imageB64 string) (*types.AnalysisResult, error) {
	result, err := d.DetectWithPrompt(ctx, imageB64, FacePrompt)
	if err != nil {
		return nil, err
	}
	return validateAndAdjustResult(result), nil
}

// DetectWithPrompt analyzes an image with a custom prompt
func (d *Detector) DetectWithPrompt(ctx context.Context, imageB64, prompt string) (*types.AnalysisResult, error) {
	result, err := d.client.AnalyzeImage(ctx, d.opts.Model, prompt, imageB64)
	if err != nil {
		return nil, err
	}

	result.Primary.Box = normalizeBox(result.Primary.Box)
	result.Tags = normalizeTags(result.Tags)

	return result, nil
}

// TestVision tests if the model can actually see the image with a simple prompt
func (d *Detector) TestVision(ctx context.Context, imageB64 string) (string, error) {
	return d.client.SimpleQuery(ctx, d.opts.Model, SimpleTestPrompt, imageB64)
}

// validateAndAdjustResult marks fallback answers as "none" and keeps the center inside the box
func validateAndAdjustResult(result *types.AnalysisResult) *types.AnalysisResult {
	if strings.EqualFold(result.Primary.Label, "none") {
		result.Primary.Label = "none"
		return result
	}

	fallbackIndicators := []string{"unclear", "parse", "error", "fallback", "non-json"}
	for _, indicator := range fallbackIndicators {
		if strings.Contains(strings.ToLower(result.Primary.Label), indicator) {
			result.Primary.Label = "none"
			result.Primary.Confidence = 0.0
			return result
		}
	}

	if result.Primary.Box.W <= 0 || result.Primary.Box.H <= 0 {
		result.Primary.Label = "none"
		result.Primary.Confidence = 0.0
		result.Primary.Box = client.FallbackBox
	}

	c := result.Primary.Box.Center()
	result.Primary.Cx, result.Primary.Cy = c.X, c.Y
	return result
}

// clamp ensures a value is within the given bounds
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// normalizeBox keeps box coordinates within [0,1] and the box inside the frame
func normalizeBox(b types.Box) types.Box {
	x := clamp(b.X, 0, 1)
	y := clamp(b.Y, 0, 1)
	return types.Box{
		X: x,
		Y: y,
		W: clamp(b.W, 0, 1-x),
		H: clamp(b.H, 0, 1-y),
	}
}

// normalizeTags ensures tags are cleaned and limited to 5 entries
func normalizeTags(tags []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, 5)
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
		if len(out) == 5 {
			break
		}
	}
	return out
}
