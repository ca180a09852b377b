package client

import (
	"context"

	"github.com/deutschvfx-create/EduFlow-2026-Platform-sub000/pkg/types"
)

// VisionClient talks to a multimodal model server.
type VisionClient interface {
	SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error)
	AnalyzeImage(ctx context.Context, model, prompt, imgB64 string) (*types.AnalysisResult, error)
}
