// Package visiontrack is the structural inference track: per-slice
// multimodal prompting guided by the whole-image overview and the slice's
// classified text, with tolerant parsing of the model's component payload.
package visiontrack

import (
	"context"

	"github.com/blueplan/drawing-analyzer/internal/apperrors"
	"github.com/blueplan/drawing-analyzer/internal/logging"
	"github.com/blueplan/drawing-analyzer/pkg/client"
	"github.com/blueplan/drawing-analyzer/pkg/imageio"
	"github.com/blueplan/drawing-analyzer/pkg/types"
)

// Config controls how tile images are handed to the model.
type Config struct {
	Model       string
	SendFormat  string // jpg or png
	SendMaxDim  int    // long-side limit for the encoded tile, 0 = original
	SendQuality int    // JPEG quality
}

// DefaultConfig matches the tile sizes the slicer emits; no downscale.
func DefaultConfig(model string) Config {
	return Config{Model: model, SendFormat: "jpg", SendMaxDim: 0, SendQuality: 90}
}

// Track runs structural-component inference for single slices.
type Track struct {
	client client.VisionClient
	config Config
	log    *logging.Logger
}

// New creates a vision track over the given inference client.
func New(vc client.VisionClient, config Config, log *logging.Logger) *Track {
	if log == nil {
		log = logging.NewLogger("visiontrack")
	}
	return &Track{client: vc, config: config, log: log}
}

// Run infers the component candidates of one slice. Failures are returned as
// track-inference errors for the caller to flag; there is no retry here.
// Retry policy belongs to the batch orchestrator.
func (t *Track) Run(ctx context.Context, slice types.Slice, overview types.Overview, regions []types.TextRegion) ([]types.ComponentCandidate, error) {
	imgB64, err := imageio.PrepareForModel(slice.Image, t.config.SendFormat, t.config.SendMaxDim, t.config.SendQuality)
	if err != nil {
		return nil, apperrors.NewTrackInferenceError(slice.ID.String(), "vision", err)
	}

	prompt := BuildPrompt(overview, regions)
	raw, err := t.client.Query(ctx, t.config.Model, prompt, imgB64)
	if err != nil {
		return nil, apperrors.NewTrackInferenceError(slice.ID.String(), "vision", err)
	}

	candidates, err := ParseResponse(raw, slice)
	if err != nil {
		return nil, apperrors.NewTrackInferenceError(slice.ID.String(), "vision", err)
	}

	t.log.Debug("slice inferred", "slice", slice.ID, "candidates", len(candidates))
	return candidates, nil
}
