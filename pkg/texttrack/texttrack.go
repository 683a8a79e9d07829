// Package texttrack is the text recognition track: per-slice OCR through a
// content-addressed cache, semantic classification of every recognized
// string, and the whole-image overview used as advisory context by the
// vision track.
package texttrack

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/blueplan/drawing-analyzer/internal/apperrors"
	"github.com/blueplan/drawing-analyzer/internal/logging"
	"github.com/blueplan/drawing-analyzer/pkg/cache"
	"github.com/blueplan/drawing-analyzer/pkg/imageio"
	"github.com/blueplan/drawing-analyzer/pkg/ocr"
	"github.com/blueplan/drawing-analyzer/pkg/types"
)

// Track runs text recognition for single slices.
type Track struct {
	recognizer ocr.Recognizer
	store      cache.Store
	log        *logging.Logger
}

// New creates a text track. store may be nil to disable caching.
func New(recognizer ocr.Recognizer, store cache.Store, log *logging.Logger) *Track {
	if log == nil {
		log = logging.NewLogger("texttrack")
	}
	return &Track{recognizer: recognizer, store: store, log: log}
}

// Run recognizes one slice and classifies every recognized string. The
// content-addressed cache is consulted first; on a miss the recognizer runs
// and the result is cached before returning. The bool reports a cache hit.
func (t *Track) Run(ctx context.Context, slice types.Slice) ([]types.TextRegion, bool, error) {
	pixels, err := imageio.EncodePNG(slice.Image)
	if err != nil {
		return nil, false, apperrors.NewTrackInferenceError(slice.ID.String(), "text", err)
	}

	compute := func() ([]byte, error) {
		words, err := t.recognizer.Recognize(ctx, pixels)
		if err != nil {
			return nil, err
		}
		regions := regionsFromWords(words, slice.ID)
		return json.Marshal(regions)
	}

	var payload []byte
	hit := false
	if t.store != nil {
		payload, hit, err = cache.Fetch(ctx, t.store, cache.Key(slice.ID.String(), pixels), compute)
	} else {
		payload, err = compute()
	}
	if err != nil {
		return nil, false, apperrors.NewTrackInferenceError(slice.ID.String(), "text", err)
	}

	var regions []types.TextRegion
	if err := json.Unmarshal(payload, &regions); err != nil {
		return nil, hit, apperrors.NewTrackInferenceError(slice.ID.String(), "text",
			fmt.Errorf("corrupt cached payload: %w", err))
	}

	t.log.Debug("slice recognized", "slice", slice.ID, "regions", len(regions), "cache_hit", hit)
	return regions, hit, nil
}

func regionsFromWords(words []ocr.Word, id types.SliceID) []types.TextRegion {
	regions := make([]types.TextRegion, 0, len(words))
	for _, w := range words {
		regions = append(regions, types.TextRegion{
			Text:       w.Text,
			BBox:       types.BBox{X: w.X, Y: w.Y, Width: w.Width, Height: w.Height},
			Confidence: w.Confidence,
			Category:   Classify(w.Text),
			Slice:      id,
		})
	}
	return regions
}
