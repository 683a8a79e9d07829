// Package drawinganalyzer analyzes oversized raster engineering drawings.
// The source image is cut into overlapping tiles, each tile runs through a
// text recognition track and an overview-guided vision inference track, and
// the per-tile results are restored to whole-image coordinates and fused into
// one deduplicated, reading-ordered record set.
package drawinganalyzer

import (
	"context"
	"fmt"
	"image"

	"github.com/blueplan/drawing-analyzer/internal/apperrors"
	"github.com/blueplan/drawing-analyzer/internal/config"
	"github.com/blueplan/drawing-analyzer/internal/logging"
	"github.com/blueplan/drawing-analyzer/pkg/assemble"
	"github.com/blueplan/drawing-analyzer/pkg/batch"
	"github.com/blueplan/drawing-analyzer/pkg/cache"
	"github.com/blueplan/drawing-analyzer/pkg/client"
	"github.com/blueplan/drawing-analyzer/pkg/fusion"
	"github.com/blueplan/drawing-analyzer/pkg/gemini"
	"github.com/blueplan/drawing-analyzer/pkg/imageio"
	"github.com/blueplan/drawing-analyzer/pkg/llamacpp"
	"github.com/blueplan/drawing-analyzer/pkg/ocr"
	"github.com/blueplan/drawing-analyzer/pkg/ollama"
	"github.com/blueplan/drawing-analyzer/pkg/restore"
	"github.com/blueplan/drawing-analyzer/pkg/slicer"
	"github.com/blueplan/drawing-analyzer/pkg/texttrack"
	"github.com/blueplan/drawing-analyzer/pkg/types"
	"github.com/blueplan/drawing-analyzer/pkg/visiontrack"
)

// Options tunes a single analysis run.
type Options struct {
	// TileSize and Overlap override the configured tiling when positive.
	TileSize int
	Overlap  int

	// Slices, when set, skips slicing and analyzes the given tiles as-is.
	Slices []types.Slice

	// SliceIndices restricts the run to a subset of the tile grid, by index
	// in row-major order. Empty means all tiles.
	SliceIndices []int
}

// Analyzer is the analysis pipeline facade. One Analyzer is safe for
// sequential reuse across drawings; the content-addressed cache carries over.
type Analyzer struct {
	cfg        *config.Config
	recognizer ocr.Recognizer
	vc         client.VisionClient
	store      cache.Store
	engine     *fusion.Engine
	assembler  *assemble.Assembler
	log        *logging.Logger
}

// New builds an Analyzer from environment configuration with the real
// recognizer, cache, and inference backend.
func New(ctx context.Context) (*Analyzer, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return NewFromConfig(ctx, cfg)
}

// NewFromConfig builds an Analyzer with the real external services for cfg.
func NewFromConfig(ctx context.Context, cfg *config.Config) (*Analyzer, error) {
	vc, err := buildClient(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var store cache.Store
	if cfg.RedisURL != "" {
		store, err = cache.NewRedis(cfg.RedisURL, cfg.CacheTTL)
		if err != nil {
			return nil, fmt.Errorf("cache unavailable: %w", err)
		}
	} else {
		store = cache.NewMemory(cfg.CacheTTL)
	}

	return NewWith(cfg, ocr.NewTesseract(cfg.OCRLanguages...), vc, store), nil
}

// NewWith builds an Analyzer around injected collaborators. cfg may be nil
// for defaults.
func NewWith(cfg *config.Config, recognizer ocr.Recognizer, vc client.VisionClient, store cache.Store) *Analyzer {
	if cfg == nil {
		cfg = &config.Config{
			Backend:       config.BackendOllama,
			Model:         "minicpm-v4",
			TileSize:      1024,
			Overlap:       128,
			Concurrency:   4,
			BatchSize:     8,
			RetryAttempts: 3,
		}
	}
	return &Analyzer{
		cfg:        cfg,
		recognizer: recognizer,
		vc:         vc,
		store:      store,
		engine:     fusion.New(),
		assembler:  assemble.New(),
		log:        logging.NewLogger("analyzer"),
	}
}

func buildClient(ctx context.Context, cfg *config.Config) (client.VisionClient, error) {
	switch cfg.Backend {
	case config.BackendOllama:
		return ollama.NewClient(cfg.OllamaURL)
	case config.BackendLlamaCpp:
		return llamacpp.NewClient(cfg.LlamaCppURL)
	case config.BackendGemini:
		return gemini.NewClient(ctx, cfg.GoogleAPIKey)
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}

// AnalyzeFile loads and analyzes one drawing file.
func (a *Analyzer) AnalyzeFile(ctx context.Context, path string, opts Options) (*types.Result, error) {
	img, err := imageio.Load(path)
	if err != nil {
		return nil, apperrors.NewSliceIOError(fmt.Sprintf("cannot load %s", path), err)
	}
	return a.Analyze(ctx, img, opts)
}

// Analyze runs the full pipeline over one drawing: slice, extract both
// tracks, restore coordinates, fuse, assemble. Per-slice track failures are
// absorbed into the result's run statistics; the returned error is reserved
// for fatal pipeline failures.
func (a *Analyzer) Analyze(ctx context.Context, img image.Image, opts Options) (*types.Result, error) {
	if err := imageio.Validate(img); err != nil {
		return nil, apperrors.NewSliceIOError("invalid input image", err)
	}
	bounds := img.Bounds()
	imgW, imgH := bounds.Dx(), bounds.Dy()

	slices, cmap, err := a.slices(img, opts)
	if err != nil {
		return nil, err
	}
	slices, err = selectSlices(slices, opts.SliceIndices)
	if err != nil {
		return nil, err
	}

	text := texttrack.New(a.recognizer, a.store, nil)
	vision := visiontrack.New(a.vc, visiontrack.DefaultConfig(a.cfg.Model), nil)
	orch := batch.New(batch.Config{
		Concurrency: a.cfg.Concurrency,
		BatchSize:   a.cfg.BatchSize,
		MaxAttempts: uint64(a.cfg.RetryAttempts),
		RetryBase:   a.cfg.RetryBase,
	}, text, vision, a.log)

	buildOverview := func(ctx context.Context, regions []types.TextRegion, cmap types.CoordinateMap, w, h int) (types.Overview, error) {
		return texttrack.BuildOverview(ctx, a.vc, a.cfg.Model, regions, cmap, w, h)
	}

	out, err := orch.Run(ctx, slices, cmap, imgW, imgH, buildOverview)
	if err != nil {
		return nil, err
	}

	records, err := restore.New(cmap, slices).Restore(out.Regions, out.Candidates)
	if err != nil {
		return nil, err
	}

	merged, mergeStats, err := a.engine.Merge(records, cmap, imgW, imgH)
	if err != nil {
		return nil, err
	}

	res := a.assembler.Assemble(merged, out.Overview, mergeStats, out.Stats, imgW, imgH)
	a.log.Info("analysis complete",
		"slices", len(slices),
		"records", len(res.Records),
		"components", len(res.Components),
		"success_rate", res.Stats.SuccessRate())
	return res, nil
}

func (a *Analyzer) slices(img image.Image, opts Options) ([]types.Slice, types.CoordinateMap, error) {
	if len(opts.Slices) > 0 {
		return opts.Slices, slicer.BuildCoordinateMap(opts.Slices), nil
	}

	cfg := slicer.Config{TileSize: a.cfg.TileSize, Overlap: a.cfg.Overlap}
	if opts.TileSize > 0 {
		cfg.TileSize = opts.TileSize
	}
	if opts.Overlap > 0 {
		cfg.Overlap = opts.Overlap
	}
	return slicer.NewWithConfig(cfg).Slice(img)
}

// selectSlices applies the partial-range option.
func selectSlices(slices []types.Slice, indices []int) ([]types.Slice, error) {
	if len(indices) == 0 {
		return slices, nil
	}
	out := make([]types.Slice, 0, len(indices))
	for _, i := range indices {
		if i < 0 || i >= len(slices) {
			return nil, fmt.Errorf("slice index %d out of range, grid has %d tiles", i, len(slices))
		}
		out = append(out, slices[i])
	}
	return out, nil
}
