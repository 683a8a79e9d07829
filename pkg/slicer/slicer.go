// Package slicer splits an oversized drawing into overlapping fixed-size
// tiles and builds the tile-to-offset coordinate map used for restoration.
package slicer

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"github.com/blueplan/drawing-analyzer/internal/apperrors"
	"github.com/blueplan/drawing-analyzer/pkg/imageio"
	"github.com/blueplan/drawing-analyzer/pkg/types"
)

// Config holds the tiling parameters.
type Config struct {
	TileSize int // tile edge length in pixels
	Overlap  int // overlap margin between adjacent tiles
	Page     int // source page, 0 for single-page scans
}

// DefaultConfig matches the batch limits of the external inference services.
func DefaultConfig() Config {
	return Config{TileSize: 1024, Overlap: 128}
}

// Validate checks the tiling parameters against the obvious degenerate cases.
func (c Config) Validate() error {
	if c.TileSize <= 0 {
		return fmt.Errorf("tile size must be positive, got %d", c.TileSize)
	}
	if c.Overlap < 0 || c.Overlap >= c.TileSize {
		return fmt.Errorf("overlap must be in [0, tile size), got %d", c.Overlap)
	}
	return nil
}

// Slicer produces slices and coordinate maps from whole drawings.
type Slicer struct {
	config Config
}

// New creates a Slicer with default configuration.
func New() *Slicer {
	return &Slicer{config: DefaultConfig()}
}

// NewWithConfig creates a Slicer with custom configuration.
func NewWithConfig(config Config) *Slicer {
	return &Slicer{config: config}
}

// Slice tiles the image row-major with stride = tile - overlap. Tiles that
// would extend past the image edge are clipped to the image bounds, never
// padded. The returned slices are ordered by (row, col).
func (s *Slicer) Slice(img image.Image) ([]types.Slice, types.CoordinateMap, error) {
	if err := s.config.Validate(); err != nil {
		return nil, nil, apperrors.NewSliceIOError("invalid tiling parameters", err)
	}
	if err := imageio.Validate(img); err != nil {
		return nil, nil, apperrors.NewSliceIOError("unreadable input image", err)
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	stride := s.config.TileSize - s.config.Overlap

	var slices []types.Slice
	cmap := types.CoordinateMap{}

	for row, y := 0, 0; y < height; row, y = row+1, y+stride {
		tileH := s.config.TileSize
		if y+tileH > height {
			tileH = height - y
		}
		for col, x := 0, 0; x < width; col, x = col+1, x+stride {
			tileW := s.config.TileSize
			if x+tileW > width {
				tileW = width - x
			}

			rect := image.Rect(bounds.Min.X+x, bounds.Min.Y+y, bounds.Min.X+x+tileW, bounds.Min.Y+y+tileH)
			tile := imaging.Crop(img, rect)

			id := types.SliceID{Row: row, Col: col}
			slices = append(slices, types.Slice{
				ID:      id,
				OffsetX: x,
				OffsetY: y,
				Width:   tileW,
				Height:  tileH,
				Page:    s.config.Page,
				Image:   tile,
			})
			cmap[id] = types.SliceOffset{OffsetX: x, OffsetY: y, Width: tileW, Height: tileH}

			// The clipped final column already reaches the right edge.
			if x+s.config.TileSize >= width {
				break
			}
		}
		if y+s.config.TileSize >= height {
			break
		}
	}

	return slices, cmap, nil
}

// BuildCoordinateMap rebuilds a coordinate map from slice metadata alone.
// Used when fusion receives precomputed slices without their map.
func BuildCoordinateMap(slices []types.Slice) types.CoordinateMap {
	cmap := make(types.CoordinateMap, len(slices))
	for _, sl := range slices {
		cmap[sl.ID] = types.SliceOffset{
			OffsetX: sl.OffsetX,
			OffsetY: sl.OffsetY,
			Width:   sl.Width,
			Height:  sl.Height,
		}
	}
	return cmap
}
