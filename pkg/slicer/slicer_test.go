package slicer

import (
	"image"
	"image/color"
	"testing"

	"github.com/blueplan/drawing-analyzer/pkg/types"
)

// createTestImage creates a gray test image of the given size.
func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{200, 200, 200, 255})
		}
	}
	return img
}

func TestSliceGrid(t *testing.T) {
	s := NewWithConfig(Config{TileSize: 1024, Overlap: 128})
	img := createTestImage(3600, 2700)

	slices, cmap, err := s.Slice(img)
	if err != nil {
		t.Fatalf("Slice failed: %v", err)
	}

	// stride = 896: columns at 0, 896, 1792, 2688; rows at 0, 896, 1792.
	if len(slices) != 12 {
		t.Fatalf("expected 12 slices, got %d", len(slices))
	}
	if len(cmap) != 12 {
		t.Fatalf("expected 12 coordinate map entries, got %d", len(cmap))
	}

	for _, sl := range slices {
		off, ok := cmap[sl.ID]
		if !ok {
			t.Fatalf("slice %s missing from coordinate map", sl.ID)
		}
		if off.OffsetX != sl.OffsetX || off.OffsetY != sl.OffsetY {
			t.Errorf("slice %s: map offset (%d,%d) != slice offset (%d,%d)",
				sl.ID, off.OffsetX, off.OffsetY, sl.OffsetX, sl.OffsetY)
		}
		if sl.Image == nil {
			t.Errorf("slice %s has no pixel buffer", sl.ID)
		}
		b := sl.Image.Bounds()
		if b.Dx() != sl.Width || b.Dy() != sl.Height {
			t.Errorf("slice %s: buffer %dx%d != declared %dx%d",
				sl.ID, b.Dx(), b.Dy(), sl.Width, sl.Height)
		}
		// Every slice must stay within image bounds; edge tiles are clipped.
		if sl.OffsetX+sl.Width > 3600 || sl.OffsetY+sl.Height > 2700 {
			t.Errorf("slice %s extends past image bounds", sl.ID)
		}
	}

	// Last column and row are clipped, not padded.
	last := slices[len(slices)-1]
	if last.ID != (types.SliceID{Row: 2, Col: 3}) {
		t.Errorf("last slice id = %s, want r2c3", last.ID)
	}
	if last.Width != 3600-2688 || last.Height != 2700-1792 {
		t.Errorf("last slice %dx%d, want %dx%d", last.Width, last.Height, 3600-2688, 2700-1792)
	}
}

func TestSliceSmallImage(t *testing.T) {
	s := NewWithConfig(Config{TileSize: 1024, Overlap: 128})
	img := createTestImage(500, 400)

	slices, _, err := s.Slice(img)
	if err != nil {
		t.Fatalf("Slice failed: %v", err)
	}
	if len(slices) != 1 {
		t.Fatalf("image smaller than one tile should yield 1 slice, got %d", len(slices))
	}
	if slices[0].Width != 500 || slices[0].Height != 400 {
		t.Errorf("slice %dx%d, want 500x400", slices[0].Width, slices[0].Height)
	}
}

func TestSliceOverlap(t *testing.T) {
	s := NewWithConfig(Config{TileSize: 100, Overlap: 20})
	img := createTestImage(180, 100)

	slices, _, err := s.Slice(img)
	if err != nil {
		t.Fatalf("Slice failed: %v", err)
	}
	if len(slices) != 2 {
		t.Fatalf("expected 2 slices, got %d", len(slices))
	}
	// Second tile starts at stride = 80 so the pair shares a 20px band.
	if slices[1].OffsetX != 80 {
		t.Errorf("second slice offset = %d, want 80", slices[1].OffsetX)
	}
}

func TestSliceInvalidInput(t *testing.T) {
	s := New()

	if _, _, err := s.Slice(nil); err == nil {
		t.Error("expected error for nil image")
	}
	if _, _, err := s.Slice(image.NewRGBA(image.Rect(0, 0, 0, 0))); err == nil {
		t.Error("expected error for zero-size image")
	}

	bad := NewWithConfig(Config{TileSize: 100, Overlap: 100})
	if _, _, err := bad.Slice(createTestImage(200, 200)); err == nil {
		t.Error("expected error for overlap >= tile size")
	}
}

func TestBuildCoordinateMap(t *testing.T) {
	slices := []types.Slice{
		{ID: types.SliceID{Row: 0, Col: 0}, OffsetX: 0, OffsetY: 0, Width: 100, Height: 100},
		{ID: types.SliceID{Row: 0, Col: 1}, OffsetX: 80, OffsetY: 0, Width: 100, Height: 100},
	}

	cmap := BuildCoordinateMap(slices)
	if len(cmap) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(cmap))
	}
	off := cmap[types.SliceID{Row: 0, Col: 1}]
	if off.OffsetX != 80 || off.Width != 100 {
		t.Errorf("rebuilt offset = %+v, want OffsetX 80 Width 100", off)
	}
}
