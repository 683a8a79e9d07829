package texttrack

import (
	"context"
	"errors"
	"image"
	"image/color"
	"strings"
	"testing"

	"github.com/blueplan/drawing-analyzer/internal/apperrors"
	"github.com/blueplan/drawing-analyzer/pkg/cache"
	"github.com/blueplan/drawing-analyzer/pkg/ocr"
	"github.com/blueplan/drawing-analyzer/pkg/types"
)

type fakeRecognizer struct {
	calls int
	words []ocr.Word
	err   error
}

func (f *fakeRecognizer) Recognize(_ context.Context, _ []byte) ([]ocr.Word, error) {
	f.calls++
	return f.words, f.err
}

func testSlice(id types.SliceID, shade uint8) types.Slice {
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{R: shade, G: shade, B: shade, A: 255})
		}
	}
	return types.Slice{ID: id, Width: 64, Height: 64, Image: img}
}

func TestRunClassifiesRegions(t *testing.T) {
	rec := &fakeRecognizer{words: []ocr.Word{
		{Text: "KZ1", X: 10, Y: 10, Width: 40, Height: 12, Confidence: 0.95},
		{Text: "C30", X: 10, Y: 30, Width: 30, Height: 12, Confidence: 0.9},
	}}
	track := New(rec, nil, nil)

	regions, hit, err := track.Run(context.Background(), testSlice(types.SliceID{}, 200))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if hit {
		t.Error("uncached track must not report a cache hit")
	}
	if len(regions) != 2 {
		t.Fatalf("expected 2 regions, got %d", len(regions))
	}
	if regions[0].Category != types.CategoryComponentID || regions[1].Category != types.CategoryMaterial {
		t.Errorf("categories = %s, %s", regions[0].Category, regions[1].Category)
	}
	if regions[0].BBox != (types.BBox{X: 10, Y: 10, Width: 40, Height: 12}) {
		t.Errorf("bbox = %+v", regions[0].BBox)
	}
}

func TestRunReusesCachedPixels(t *testing.T) {
	rec := &fakeRecognizer{words: []ocr.Word{{Text: "KZ1", Width: 40, Height: 12, Confidence: 0.9}}}
	store := cache.NewMemory(0)
	track := New(rec, store, nil)
	slice := testSlice(types.SliceID{Row: 0, Col: 0}, 120)

	first, hit, err := track.Run(context.Background(), slice)
	if err != nil || hit {
		t.Fatalf("first run: hit=%v err=%v", hit, err)
	}

	second, hit, err := track.Run(context.Background(), slice)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if !hit {
		t.Error("identical pixels must hit the cache")
	}
	if rec.calls != 1 {
		t.Errorf("recognizer called %d times, want 1", rec.calls)
	}
	if len(second) != len(first) || second[0].Text != first[0].Text {
		t.Errorf("cached result differs: %+v vs %+v", second, first)
	}

	// Different pixels under the same slice id must miss.
	if _, hit, _ = track.Run(context.Background(), testSlice(types.SliceID{Row: 0, Col: 0}, 121)); hit {
		t.Error("different pixels must not reuse the cached entry")
	}
}

func TestRunRecognizerFailure(t *testing.T) {
	rec := &fakeRecognizer{err: errors.New("tesseract unavailable")}
	track := New(rec, cache.NewMemory(0), nil)

	_, _, err := track.Run(context.Background(), testSlice(types.SliceID{Row: 2, Col: 1}, 90))
	if err == nil {
		t.Fatal("expected recognizer error to surface")
	}
	if apperrors.CodeOf(err) != apperrors.CodeTrackInference {
		t.Errorf("error code = %s, want %s", apperrors.CodeOf(err), apperrors.CodeTrackInference)
	}
	if apperrors.IsFatal(err) {
		t.Error("track failures are per-slice, not fatal")
	}
}

type fakeSummarizer struct {
	response string
	err      error
	prompt   string
}

func (f *fakeSummarizer) Query(_ context.Context, _ string, prompt string, _ string) (string, error) {
	f.prompt = prompt
	return f.response, f.err
}

func overviewRegions() []types.TextRegion {
	a := types.SliceID{Row: 0, Col: 0}
	b := types.SliceID{Row: 1, Col: 0}
	return []types.TextRegion{
		{Text: "KZ1", Category: types.CategoryComponentID, BBox: types.BBox{X: 10, Y: 10, Width: 40, Height: 12}, Slice: a},
		{Text: "kz1", Category: types.CategoryComponentID, BBox: types.BBox{X: 200, Y: 10, Width: 40, Height: 12}, Slice: a},
		{Text: "C30", Category: types.CategoryMaterial, BBox: types.BBox{X: 10, Y: 40, Width: 30, Height: 12}, Slice: b},
		{Text: "A", Category: types.CategoryAxis, BBox: types.BBox{X: 5, Y: 5, Width: 10, Height: 10}, Slice: a},
	}
}

func TestBuildOverviewCollectsDistinctSets(t *testing.T) {
	ov, err := BuildOverview(context.Background(), nil, "", overviewRegions(), nil, 2048, 2048)
	if err != nil {
		t.Fatalf("BuildOverview without summarizer failed: %v", err)
	}
	if len(ov.ComponentIDs) != 1 || ov.ComponentIDs[0] != "KZ1" {
		t.Errorf("component ids = %v, want case-folded distinct [KZ1]", ov.ComponentIDs)
	}
	if len(ov.Materials) != 1 || ov.Materials[0] != "C30" {
		t.Errorf("materials = %v", ov.Materials)
	}
	if len(ov.Axes) != 1 || ov.Axes[0] != "A" {
		t.Errorf("axes = %v", ov.Axes)
	}
}

func TestBuildOverviewSummarizes(t *testing.T) {
	sum := &fakeSummarizer{response: `{"project":"Tower B","drawing_no":"S-102","scale":"1:100","summary":"Column layout plan."}`}
	cmap := types.CoordinateMap{
		{Row: 0, Col: 0}: {OffsetX: 0, OffsetY: 0},
		{Row: 1, Col: 0}: {OffsetX: 0, OffsetY: 896},
	}

	ov, err := BuildOverview(context.Background(), sum, "m", overviewRegions(), cmap, 2048, 2048)
	if err != nil {
		t.Fatalf("BuildOverview failed: %v", err)
	}
	if ov.Project != "Tower B" || ov.DrawingNo != "S-102" || ov.Scale != "1:100" {
		t.Errorf("summary fields not filled: %+v", ov)
	}
	// The stream reaches the summarizer in reading order across slices.
	if !strings.Contains(sum.prompt, "A\nKZ1\nkz1\nC30") {
		t.Errorf("stream out of order:\n%s", sum.prompt)
	}
}

func TestBuildOverviewSummarizerFailureIsSoft(t *testing.T) {
	sum := &fakeSummarizer{err: errors.New("model offline")}

	ov, err := BuildOverview(context.Background(), sum, "m", overviewRegions(), nil, 2048, 2048)
	if err == nil {
		t.Fatal("expected the summary failure to be reported")
	}
	if len(ov.ComponentIDs) != 1 {
		t.Error("deterministic overview fields must survive a summarizer failure")
	}
}
