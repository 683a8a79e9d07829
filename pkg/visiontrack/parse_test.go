package visiontrack

import (
	"context"
	"errors"
	"image"
	"strings"
	"testing"

	"github.com/blueplan/drawing-analyzer/internal/apperrors"
	"github.com/blueplan/drawing-analyzer/pkg/types"
)

func testSlice() types.Slice {
	return types.Slice{
		ID:     types.SliceID{Row: 1, Col: 2},
		Width:  1024,
		Height: 1024,
		Image:  image.NewRGBA(image.Rect(0, 0, 1024, 1024)),
	}
}

func TestParseResponseObjectBBox(t *testing.T) {
	raw := `{"components":[{"id":"KZ1","type":"Column","shape":"rectangle",
		"dimensions":{"width":400,"height":400},
		"bbox":{"x":100,"y":200,"width":80,"height":90},
		"material":"C30","confidence":0.85,"ocr_match":"KZ1"}]}`

	got, err := ParseResponse(raw, testSlice())
	if err != nil {
		t.Fatalf("ParseResponse failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(got))
	}

	c := got[0]
	if c.Type != "column" {
		t.Errorf("type = %q, want lowercase column", c.Type)
	}
	if c.Label != "KZ1" || c.OCRMatch != "KZ1" {
		t.Errorf("label/ocr = %q/%q, want KZ1", c.Label, c.OCRMatch)
	}
	if c.BBox != (types.BBox{X: 100, Y: 200, Width: 80, Height: 90}) {
		t.Errorf("bbox = %+v", c.BBox)
	}
	if c.Geometry.Dimensions["width"] != 400 {
		t.Errorf("dimensions lost: %+v", c.Geometry.Dimensions)
	}
	if c.ID == "" || c.ID == "KZ1" {
		t.Error("candidate must get a generated id, keeping the model id as label")
	}
}

func TestParseResponseArrayBBoxAndBareArray(t *testing.T) {
	raw := "```json\n" + `[{"id":"L1","type":"beam","bbox":[10, 20, 200, 40],"confidence":0.7}]` + "\n```"

	got, err := ParseResponse(raw, testSlice())
	if err != nil {
		t.Fatalf("ParseResponse failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(got))
	}
	if got[0].BBox != (types.BBox{X: 10, Y: 20, Width: 200, Height: 40}) {
		t.Errorf("array bbox = %+v", got[0].BBox)
	}
}

func TestParseResponseMissingBBoxGetsPlaceholder(t *testing.T) {
	raw := `{"components":[
		{"id":"KZ2","type":"column","confidence":0.6},
		{"id":"KZ3","type":"column","bbox":null,"confidence":0.6},
		{"id":"KZ4","type":"column","bbox":{"x":1,"y":1,"width":0,"height":10},"confidence":0.6}]}`

	sl := testSlice()
	got, err := ParseResponse(raw, sl)
	if err != nil {
		t.Fatalf("ParseResponse failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(got))
	}
	want := PlaceholderBBox(sl)
	for i, c := range got {
		if c.BBox != want {
			t.Errorf("candidate %d bbox = %+v, want placeholder %+v", i, c.BBox, want)
		}
	}
	if want != (types.BBox{X: 256, Y: 256, Width: 512, Height: 512}) {
		t.Errorf("placeholder = %+v, want the central quarter", want)
	}
}

func TestParseResponseClipsToTile(t *testing.T) {
	raw := `{"components":[{"id":"W1","type":"wall",
		"bbox":{"x":1000,"y":-10,"width":100,"height":60},"confidence":0.5}]}`

	got, err := ParseResponse(raw, testSlice())
	if err != nil {
		t.Fatalf("ParseResponse failed: %v", err)
	}
	b := got[0].BBox
	if b.X != 1000 || b.Width != 24 {
		t.Errorf("x span = (%v,%v), want clipped to (1000,24)", b.X, b.Width)
	}
	if b.Y != 0 || b.Height != 50 {
		t.Errorf("y span = (%v,%v), want clipped to (0,50)", b.Y, b.Height)
	}
}

func TestParseResponseSkipsAnonymousEntries(t *testing.T) {
	raw := `{"components":[
		{"type":"","id":"","confidence":0.9},
		{"id":"KZ1","type":"column","bbox":{"x":0,"y":0,"width":10,"height":10},"confidence":1.4}]}`

	got, err := ParseResponse(raw, testSlice())
	if err != nil {
		t.Fatalf("ParseResponse failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected the anonymous entry dropped, got %d candidates", len(got))
	}
	if got[0].Confidence != 1 {
		t.Errorf("confidence = %v, want clamped to 1", got[0].Confidence)
	}
}

func TestParseResponseUnparseable(t *testing.T) {
	for _, raw := range []string{"", "The image shows a structural plan.", "{\"components\": [{"} {
		if _, err := ParseResponse(raw, testSlice()); err == nil {
			t.Errorf("ParseResponse(%q) succeeded, want error", raw)
		}
	}
}

func TestBuildPromptIncludesContext(t *testing.T) {
	ov := types.Overview{
		Project:      "Tower B",
		ComponentIDs: []string{"KZ1", "KZ2"},
		Materials:    []string{"C30"},
	}
	regions := []types.TextRegion{
		{Text: "KZ1", Category: types.CategoryComponentID, BBox: types.BBox{X: 10, Y: 10, Width: 40, Height: 12}},
		{Text: "300x600", Category: types.CategoryDimension, BBox: types.BBox{X: 50, Y: 80, Width: 60, Height: 12}},
	}

	prompt := BuildPrompt(ov, regions)
	for _, want := range []string{"Tower B", "KZ1, KZ2", "C30", `"KZ1" at (30,16)`, `"300x600"`, "JSON only"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	// component_id listed before dimension regardless of input order.
	if strings.Index(prompt, "component_id") > strings.Index(prompt, "dimension:") {
		t.Error("text groups out of order")
	}
}

type stubClient struct {
	response string
	err      error
	prompts  []string
}

func (s *stubClient) Query(_ context.Context, _ string, prompt string, _ string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	return s.response, s.err
}

func TestTrackRunWrapsFailures(t *testing.T) {
	stub := &stubClient{err: errors.New("connection refused")}
	track := New(stub, DefaultConfig("test-model"), nil)

	_, err := track.Run(context.Background(), testSlice(), types.Overview{}, nil)
	if err == nil {
		t.Fatal("expected error from failing client")
	}
	if apperrors.CodeOf(err) != apperrors.CodeTrackInference {
		t.Errorf("error code = %s, want %s", apperrors.CodeOf(err), apperrors.CodeTrackInference)
	}
}

func TestTrackRunParsesClientResponse(t *testing.T) {
	stub := &stubClient{response: `{"components":[{"id":"KZ9","type":"column","bbox":{"x":5,"y":5,"width":20,"height":20},"confidence":0.9}]}`}
	track := New(stub, DefaultConfig("test-model"), nil)

	got, err := track.Run(context.Background(), testSlice(), types.Overview{Project: "P"}, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(got) != 1 || got[0].Label != "KZ9" {
		t.Fatalf("unexpected candidates: %+v", got)
	}
	if got[0].Slice != (types.SliceID{Row: 1, Col: 2}) {
		t.Errorf("candidate slice = %v", got[0].Slice)
	}
	if len(stub.prompts) != 1 || !strings.Contains(stub.prompts[0], "project: P") {
		t.Error("overview context not threaded into the prompt")
	}
}
