package assemble

import (
	"math"
	"testing"

	"github.com/blueplan/drawing-analyzer/pkg/types"
)

func mergedRecords() []types.Record {
	return []types.Record{
		{
			ID: "t1", Kind: types.KindText, ReadingOrder: 0, Restored: true,
			Global: types.BBox{X: 10, Y: 10, Width: 40, Height: 12},
			Region: &types.TextRegion{Text: "KZ1", Category: types.CategoryComponentID, Confidence: 0.9},
		},
		{
			ID: "c1", Kind: types.KindComponent, ReadingOrder: 1, Restored: true,
			Global: types.BBox{X: 100, Y: 100, Width: 400, Height: 400},
			Candidate: &types.ComponentCandidate{
				Type: "column", Label: "KZ1", Material: "C30", Confidence: 0.8,
				Geometry: types.Geometry{
					Shape:      "rectangle",
					Dimensions: map[string]float64{"width": 400, "height": 600, "depth": 3000},
				},
			},
		},
		{
			ID: "t2", Kind: types.KindText, ReadingOrder: 2, Restored: true,
			Global: types.BBox{X: 10, Y: 200, Width: 30, Height: 12},
			Region: &types.TextRegion{Text: "C30", Category: types.CategoryMaterial, Confidence: 0.7},
		},
	}
}

func TestAssembleBuildsViews(t *testing.T) {
	ov := types.Overview{Project: "Tower B"}
	res := New().Assemble(mergedRecords(), ov, types.MergeStats{FinalRecords: 3}, types.RunStats{TotalSlices: 12}, 3600, 2700)

	if res.ImageW != 3600 || res.ImageH != 2700 {
		t.Errorf("image size = %dx%d", res.ImageW, res.ImageH)
	}
	if res.Text.Overview.Project != "Tower B" {
		t.Error("overview not carried through")
	}
	if res.Text.TextRegions != 2 || len(res.Text.Lines) != 2 {
		t.Errorf("text view: %d regions, %d lines", res.Text.TextRegions, len(res.Text.Lines))
	}
	if len(res.Text.ComponentIDs) != 1 || res.Text.ComponentIDs[0] != "KZ1" {
		t.Errorf("component ids = %v", res.Text.ComponentIDs)
	}
	if len(res.Text.Materials) != 1 || res.Text.Materials[0] != "C30" {
		t.Errorf("materials = %v, want deduped across tracks", res.Text.Materials)
	}

	if len(res.Components) != 1 {
		t.Fatalf("component rows = %d", len(res.Components))
	}
	row := res.Components[0]
	if math.Abs(row.Area-0.24) > 1e-9 {
		t.Errorf("area = %v m2, want 0.24", row.Area)
	}
	if math.Abs(row.Volume-0.72) > 1e-9 {
		t.Errorf("volume = %v m3, want 0.72", row.Volume)
	}
	if row.Order != 1 || row.RegionID != "c1" {
		t.Errorf("row identity = %+v", row)
	}

	if math.Abs(res.Aggregate.MeanConfidence-0.8) > 1e-9 {
		t.Errorf("mean confidence = %v, want 0.8", res.Aggregate.MeanConfidence)
	}
	if res.Aggregate.StddevConfidence <= 0 {
		t.Error("stddev must be positive for spread confidences")
	}
	if res.Aggregate.Components != 1 || res.Aggregate.TextRegions != 2 {
		t.Errorf("aggregate counts = %+v", res.Aggregate)
	}
}

func TestAssembleSortsByReadingOrder(t *testing.T) {
	records := mergedRecords()
	records[0], records[2] = records[2], records[0]

	res := New().Assemble(records, types.Overview{}, types.MergeStats{}, types.RunStats{}, 100, 100)
	for i, r := range res.Records {
		if r.ReadingOrder != i {
			t.Errorf("record %d has reading order %d", i, r.ReadingOrder)
		}
	}
	if res.Text.Lines[0] != "KZ1" {
		t.Errorf("lines follow reading order, got %v", res.Text.Lines)
	}
}

func TestAssembleEmptyInput(t *testing.T) {
	res := New().Assemble(nil, types.Overview{}, types.MergeStats{}, types.RunStats{TotalSlices: 1}, 10, 10)
	if res == nil || len(res.Records) != 0 {
		t.Fatal("empty input must yield a well-formed empty result")
	}
	if len(res.Components) != 0 || res.Text.TextRegions != 0 {
		t.Errorf("empty result has content: %+v", res)
	}
	if res.Aggregate.MeanConfidence != 0 {
		t.Errorf("mean confidence = %v, want 0", res.Aggregate.MeanConfidence)
	}
}

func TestQuantitiesMissingDimensions(t *testing.T) {
	tests := []struct {
		dims      map[string]float64
		area, vol float64
	}{
		{nil, 0, 0},
		{map[string]float64{"width": 400}, 0, 0},
		{map[string]float64{"width": 400, "height": 600}, 0.24, 0},
	}
	for _, tt := range tests {
		area, vol := quantities(types.Geometry{Dimensions: tt.dims})
		if math.Abs(area-tt.area) > 1e-9 || math.Abs(vol-tt.vol) > 1e-9 {
			t.Errorf("quantities(%v) = (%v,%v), want (%v,%v)", tt.dims, area, vol, tt.area, tt.vol)
		}
	}
}
