package types

import (
	"math"
	"testing"
)

func TestOverlapRatio(t *testing.T) {
	tests := []struct {
		name string
		a, b BBox
		want float64
	}{
		{
			name: "identical boxes",
			a:    BBox{X: 10, Y: 10, Width: 100, Height: 50},
			b:    BBox{X: 10, Y: 10, Width: 100, Height: 50},
			want: 1.0,
		},
		{
			name: "disjoint boxes",
			a:    BBox{X: 0, Y: 0, Width: 10, Height: 10},
			b:    BBox{X: 100, Y: 100, Width: 10, Height: 10},
			want: 0,
		},
		{
			name: "half horizontal overlap",
			a:    BBox{X: 0, Y: 0, Width: 100, Height: 100},
			b:    BBox{X: 50, Y: 0, Width: 100, Height: 100},
			want: 50.0 / 150.0,
		},
		{
			name: "degenerate box",
			a:    BBox{X: 0, Y: 0, Width: 0, Height: 10},
			b:    BBox{X: 0, Y: 0, Width: 10, Height: 10},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.a.OverlapRatio(tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("OverlapRatio = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTranslate(t *testing.T) {
	b := BBox{X: 5, Y: 7, Width: 20, Height: 30}
	got := b.Translate(100, 200)

	if got.X != 105 || got.Y != 207 {
		t.Errorf("Translate moved to (%v,%v), want (105,207)", got.X, got.Y)
	}
	if got.Width != 20 || got.Height != 30 {
		t.Errorf("Translate changed extent to %vx%v", got.Width, got.Height)
	}
	// Original must be untouched.
	if b.X != 5 || b.Y != 7 {
		t.Error("Translate mutated the receiver")
	}
}

func TestWithin(t *testing.T) {
	if !(BBox{X: 0, Y: 0, Width: 10, Height: 10}).Within(10, 10) {
		t.Error("box filling the frame should be within it")
	}
	if (BBox{X: 5, Y: 5, Width: 10, Height: 10}).Within(10, 10) {
		t.Error("box extending past the frame should not be within it")
	}
}

func TestSliceIDString(t *testing.T) {
	id := SliceID{Row: 2, Col: 3}
	if id.String() != "r2c3" {
		t.Errorf("SliceID.String() = %q, want %q", id.String(), "r2c3")
	}
}

func TestRunStatsSuccessRate(t *testing.T) {
	s := RunStats{
		TotalSlices:        12,
		FailedTextSlices:   []SliceID{{0, 0}},
		FailedVisionSlices: []SliceID{{0, 0}, {1, 1}},
	}
	if s.FailedSlices() != 2 {
		t.Errorf("FailedSlices = %d, want 2 (same slice counted once)", s.FailedSlices())
	}
	want := 10.0 / 12.0
	if math.Abs(s.SuccessRate()-want) > 1e-9 {
		t.Errorf("SuccessRate = %v, want %v", s.SuccessRate(), want)
	}
}
