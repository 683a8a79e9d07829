package types

import (
	"fmt"
	"image"
	"time"
)

// SliceID identifies a tile by its row/column position in the slicing grid.
type SliceID struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// String returns the canonical "r<row>c<col>" form used in cache keys and logs.
func (id SliceID) String() string {
	return fmt.Sprintf("r%dc%d", id.Row, id.Col)
}

// Slice is one rectangular, possibly overlapping crop of the source image.
// Slices are created once per run by the slicer and are never mutated; both
// extraction tracks borrow them read-only.
type Slice struct {
	ID      SliceID `json:"id"`
	OffsetX int     `json:"offset_x"`
	OffsetY int     `json:"offset_y"`
	Width   int     `json:"width"`
	Height  int     `json:"height"`
	Page    int     `json:"page"`

	// Image holds the tile's pixel buffer. It is not serialized.
	Image image.Image `json:"-"`
}

// SliceOffset records where a slice sits inside the full image.
type SliceOffset struct {
	OffsetX int `json:"offset_x"`
	OffsetY int `json:"offset_y"`
	Width   int `json:"width"`
	Height  int `json:"height"`
}

// CoordinateMap maps slice ids to their whole-image offsets. Built once per
// run and read-only during fusion.
type CoordinateMap map[SliceID]SliceOffset

// TextCategory is the semantic class assigned to a recognized string.
type TextCategory string

const (
	CategoryUnknown     TextCategory = "unknown"
	CategoryComponentID TextCategory = "component_id"
	CategoryDimension   TextCategory = "dimension"
	CategoryMaterial    TextCategory = "material"
	CategoryAxis        TextCategory = "axis"
	CategoryDescription TextCategory = "description"
)

// TextRegion is one recognized string with its tile-local bounding box.
type TextRegion struct {
	Text       string       `json:"text"`
	BBox       BBox         `json:"bbox"`
	Confidence float64      `json:"confidence"`
	Category   TextCategory `json:"category"`
	Slice      SliceID      `json:"slice"`
}

// Geometry describes a component's shape and its measured dimensions in mm.
type Geometry struct {
	Shape      string             `json:"shape,omitempty"`
	Dimensions map[string]float64 `json:"dimensions,omitempty"`
}

// ComponentCandidate is one structural component inferred from a single slice,
// with tile-local geometry. Produced by the vision track and consumed once by
// coordinate restoration.
type ComponentCandidate struct {
	ID         string   `json:"id"`
	Type       string   `json:"type"`
	Label      string   `json:"label,omitempty"`
	Geometry   Geometry `json:"geometry"`
	BBox       BBox     `json:"bbox"`
	Material   string   `json:"material,omitempty"`
	Role       string   `json:"structural_role,omitempty"`
	Confidence float64  `json:"confidence"`

	// OCRMatch is the classified text the model anchored this component to,
	// when it reported one. Raw preserves the model's original payload.
	OCRMatch string `json:"ocr_match,omitempty"`
	Raw      string `json:"raw,omitempty"`

	Slice SliceID `json:"slice"`
}

// RecordKind distinguishes the two merged record variants.
type RecordKind string

const (
	KindText      RecordKind = "text"
	KindComponent RecordKind = "component"
)

// Record is the uniform unit flowing through restoration and fusion. Exactly
// one of Region/Candidate is set, matching Kind. Global is filled by the
// coordinate restorer; Edge and ReadingOrder by the fusion engine.
type Record struct {
	ID   string     `json:"region_id"`
	Kind RecordKind `json:"kind"`

	Region    *TextRegion         `json:"region,omitempty"`
	Candidate *ComponentCandidate `json:"candidate,omitempty"`

	Local    BBox    `json:"local_bbox"`
	Global   BBox    `json:"global_bbox"`
	Restored bool    `json:"-"`
	Slice    SliceID `json:"slice"`

	Edge         bool `json:"is_edge,omitempty"`
	ReadingOrder int  `json:"reading_order"`
}

// Text returns the record's textual key used by dedup similarity.
func (r *Record) Text() string {
	switch {
	case r.Region != nil:
		return r.Region.Text
	case r.Candidate != nil:
		if r.Candidate.OCRMatch != "" {
			return r.Candidate.OCRMatch
		}
		if r.Candidate.Label != "" {
			return r.Candidate.Label
		}
		return r.Candidate.Type
	}
	return ""
}

// Category returns the record's text category; components map to component_id
// when OCR-anchored, otherwise unknown.
func (r *Record) Category() TextCategory {
	switch {
	case r.Region != nil:
		return r.Region.Category
	case r.Candidate != nil && r.Candidate.OCRMatch != "":
		return CategoryComponentID
	}
	return CategoryUnknown
}

// Confidence returns the producing track's confidence for this record.
func (r *Record) Confidence() float64 {
	switch {
	case r.Region != nil:
		return r.Region.Confidence
	case r.Candidate != nil:
		return r.Candidate.Confidence
	}
	return 0
}

// MergeStats summarizes one fusion pass.
type MergeStats struct {
	InputRecords      int `json:"input_records"`
	EdgeProtected     int `json:"edge_protected"`
	DuplicatesRemoved int `json:"duplicates_removed"`
	FinalRecords      int `json:"final_records"`
}

// RunStats aggregates per-slice outcomes across the whole run.
type RunStats struct {
	TotalSlices        int           `json:"total_slices"`
	FailedTextSlices   []SliceID     `json:"failed_text_slices,omitempty"`
	FailedVisionSlices []SliceID     `json:"failed_vision_slices,omitempty"`
	CacheHits          int           `json:"cache_hits"`
	CacheMisses        int           `json:"cache_misses"`
	OverviewFailed     bool          `json:"overview_failed,omitempty"`
	Elapsed            time.Duration `json:"elapsed_ns"`
}

// FailedSlices is the number of slices that failed at least one track.
func (s RunStats) FailedSlices() int {
	seen := map[SliceID]struct{}{}
	for _, id := range s.FailedTextSlices {
		seen[id] = struct{}{}
	}
	for _, id := range s.FailedVisionSlices {
		seen[id] = struct{}{}
	}
	return len(seen)
}

// SuccessRate is the fraction of slices that completed both tracks.
func (s RunStats) SuccessRate() float64 {
	if s.TotalSlices == 0 {
		return 1
	}
	return float64(s.TotalSlices-s.FailedSlices()) / float64(s.TotalSlices)
}

// Overview is the advisory whole-image description assembled by the text track.
type Overview struct {
	Project      string   `json:"project,omitempty"`
	DrawingNo    string   `json:"drawing_no,omitempty"`
	DrawingTitle string   `json:"drawing_title,omitempty"`
	Scale        string   `json:"scale,omitempty"`
	ComponentIDs []string `json:"component_ids,omitempty"`
	Materials    []string `json:"materials,omitempty"`
	Axes         []string `json:"axes,omitempty"`
	Summary      string   `json:"summary,omitempty"`
}

// ComponentRow is one line of the component/quantity view.
type ComponentRow struct {
	RegionID   string   `json:"region_id"`
	Label      string   `json:"label,omitempty"`
	Type       string   `json:"type"`
	Material   string   `json:"material,omitempty"`
	Role       string   `json:"structural_role,omitempty"`
	Geometry   Geometry `json:"geometry"`
	Area       float64  `json:"area_m2,omitempty"`
	Volume     float64  `json:"volume_m3,omitempty"`
	Confidence float64  `json:"confidence"`
	BBox       BBox     `json:"global_bbox"`
	Order      int      `json:"reading_order"`
}

// TextSummary is the text/overview view of the merged result.
type TextSummary struct {
	Overview       Overview `json:"overview"`
	ComponentIDs   []string `json:"component_ids,omitempty"`
	ComponentTypes []string `json:"component_types,omitempty"`
	Materials      []string `json:"materials,omitempty"`
	Axes           []string `json:"axes,omitempty"`
	TextRegions    int      `json:"text_regions"`
	Lines          []string `json:"lines,omitempty"`
}

// AggregateStats carries summary statistics over the merged records.
type AggregateStats struct {
	MeanConfidence   float64 `json:"mean_confidence"`
	StddevConfidence float64 `json:"stddev_confidence"`
	Components       int     `json:"components"`
	TextRegions      int     `json:"text_regions"`
}

// Result is the terminal artifact of one analysis run.
type Result struct {
	Records    []Record       `json:"records"`
	Text       TextSummary    `json:"text_summary"`
	Components []ComponentRow `json:"components"`
	Merge      MergeStats     `json:"merge_statistics"`
	Stats      RunStats       `json:"run_statistics"`
	Aggregate  AggregateStats `json:"aggregate_statistics"`
	ImageW     int            `json:"image_width"`
	ImageH     int            `json:"image_height"`
}
