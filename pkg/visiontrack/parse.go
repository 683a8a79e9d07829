package visiontrack

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/blueplan/drawing-analyzer/pkg/client"
	"github.com/blueplan/drawing-analyzer/pkg/types"
)

// rawComponent mirrors the model's response schema with a deferred bbox so
// both object and array forms decode.
type rawComponent struct {
	ID          string             `json:"id"`
	Type        string             `json:"type"`
	Shape       string             `json:"shape"`
	Dimensions  map[string]float64 `json:"dimensions"`
	BBox        json.RawMessage    `json:"bbox"`
	Material    string             `json:"material"`
	Role        string             `json:"structural_role"`
	Connections []string           `json:"connections"`
	Confidence  float64            `json:"confidence"`
	OCRMatch    string             `json:"ocr_match"`
}

type rawResponse struct {
	Components []rawComponent `json:"components"`
}

// bboxObject is the {x,y,width,height} form; w/h accepted as aliases.
type bboxObject struct {
	X      float64  `json:"x"`
	Y      float64  `json:"y"`
	Width  *float64 `json:"width"`
	Height *float64 `json:"height"`
	W      *float64 `json:"w"`
	H      *float64 `json:"h"`
}

// ParseResponse parses a model response into component candidates for one
// slice. Parsing is tolerant: fenced or annotated JSON is sanitized first,
// bbox may be an object or a 4-element array, and a candidate missing its
// bbox gets a deterministic placeholder covering the tile's central quarter
// rather than being dropped. Unparseable responses are an error; the caller
// flags the slice and moves on.
func ParseResponse(raw string, slice types.Slice) ([]types.ComponentCandidate, error) {
	cleaned := client.SanitizeModelJSON(raw)
	if cleaned == "" {
		return nil, fmt.Errorf("empty model response")
	}

	var resp rawResponse
	if strings.HasPrefix(cleaned, "[") {
		// Some models return the component array bare.
		if err := json.Unmarshal([]byte(cleaned), &resp.Components); err != nil {
			return nil, fmt.Errorf("unparseable component array: %w", err)
		}
	} else if err := json.Unmarshal([]byte(cleaned), &resp); err != nil {
		return nil, fmt.Errorf("unparseable model response: %w", err)
	}

	candidates := make([]types.ComponentCandidate, 0, len(resp.Components))
	for _, rc := range resp.Components {
		if rc.Type == "" && rc.ID == "" {
			continue
		}

		rawPayload, _ := json.Marshal(rc)
		candidates = append(candidates, types.ComponentCandidate{
			ID:    uuid.NewString(),
			Type:  normalizeType(rc.Type),
			Label: rc.ID,
			Geometry: types.Geometry{
				Shape:      rc.Shape,
				Dimensions: rc.Dimensions,
			},
			BBox:       parseBBox(rc.BBox, slice),
			Material:   rc.Material,
			Role:       rc.Role,
			Confidence: clampConfidence(rc.Confidence),
			OCRMatch:   rc.OCRMatch,
			Raw:        string(rawPayload),
			Slice:      slice.ID,
		})
	}
	return candidates, nil
}

// parseBBox accepts {x,y,width,height}, {x,y,w,h}, or [x,y,w,h]. Absent or
// malformed boxes fall back to PlaceholderBBox; a candidate is never
// dropped solely for a missing box.
func parseBBox(raw json.RawMessage, slice types.Slice) types.BBox {
	if len(raw) == 0 || string(raw) == "null" {
		return PlaceholderBBox(slice)
	}

	var obj bboxObject
	if err := json.Unmarshal(raw, &obj); err == nil {
		w, h := coalesce(obj.Width, obj.W), coalesce(obj.Height, obj.H)
		if w > 0 && h > 0 {
			return clipToSlice(types.BBox{X: obj.X, Y: obj.Y, Width: w, Height: h}, slice)
		}
	}

	var arr []float64
	if err := json.Unmarshal(raw, &arr); err == nil && len(arr) == 4 && arr[2] > 0 && arr[3] > 0 {
		return clipToSlice(types.BBox{X: arr[0], Y: arr[1], Width: arr[2], Height: arr[3]}, slice)
	}

	return PlaceholderBBox(slice)
}

// PlaceholderBBox is the deterministic substitute for a candidate the model
// located but did not box: the central quarter of the tile.
func PlaceholderBBox(slice types.Slice) types.BBox {
	w, h := float64(slice.Width), float64(slice.Height)
	return types.BBox{X: w / 4, Y: h / 4, Width: w / 2, Height: h / 2}
}

func clipToSlice(b types.BBox, slice types.Slice) types.BBox {
	w, h := float64(slice.Width), float64(slice.Height)
	if b.X < 0 {
		b.Width += b.X
		b.X = 0
	}
	if b.Y < 0 {
		b.Height += b.Y
		b.Y = 0
	}
	if b.X+b.Width > w {
		b.Width = w - b.X
	}
	if b.Y+b.Height > h {
		b.Height = h - b.Y
	}
	if b.Empty() {
		return PlaceholderBBox(slice)
	}
	return b
}

func coalesce(vals ...*float64) float64 {
	for _, v := range vals {
		if v != nil {
			return *v
		}
	}
	return 0
}

func normalizeType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	if t == "" {
		return "other"
	}
	return t
}

func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
