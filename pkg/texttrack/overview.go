package texttrack

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/blueplan/drawing-analyzer/pkg/client"
	"github.com/blueplan/drawing-analyzer/pkg/fusion"
	"github.com/blueplan/drawing-analyzer/pkg/types"
)

const overviewPrompt = `You are reading the complete recognized text of one engineering drawing, in reading order (top to bottom, left to right).

Return JSON only:
{
  "project": "project name if present, else empty",
  "drawing_no": "drawing number if present, else empty",
  "drawing_title": "drawing title if present, else empty",
  "scale": "drawing scale like 1:100 if present, else empty",
  "summary": "one factual sentence (max 30 words) describing what this drawing shows"
}

JSON only. No markdown, no code fences, no comments, no trailing commas.

TEXT:
`

// summaryPayload is the summarizer's expected response shape.
type summaryPayload struct {
	Project      string `json:"project"`
	DrawingNo    string `json:"drawing_no"`
	DrawingTitle string `json:"drawing_title"`
	Scale        string `json:"scale"`
	Summary      string `json:"summary"`
}

// BuildOverview aggregates every slice's TextRegions into an ordered plain
// text stream and asks the summarization service for a structured drawing
// description. The distinct id/material/axis sets are collected directly from
// classification and are always present; only the free-text summary depends
// on the external service. A non-nil error means the summary step failed;
// the returned overview is still usable and the run proceeds.
func BuildOverview(ctx context.Context, vc client.VisionClient, model string, regions []types.TextRegion, cmap types.CoordinateMap, imgW, imgH int) (types.Overview, error) {
	ov := types.Overview{
		ComponentIDs: distinctByCategory(regions, types.CategoryComponentID),
		Materials:    distinctByCategory(regions, types.CategoryMaterial),
		Axes:         distinctByCategory(regions, types.CategoryAxis),
	}

	if len(regions) == 0 || vc == nil {
		return ov, nil
	}

	stream := RenderStream(regions, cmap, imgW, imgH)
	raw, err := vc.Query(ctx, model, overviewPrompt+stream, "")
	if err != nil {
		return ov, fmt.Errorf("overview summarization failed: %w", err)
	}

	var payload summaryPayload
	if err := json.Unmarshal([]byte(client.SanitizeModelJSON(raw)), &payload); err != nil {
		return ov, fmt.Errorf("unparseable overview response: %w", err)
	}

	ov.Project = payload.Project
	ov.DrawingNo = payload.DrawingNo
	ov.DrawingTitle = payload.DrawingTitle
	ov.Scale = payload.Scale
	ov.Summary = payload.Summary
	return ov, nil
}

// RenderStream flattens regions into one plain-text line stream in reading
// order. Regions are placed at whole-image coordinates first so the order
// survives the tile grid.
func RenderStream(regions []types.TextRegion, cmap types.CoordinateMap, imgW, imgH int) string {
	type placed struct {
		text   string
		weight float64
	}

	items := make([]placed, 0, len(regions))
	for _, r := range regions {
		box := r.BBox
		if off, ok := cmap[r.Slice]; ok {
			box = box.Translate(float64(off.OffsetX), float64(off.OffsetY))
		}
		items = append(items, placed{
			text:   r.Text,
			weight: fusion.OrderWeight(box, float64(imgW), float64(imgH)),
		})
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].weight < items[j].weight })

	lines := make([]string, 0, len(items))
	for _, it := range items {
		lines = append(lines, it.text)
	}
	return strings.Join(lines, "\n")
}

func distinctByCategory(regions []types.TextRegion, cat types.TextCategory) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, r := range regions {
		if r.Category != cat {
			continue
		}
		key := strings.ToUpper(strings.TrimSpace(r.Text))
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}
