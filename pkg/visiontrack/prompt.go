package visiontrack

import (
	"fmt"
	"strings"

	"github.com/blueplan/drawing-analyzer/pkg/types"
)

// basePrompt carries the geometric-identification instructions. The model
// must return tile-local pixel coordinates; restoration to whole-image
// coordinates happens downstream.
const basePrompt = `You are a structural engineering drawing analyst. Identify every structural component visible in this drawing tile.

Return JSON only:
{
  "components": [
    {
      "id": "component label as written on the drawing, e.g. KZ1",
      "type": "column|beam|slab|wall|foundation|stair|other",
      "shape": "rectangle|circle|t-section|l-section|other",
      "dimensions": {"width": 0, "height": 0, "depth": 0},
      "bbox": {"x": 0, "y": 0, "width": 0, "height": 0},
      "material": "concrete/steel grade if annotated, e.g. C30",
      "structural_role": "load-bearing|partition|envelope|other",
      "connections": ["labels of connected components"],
      "confidence": 0.0
    }
  ]
}

HARD RULES
- bbox is in PIXELS of this tile image, not normalized.
- dimensions are the measured sizes annotated on the drawing, in mm.
- Report every component even if partially cut off at the tile edge.
- Use the annotated text to label components; do not invent labels.
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

// BuildPrompt combines the whole-image overview, this tile's classified text,
// and the geometric instructions into the inference prompt.
func BuildPrompt(overview types.Overview, regions []types.TextRegion) string {
	var b strings.Builder
	b.WriteString(basePrompt)

	if ctx := overviewContext(overview); ctx != "" {
		b.WriteString("\n\nDRAWING CONTEXT (whole image, advisory):\n")
		b.WriteString(ctx)
	}

	if text := groupedText(regions); text != "" {
		b.WriteString("\n\nTEXT RECOGNIZED IN THIS TILE:\n")
		b.WriteString(text)
	}

	return b.String()
}

func overviewContext(ov types.Overview) string {
	var lines []string
	if ov.Project != "" {
		lines = append(lines, "project: "+ov.Project)
	}
	if ov.DrawingTitle != "" {
		lines = append(lines, "drawing: "+ov.DrawingTitle)
	}
	if ov.Summary != "" {
		lines = append(lines, "summary: "+ov.Summary)
	}
	if len(ov.ComponentIDs) > 0 {
		lines = append(lines, "known component ids: "+strings.Join(ov.ComponentIDs, ", "))
	}
	if len(ov.Materials) > 0 {
		lines = append(lines, "material grades: "+strings.Join(ov.Materials, ", "))
	}
	if len(ov.Axes) > 0 {
		lines = append(lines, "axis labels: "+strings.Join(ov.Axes, ", "))
	}
	return strings.Join(lines, "\n")
}

// groupedText renders the tile's regions grouped by category, with pixel
// positions so the model can anchor components to their labels.
func groupedText(regions []types.TextRegion) string {
	groups := map[types.TextCategory][]string{}
	for _, r := range regions {
		cx, cy := r.BBox.Center()
		groups[r.Category] = append(groups[r.Category],
			fmt.Sprintf("%q at (%.0f,%.0f)", r.Text, cx, cy))
	}

	order := []types.TextCategory{
		types.CategoryComponentID,
		types.CategoryDimension,
		types.CategoryMaterial,
		types.CategoryAxis,
		types.CategoryDescription,
		types.CategoryUnknown,
	}

	var b strings.Builder
	for _, cat := range order {
		if len(groups[cat]) == 0 {
			continue
		}
		b.WriteString(string(cat))
		b.WriteString(": ")
		b.WriteString(strings.Join(groups[cat], ", "))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
