// Package assemble builds the terminal result artifact from the merged
// record set: the text summary view, the component/quantity table, and the
// aggregate statistics.
package assemble

import (
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/blueplan/drawing-analyzer/pkg/types"
)

// mmToM converts an annotated drawing dimension to meters.
const mmToM = 0.001

// Assembler turns merged records into a Result.
type Assembler struct{}

// New creates an Assembler.
func New() *Assembler {
	return &Assembler{}
}

// Assemble builds the result for one run. records must already be merged and
// carry dense reading-order indices; overview, merge and run statistics are
// passed through from the earlier stages. Empty input yields a well-formed
// empty result.
func (a *Assembler) Assemble(records []types.Record, overview types.Overview, merge types.MergeStats, run types.RunStats, imgW, imgH int) *types.Result {
	ordered := make([]types.Record, len(records))
	copy(ordered, records)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].ReadingOrder < ordered[j].ReadingOrder
	})

	res := &types.Result{
		Records:    ordered,
		Text:       textSummary(ordered, overview),
		Components: componentTable(ordered),
		Merge:      merge,
		Stats:      run,
		ImageW:     imgW,
		ImageH:     imgH,
	}
	res.Aggregate = aggregate(ordered, len(res.Components))
	return res
}

func textSummary(records []types.Record, overview types.Overview) types.TextSummary {
	sum := types.TextSummary{Overview: overview}

	ids := map[string]struct{}{}
	typs := map[string]struct{}{}
	mats := map[string]struct{}{}
	axes := map[string]struct{}{}

	for i := range records {
		r := &records[i]
		switch r.Kind {
		case types.KindText:
			sum.TextRegions++
			sum.Lines = append(sum.Lines, r.Region.Text)
			key := strings.ToUpper(strings.TrimSpace(r.Region.Text))
			switch r.Region.Category {
			case types.CategoryComponentID:
				ids[key] = struct{}{}
			case types.CategoryMaterial:
				mats[key] = struct{}{}
			case types.CategoryAxis:
				axes[key] = struct{}{}
			}
		case types.KindComponent:
			typs[r.Candidate.Type] = struct{}{}
			if r.Candidate.Material != "" {
				mats[strings.ToUpper(r.Candidate.Material)] = struct{}{}
			}
		}
	}

	sum.ComponentIDs = sortedKeys(ids)
	sum.ComponentTypes = sortedKeys(typs)
	sum.Materials = sortedKeys(mats)
	sum.Axes = sortedKeys(axes)
	return sum
}

func componentTable(records []types.Record) []types.ComponentRow {
	var rows []types.ComponentRow
	for i := range records {
		r := &records[i]
		if r.Kind != types.KindComponent {
			continue
		}
		c := r.Candidate
		area, volume := quantities(c.Geometry)
		rows = append(rows, types.ComponentRow{
			RegionID:   r.ID,
			Label:      c.Label,
			Type:       c.Type,
			Material:   c.Material,
			Role:       c.Role,
			Geometry:   c.Geometry,
			Area:       area,
			Volume:     volume,
			Confidence: c.Confidence,
			BBox:       r.Global,
			Order:      r.ReadingOrder,
		})
	}
	return rows
}

// quantities derives cross-section area (m2) and volume (m3) from the
// annotated dimensions. Width and height give the section; depth, when
// annotated, extrudes it. Absent dimensions yield zero, never a guess.
func quantities(g types.Geometry) (area, volume float64) {
	w := g.Dimensions["width"] * mmToM
	h := g.Dimensions["height"] * mmToM
	d := g.Dimensions["depth"] * mmToM
	if w > 0 && h > 0 {
		area = w * h
		if d > 0 {
			volume = area * d
		}
	}
	return area, volume
}

func aggregate(records []types.Record, components int) types.AggregateStats {
	agg := types.AggregateStats{
		Components:  components,
		TextRegions: len(records) - components,
	}
	if len(records) == 0 {
		return agg
	}

	conf := make([]float64, 0, len(records))
	for i := range records {
		conf = append(conf, records[i].Confidence())
	}
	agg.MeanConfidence = stat.Mean(conf, nil)
	if len(conf) > 1 {
		agg.StddevConfidence = stat.StdDev(conf, nil)
	}
	return agg
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
