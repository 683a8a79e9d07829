// Package fusion merges all tiles' restored text regions and component
// candidates into one canonical, deduplicated, reading-ordered record list.
// Four ordered passes: content preservation with edge tagging, confidence-
// ordered deduplication over a spatial grid index, reading-order sort, and
// coordinate-restoration verification.
package fusion

import (
	"fmt"
	"sort"

	"github.com/blueplan/drawing-analyzer/internal/apperrors"
	"github.com/blueplan/drawing-analyzer/internal/logging"
	"github.com/blueplan/drawing-analyzer/pkg/types"
)

// Config holds the duplicate-rule thresholds and spatial parameters. The
// defaults are empirically chosen, not derived from a model; callers may
// tune them per drawing corpus.
type Config struct {
	// Rule (a): near-identical text with solid overlap.
	TextSimStrong float64
	OverlapStrong float64
	// Rule (b): identical normalized text needs only marginal overlap.
	OverlapIdentical float64
	// Rule (c): heavy overlap with similar text of the same category.
	OverlapHigh float64
	TextSimHigh float64
	// Rule (d): component ids and axis labels dedup more eagerly.
	TextSimLabel float64
	OverlapLabel float64

	// EdgeMargin tags records this close (px) to a tile edge for priority
	// retention. GridCell is the spatial index bucket size (px).
	EdgeMargin float64
	GridCell   float64
}

// DefaultConfig returns the documented default thresholds.
func DefaultConfig() Config {
	return Config{
		TextSimStrong:    0.9,
		OverlapStrong:    0.3,
		OverlapIdentical: 0.1,
		OverlapHigh:      0.7,
		TextSimHigh:      0.7,
		TextSimLabel:     0.8,
		OverlapLabel:     0.2,
		EdgeMargin:       20,
		GridCell:         256,
	}
}

// Engine merges restored records.
type Engine struct {
	config Config
	log    *logging.Logger
}

// New creates an Engine with default thresholds.
func New() *Engine {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates an Engine with custom thresholds.
func NewWithConfig(config Config) *Engine {
	return &Engine{config: config, log: logging.NewLogger("fusion")}
}

// OrderWeight computes the reading-order weight of a global box: top-to-
// bottom dominates, left-to-right breaks ties, stable under tile-grid
// artifacts.
func OrderWeight(b types.BBox, imgW, imgH float64) float64 {
	cx, cy := b.Center()
	return (cy/imgH)*1000 + cx/imgW
}

// Merge runs the four fusion passes over the combined restored record set.
// cmap provides slice extents for edge tagging. The returned slice is a new
// ordering of copies; inputs are not mutated.
func (e *Engine) Merge(records []types.Record, cmap types.CoordinateMap, imgW, imgH int) ([]types.Record, types.MergeStats, error) {
	stats := types.MergeStats{InputRecords: len(records)}
	if len(records) == 0 {
		return []types.Record{}, stats, nil
	}
	if imgW <= 0 || imgH <= 0 {
		return nil, stats, apperrors.NewFusionInternalError(
			fmt.Sprintf("cannot build spatial index over %dx%d image", imgW, imgH), nil)
	}

	// Pass 1: content preservation. Every record is an input candidate; tag
	// the ones hugging a tile edge so no later heuristic drops them without
	// an explicit duplicate match.
	work := make([]types.Record, len(records))
	copy(work, records)
	for i := range work {
		if off, ok := cmap[work[i].Slice]; ok {
			work[i].Edge = e.nearEdge(work[i].Local, off)
			if work[i].Edge {
				stats.EdgeProtected++
			}
		}
	}

	// Pass 2: deduplication, highest confidence first.
	sort.SliceStable(work, func(i, j int) bool {
		if work[i].Confidence() != work[j].Confidence() {
			return work[i].Confidence() > work[j].Confidence()
		}
		return work[i].ID < work[j].ID
	})

	index := newGrid(e.config.GridCell)
	for i := range work {
		index.insert(i, work[i].Global)
	}

	removed := make([]bool, len(work))
	for i := range work {
		if removed[i] {
			continue
		}
		for _, j := range index.neighbors(work[i].Global) {
			if j <= i || removed[j] || work[j].Kind != work[i].Kind {
				continue
			}
			if e.isDuplicate(&work[i], &work[j]) {
				// work[i] has the higher confidence by sort order.
				removed[j] = true
				stats.DuplicatesRemoved++
			}
		}
	}

	survivors := work[:0]
	for i := range work {
		if !removed[i] {
			survivors = append(survivors, work[i])
		}
	}

	// Pass 3: reading-order sort and dense reindex.
	fw, fh := float64(imgW), float64(imgH)
	sort.SliceStable(survivors, func(i, j int) bool {
		return OrderWeight(survivors[i].Global, fw, fh) < OrderWeight(survivors[j].Global, fw, fh)
	})
	for i := range survivors {
		survivors[i].ReadingOrder = i
	}

	// Pass 4: coordinate-restoration verification. A record reaching this
	// point without a restored global box is a fusion-internal error.
	for i := range survivors {
		if !survivors[i].Restored {
			return nil, stats, apperrors.NewFusionInternalError(
				fmt.Sprintf("record %s from slice %s reached ordering without a global bbox",
					survivors[i].ID, survivors[i].Slice), nil)
		}
	}

	stats.FinalRecords = len(survivors)
	e.log.Info("merge complete",
		"input", stats.InputRecords,
		"edge_protected", stats.EdgeProtected,
		"duplicates_removed", stats.DuplicatesRemoved,
		"final", stats.FinalRecords)

	out := make([]types.Record, len(survivors))
	copy(out, survivors)
	return out, stats, nil
}

// nearEdge reports whether a tile-local box lies within the edge margin of
// any tile border.
func (e *Engine) nearEdge(local types.BBox, off types.SliceOffset) bool {
	m := e.config.EdgeMargin
	return local.X < m ||
		local.Y < m ||
		float64(off.Width)-(local.X+local.Width) < m ||
		float64(off.Height)-(local.Y+local.Height) < m
}

// isDuplicate applies the four duplicate rules to a same-kind pair.
func (e *Engine) isDuplicate(a, b *types.Record) bool {
	ov := a.Global.OverlapRatio(b.Global)
	if ov <= 0 {
		return false
	}

	ta, tb := NormalizeText(a.Text()), NormalizeText(b.Text())
	sim := TextSimilarity(ta, tb)
	identical := ta != "" && ta == tb

	// (a) near-identical text, solid overlap.
	if sim > e.config.TextSimStrong && ov > e.config.OverlapStrong {
		return true
	}
	// (b) identical normalized text, marginal overlap. Inclusive bound:
	// records split exactly at the threshold still merge.
	if identical && ov >= e.config.OverlapIdentical {
		return true
	}
	// (c) heavy overlap, similar text, same category.
	if ov > e.config.OverlapHigh && sim > e.config.TextSimHigh && a.Category() == b.Category() {
		return true
	}
	// (d) component ids and axis labels are short; dedup them more eagerly.
	cat := a.Category()
	if (cat == types.CategoryComponentID || cat == types.CategoryAxis) &&
		cat == b.Category() &&
		sim > e.config.TextSimLabel && ov > e.config.OverlapLabel {
		return true
	}
	return false
}
