// Package restore maps tile-local geometry into whole-image coordinates
// using the slicing run's coordinate map.
package restore

import (
	"strconv"

	"github.com/blueplan/drawing-analyzer/internal/apperrors"
	"github.com/blueplan/drawing-analyzer/pkg/slicer"
	"github.com/blueplan/drawing-analyzer/pkg/types"
)

// Restorer translates per-slice results into global records. If the
// coordinate map is missing or incomplete it is rebuilt from the slice list;
// a slice reference that survives neither is the one hard failure here.
type Restorer struct {
	cmap   types.CoordinateMap
	slices []types.Slice
}

// New creates a Restorer. cmap may be nil or partial; slices are the
// authoritative fallback for rebuilding it.
func New(cmap types.CoordinateMap, slices []types.Slice) *Restorer {
	return &Restorer{cmap: cmap, slices: slices}
}

// Map returns the effective coordinate map, rebuilding from slice metadata
// when entries are absent. Rebuilding is deterministic and never fatal by
// itself.
func (r *Restorer) Map() types.CoordinateMap {
	if r.cmap == nil {
		r.cmap = slicer.BuildCoordinateMap(r.slices)
		return r.cmap
	}
	for _, sl := range r.slices {
		if _, ok := r.cmap[sl.ID]; !ok {
			r.cmap[sl.ID] = types.SliceOffset{
				OffsetX: sl.OffsetX, OffsetY: sl.OffsetY, Width: sl.Width, Height: sl.Height,
			}
		}
	}
	return r.cmap
}

// offset resolves one slice's offset, rebuilding the map on demand.
func (r *Restorer) offset(id types.SliceID) (types.SliceOffset, error) {
	if off, ok := r.Map()[id]; ok {
		return off, nil
	}
	return types.SliceOffset{}, apperrors.NewCoordinateMapMissingError(id.String())
}

// RestoreBBox translates one tile-local box by its slice offset.
func RestoreBBox(local types.BBox, off types.SliceOffset) types.BBox {
	return local.Translate(float64(off.OffsetX), float64(off.OffsetY))
}

// Restore converts every text region and component candidate into a restored
// record carrying a global bbox. The inputs are not mutated; candidates and
// regions are copied into the records.
func (r *Restorer) Restore(regions []types.TextRegion, candidates []types.ComponentCandidate) ([]types.Record, error) {
	records := make([]types.Record, 0, len(regions)+len(candidates))

	for i := range regions {
		reg := regions[i]
		off, err := r.offset(reg.Slice)
		if err != nil {
			return nil, err
		}
		records = append(records, types.Record{
			ID:       "t-" + reg.Slice.String() + "-" + strconv.Itoa(i),
			Kind:     types.KindText,
			Region:   &reg,
			Local:    reg.BBox,
			Global:   RestoreBBox(reg.BBox, off),
			Restored: true,
			Slice:    reg.Slice,
		})
	}

	for i := range candidates {
		cand := candidates[i]
		off, err := r.offset(cand.Slice)
		if err != nil {
			return nil, err
		}
		id := cand.ID
		if id == "" {
			id = "c-" + cand.Slice.String() + "-" + strconv.Itoa(i)
		}
		records = append(records, types.Record{
			ID:        id,
			Kind:      types.KindComponent,
			Candidate: &cand,
			Local:     cand.BBox,
			Global:    RestoreBBox(cand.BBox, off),
			Restored:  true,
			Slice:     cand.Slice,
		})
	}

	return records, nil
}

