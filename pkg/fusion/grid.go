package fusion

import (
	"math"

	"github.com/blueplan/drawing-analyzer/pkg/types"
)

// grid is a spatial index bucketing record indices by fixed-size cells over
// their global bounding boxes. Neighbor queries return every index whose box
// touches a cell the query box covers.
type grid struct {
	cell    float64
	buckets map[[2]int][]int
}

func newGrid(cell float64) *grid {
	return &grid{cell: cell, buckets: map[[2]int][]int{}}
}

func (g *grid) cellRange(b types.BBox) (x0, y0, x1, y1 int) {
	x0 = int(math.Floor(b.X / g.cell))
	y0 = int(math.Floor(b.Y / g.cell))
	x1 = int(math.Floor((b.X + b.Width) / g.cell))
	y1 = int(math.Floor((b.Y + b.Height) / g.cell))
	return
}

func (g *grid) insert(idx int, b types.BBox) {
	x0, y0, x1, y1 := g.cellRange(b)
	for cy := y0; cy <= y1; cy++ {
		for cx := x0; cx <= x1; cx++ {
			key := [2]int{cx, cy}
			g.buckets[key] = append(g.buckets[key], idx)
		}
	}
}

// neighbors returns the distinct indices sharing a cell with b, in insertion
// order for determinism.
func (g *grid) neighbors(b types.BBox) []int {
	x0, y0, x1, y1 := g.cellRange(b)
	seen := map[int]struct{}{}
	var out []int
	for cy := y0; cy <= y1; cy++ {
		for cx := x0; cx <= x1; cx++ {
			for _, idx := range g.buckets[[2]int{cx, cy}] {
				if _, ok := seen[idx]; ok {
					continue
				}
				seen[idx] = struct{}{}
				out = append(out, idx)
			}
		}
	}
	return out
}
