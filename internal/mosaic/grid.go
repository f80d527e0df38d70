// Copyright (c) 2026 Mosava. All rights reserved.
// Author: vann.pham.vn@gmail.com

package mosaic

// GridPlan is the result of the segment grid search: the segment dimensions
// and the row/column counts that tile the source image.
type GridPlan struct {
	SegmentWidth  int
	SegmentHeight int
	Rows          int
	Cols          int
}

// Count returns the number of segments in the plan.
func (p GridPlan) Count() int {
	return p.Rows * p.Cols
}

// PlanGrid searches for the grid that best covers a width x height image
// with segments of aspect ratio ratioW:ratioH, aiming for targetSegments
// cells.
//
// The ratio is reduced to lowest terms, then the segment size is scaled up
// integer step by integer step. Each candidate is scored by how far its cell
// count lands from the target plus a weighted penalty for the border area
// the grid leaves uncovered. The search stops once the cell count drops
// below a quarter of the target.
//
// The function is pure and deterministic. When targetSegments is tiny the
// search may terminate after a single candidate, so the returned plan can
// deviate substantially from the target; callers must tolerate that.
func PlanGrid(width, height, targetSegments, ratioW, ratioH, unusedAreaWeight int) GridPlan {

	divisor := gcd(ratioW, ratioH)
	baseW, baseH := ratioW/divisor, ratioH/divisor

	totalArea := float64(width * height)

	var best GridPlan
	bestCost := -1.0

	for scale := 1; ; scale++ {
		segW, segH := baseW*scale, baseH*scale
		cols, rows := width/segW, height/segH
		count := rows * cols

		// Search exhausted: segments have grown so large the grid fell
		// below a quarter of the target. The first candidate is always
		// evaluated so the search never returns an empty plan.
		if scale > 1 && count < targetSegments/4 {
			break
		}

		unusedArea := float64((width % segW) * (height % segH))
		cost := float64(abs(count-targetSegments)) + float64(unusedAreaWeight)*unusedArea/totalArea

		if bestCost < 0 || cost < bestCost {
			bestCost = cost
			best = GridPlan{SegmentWidth: segW, SegmentHeight: segH, Rows: rows, Cols: cols}
		}

		if count == 0 {
			break
		}
	}

	return best
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
