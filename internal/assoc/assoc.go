// Package assoc implements IoU-based data association between predicted
// track boxes and detection boxes: building the IoU matrix and solving
// optimal assignment via an in-package Hungarian solver.
package assoc

import "math"

const epsilon = 1e-8

// Box is an axis-aligned bounding box (x1, y1, x2, y2).
type Box struct {
	X1, Y1, X2, Y2 float64
}

// IoU computes intersection-over-union of two boxes, clamped to [0, 1].
// NaN inputs yield 0 (spec.md §4.E).
func IoU(a, b Box) float64 {
	interX1 := math.Max(a.X1, b.X1)
	interY1 := math.Max(a.Y1, b.Y1)
	interX2 := math.Min(a.X2, b.X2)
	interY2 := math.Min(a.Y2, b.Y2)

	interW := math.Max(0, interX2-interX1)
	interH := math.Max(0, interY2-interY1)
	inter := interW * interH

	areaA := math.Max(0, a.X2-a.X1) * math.Max(0, a.Y2-a.Y1)
	areaB := math.Max(0, b.X2-b.X1) * math.Max(0, b.Y2-b.Y1)

	union := areaA + areaB - inter + epsilon
	iou := inter / union

	if math.IsNaN(iou) {
		return 0
	}
	if iou < 0 {
		return 0
	}
	if iou > 1 {
		return 1
	}
	return iou
}

// IoUMatrix builds the M×N matrix of pairwise IoU between tracks and
// detections. Non-finite entries are replaced by a very negative sentinel
// so the association solver, which minimizes negative IoU, never selects
// them as a maximal match (spec.md §4.E).
func IoUMatrix(tracks, detections []Box) [][]float64 {
	m := len(tracks)
	n := len(detections)
	matrix := make([][]float64, m)
	for i := range matrix {
		matrix[i] = make([]float64, n)
		for j := range matrix[i] {
			v := IoU(tracks[i], detections[j])
			if math.IsNaN(v) || math.IsInf(v, 0) {
				v = -1e18
			}
			matrix[i][j] = v
		}
	}
	return matrix
}

// Associate solves optimal assignment over the IoU matrix (maximizing total
// IoU, via minimizing negative IoU), then rejects any assignment whose IoU
// falls below threshold — both its track and detection are returned as
// unmatched in that case (spec.md §4.E).
//
// Trivial cases (M=0 or N=0) return empty matches and all inputs unmatched.
func Associate(ious [][]float64, threshold float64) (matches [][2]int, unmatchedDetections, unmatchedTracks []int) {
	m := len(ious)
	n := 0
	if m > 0 {
		n = len(ious[0])
	}

	if m == 0 || n == 0 {
		for t := 0; t < m; t++ {
			unmatchedTracks = append(unmatchedTracks, t)
		}
		for d := 0; d < n; d++ {
			unmatchedDetections = append(unmatchedDetections, d)
		}
		return matches, unmatchedDetections, unmatchedTracks
	}

	cost := make([][]float64, m)
	for i := range cost {
		cost[i] = make([]float64, n)
		for j := range cost[i] {
			cost[i][j] = -ious[i][j]
		}
	}

	assignment := solveAssignment(cost)

	matchedDetections := make(map[int]bool, n)
	matchedTracks := make(map[int]bool, m)

	for t, d := range assignment {
		if d < 0 {
			continue
		}
		if ious[t][d] < threshold {
			continue
		}
		matches = append(matches, [2]int{t, d})
		matchedTracks[t] = true
		matchedDetections[d] = true
	}

	for t := 0; t < m; t++ {
		if !matchedTracks[t] {
			unmatchedTracks = append(unmatchedTracks, t)
		}
	}
	for d := 0; d < n; d++ {
		if !matchedDetections[d] {
			unmatchedDetections = append(unmatchedDetections, d)
		}
	}

	return matches, unmatchedDetections, unmatchedTracks
}
