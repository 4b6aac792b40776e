package assoc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIoU_IdenticalBoxes(t *testing.T) {
	b := Box{0, 0, 10, 10}
	assert.InDelta(t, 1.0, IoU(b, b), 1e-9)
}

func TestIoU_Disjoint(t *testing.T) {
	a := Box{0, 0, 10, 10}
	b := Box{100, 100, 120, 120}
	assert.Equal(t, 0.0, IoU(a, b))
}

func TestIoU_Commutative(t *testing.T) {
	a := Box{0, 0, 10, 10}
	b := Box{5, 5, 15, 15}
	assert.Equal(t, IoU(a, b), IoU(b, a))
}

func TestIoU_BoundedZeroToOne(t *testing.T) {
	boxes := []Box{
		{0, 0, 10, 10},
		{3, 3, 13, 13},
		{-5, -5, 5, 5},
		{0, 0, 1, 1},
	}
	for _, a := range boxes {
		for _, b := range boxes {
			v := IoU(a, b)
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 1.0)
		}
	}
}

func TestAssociate_TrivialEmptyTracks(t *testing.T) {
	matches, unmatchedDet, unmatchedTrk := Associate(IoUMatrix(nil, []Box{{0, 0, 10, 10}}), 0.3)
	assert.Empty(t, matches)
	assert.Equal(t, []int{0}, unmatchedDet)
	assert.Empty(t, unmatchedTrk)
}

func TestAssociate_TrivialEmptyDetections(t *testing.T) {
	matches, unmatchedDet, unmatchedTrk := Associate(IoUMatrix([]Box{{0, 0, 10, 10}}, nil), 0.3)
	assert.Empty(t, matches)
	assert.Empty(t, unmatchedDet)
	assert.Equal(t, []int{0}, unmatchedTrk)
}

// TestAssociate_DisjointSetsAllUnmatched is spec.md §8 invariant 3: for
// disjoint detection sets (pairwise IoU = 0), association returns only
// pairs with IoU >= threshold, and unpaired detections land in
// unmatchedDetections.
func TestAssociate_DisjointSetsAllUnmatched(t *testing.T) {
	tracks := []Box{{0, 0, 10, 10}}
	detections := []Box{{1000, 1000, 1010, 1010}, {2000, 2000, 2010, 2010}}

	ious := IoUMatrix(tracks, detections)
	matches, unmatchedDet, unmatchedTrk := Associate(ious, 0.3)

	require.Empty(t, matches)
	assert.ElementsMatch(t, []int{0, 1}, unmatchedDet)
	assert.Equal(t, []int{0}, unmatchedTrk)
}

func TestAssociate_OneToOneMatch(t *testing.T) {
	tracks := []Box{{0, 0, 10, 10}}
	detections := []Box{{1, 1, 11, 11}}

	ious := IoUMatrix(tracks, detections)
	matches, unmatchedDet, unmatchedTrk := Associate(ious, 0.3)

	require.Len(t, matches, 1)
	assert.Equal(t, [2]int{0, 0}, matches[0])
	assert.Empty(t, unmatchedDet)
	assert.Empty(t, unmatchedTrk)
}

func TestAssociate_RejectsBelowThreshold(t *testing.T) {
	tracks := []Box{{0, 0, 10, 10}}
	detections := []Box{{8, 8, 20, 20}} // small overlap

	ious := IoUMatrix(tracks, detections)
	iou := ious[0][0]
	require.Less(t, iou, 0.3)

	matches, unmatchedDet, unmatchedTrk := Associate(ious, 0.3)
	assert.Empty(t, matches)
	assert.Equal(t, []int{0}, unmatchedDet)
	assert.Equal(t, []int{0}, unmatchedTrk)
}

func TestAssociate_OptimalNotGreedy(t *testing.T) {
	// Track 0's best detection is detection 0 (IoU 0.82), but taking it
	// leaves track 1 with detection 1 (IoU 0.25, below threshold). Pairing
	// track 0 with detection 1 (0.54) and track 1 with detection 0 (0.67)
	// has the larger total, so an optimal solver must not greedily grab
	// detection 0 for track 0.
	tracks := []Box{
		{0, 0, 10, 10},
		{3, 0, 13, 10},
	}
	detections := []Box{
		{1, 0, 11, 10},
		{-3, 0, 7, 10},
	}

	ious := IoUMatrix(tracks, detections)
	matches, unmatchedDet, unmatchedTrk := Associate(ious, 0.3)

	require.Len(t, matches, 2)
	assert.Empty(t, unmatchedDet)
	assert.Empty(t, unmatchedTrk)

	seen := map[int]int{}
	for _, m := range matches {
		seen[m[0]] = m[1]
	}
	assert.Equal(t, 1, seen[0])
	assert.Equal(t, 0, seen[1])
}
