// Package kalman implements the per-track constant-velocity Kalman box
// filter used by the SORT tracker manager (internal/tracker).
//
// State is the 7-vector [cx, cy, s, r, vx, vy, vs]: bounding-box center,
// area, aspect ratio, and the time-derivatives of the first three. Aspect
// ratio is assumed quasi-static and carries no velocity term. State and
// covariance are held as *mat.Dense so the filter generalizes cleanly to
// the 7-dimensional case, the way norfair-go's TrackedObject drives its
// Filter off *mat.Dense rather than fixed-size arrays.
package kalman

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

const (
	dim  = 7 // [cx, cy, s, r, vx, vy, vs]
	zDim = 4 // observation: [cx, cy, s, r]

	epsilon = 1e-8

	initialUncertainty = 10.0
	processNoise       = 0.01
	measurementNoise   = 0.01
)

// BoxFilter tracks one object's bounding box via a constant-velocity Kalman
// filter. The zero value is not usable; construct with New.
type BoxFilter struct {
	x *mat.Dense // 7x1 state
	p *mat.Dense // 7x7 covariance
	f *mat.Dense // 7x7 state transition
	h *mat.Dense // 4x7 observation
	q *mat.Dense // 7x7 process noise
	r *mat.Dense // 4x4 measurement noise

	Age             int
	Hits            int
	HitStreak       int
	TimeSinceUpdate int
}

// New constructs a BoxFilter seeded from an initial observation
// (cx, cy, s, r), with velocities initialized to zero.
func New(cx, cy, s, r float64) *BoxFilter {
	x := mat.NewDense(dim, 1, []float64{cx, cy, s, r, 0, 0, 0})

	p := identity(dim)
	p.Scale(initialUncertainty, p)

	f := identity(dim)
	// Unit-time velocity coupling on the first three rows: cx += vx, etc.
	f.Set(0, 4, 1)
	f.Set(1, 5, 1)
	f.Set(2, 6, 1)

	h := mat.NewDense(zDim, dim, nil)
	for i := 0; i < zDim; i++ {
		h.Set(i, i, 1)
	}

	q := identity(dim)
	q.Scale(processNoise, q)

	r_ := identity(zDim)
	r_.Scale(measurementNoise, r_)

	return &BoxFilter{x: x, p: p, f: f, h: h, q: q, r: r_}
}

func identity(n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}

// Predict advances the filter one step: x = F*x, P = F*P*F^T + Q.
// Increments Age; if TimeSinceUpdate was already > 0 (a miss last tick),
// zeroes HitStreak; then increments TimeSinceUpdate. Returns the predicted
// (x1, y1, x2, y2) box.
func (bf *BoxFilter) Predict() (x1, y1, x2, y2 float64) {
	var xNext mat.Dense
	xNext.Mul(bf.f, bf.x)
	bf.x = &xNext

	var fp, fpft mat.Dense
	fp.Mul(bf.f, bf.p)
	fpft.Mul(&fp, bf.f.T())
	fpft.Add(&fpft, bf.q)
	bf.p = &fpft

	bf.Age++
	if bf.TimeSinceUpdate > 0 {
		bf.HitStreak = 0
	}
	bf.TimeSinceUpdate++

	return bf.GetState()
}

// Update corrects the filter state with an observed box (x1, y1, x2, y2).
// Degenerate boxes (x2<=x1 or y2<=y1) are replaced by a minimal unit box
// before ingestion (spec.md §4.D). Sets TimeSinceUpdate to 0 and increments
// Hits and HitStreak.
func (bf *BoxFilter) Update(x1, y1, x2, y2 float64) {
	if x2 <= x1 || y2 <= y1 {
		x2 = x1 + 1
		y2 = y1 + 1
	}

	cx, cy, s, r := boxToState(x1, y1, x2, y2)
	z := mat.NewDense(zDim, 1, []float64{cx, cy, s, r})

	// Innovation y = z - H*x
	var hx mat.Dense
	hx.Mul(bf.h, bf.x)
	var y mat.Dense
	y.Sub(z, &hx)

	// Innovation covariance S = H*P*H^T + R
	var hp, hpht mat.Dense
	hp.Mul(bf.h, bf.p)
	hpht.Mul(&hp, bf.h.T())
	hpht.Add(&hpht, bf.r)

	var sInv mat.Dense
	if err := sInv.Inverse(&hpht); err != nil {
		// Singular innovation covariance: skip the correction rather than
		// propagate NaN/Inf into the state.
		bf.TimeSinceUpdate = 0
		bf.Hits++
		bf.HitStreak++
		return
	}

	// Kalman gain K = P*H^T*S^-1
	var pht, k mat.Dense
	pht.Mul(bf.p, bf.h.T())
	k.Mul(&pht, &sInv)

	// x = x + K*y
	var ky mat.Dense
	ky.Mul(&k, &y)
	var xNext mat.Dense
	xNext.Add(bf.x, &ky)
	bf.x = &xNext

	// P = (I - K*H)*P
	var kh, ikh mat.Dense
	kh.Mul(&k, bf.h)
	ikh.Sub(identity(dim), &kh)
	var pNext mat.Dense
	pNext.Mul(&ikh, bf.p)
	bf.p = &pNext

	bf.TimeSinceUpdate = 0
	bf.Hits++
	bf.HitStreak++
}

// GetState reconstructs (x1, y1, x2, y2) from the current (cx, cy, s, r).
// If s*r is non-finite, or s<=0, or r<=0, width and height are returned as
// zero so the caller can suppress emission (spec.md §4.D).
func (bf *BoxFilter) GetState() (x1, y1, x2, y2 float64) {
	cx := bf.x.At(0, 0)
	cy := bf.x.At(1, 0)
	s := bf.x.At(2, 0)
	r := bf.x.At(3, 0)

	if !math.IsInf(s, 0) && !math.IsNaN(s) && !math.IsInf(r, 0) && !math.IsNaN(r) && s > 0 && r > 0 {
		w := math.Sqrt(s * r)
		h := s / (w + epsilon)
		if !math.IsNaN(w) && !math.IsInf(w, 0) && !math.IsNaN(h) && !math.IsInf(h, 0) {
			return cx - w/2, cy - h/2, cx + w/2, cy + h/2
		}
	}
	return cx, cy, cx, cy
}

// IsFinite reports whether every component of the current state is finite.
// The tracker manager uses this after Predict to mark a track for deletion
// per spec.md §4.F step 2 (grounded on
// banshee-data-velocity.report/internal/lidar/l5tracks/tracking.go's
// isFiniteState guard).
func (bf *BoxFilter) IsFinite() bool {
	for i := 0; i < dim; i++ {
		v := bf.x.At(i, 0)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Covariance returns a read-only copy of the current covariance matrix, for
// test assertions on covariance growth/shrinkage.
func (bf *BoxFilter) Covariance() *mat.Dense {
	cp := mat.DenseCopyOf(bf.p)
	return cp
}

// State returns a copy of the raw 7-vector state.
func (bf *BoxFilter) State() [7]float64 {
	var s [7]float64
	for i := 0; i < dim; i++ {
		s[i] = bf.x.At(i, 0)
	}
	return s
}

func boxToState(x1, y1, x2, y2 float64) (cx, cy, s, r float64) {
	w := x2 - x1
	h := y2 - y1
	cx = x1 + w/2
	cy = y1 + h/2
	s = w * h
	r = w / (h + epsilon)
	return
}
