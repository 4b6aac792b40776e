// Package detect wraps an external neural inference engine behind a narrow
// Go interface, resizing frames to the backend's fixed input shape and
// rescaling its output boxes back to original-frame coordinates.
//
// The isolation pattern — a small opaque Backend interface standing in
// front of whatever inference engine is actually linked in — follows the
// teacher's pkg/mediapipe/processor.go, which hides a cgo-bridged MediaPipe
// engine behind MediaPipeProcessor. Here the bridge is generalized from one
// specific engine to any Backend implementation, since spec.md §1 and §6
// treat the inference engine itself as an external collaborator specified
// only at its interface.
package detect

import (
	"errors"
	"fmt"
	"image"
	"time"

	"gocv.io/x/gocv"
)

func imgPoint(w, h int) image.Point {
	return image.Point{X: w, Y: h}
}

// ErrInference is returned when the backend fails to produce a result.
// Per spec.md §7, InferenceError is fatal: the caller must surface it to
// the supervisor rather than retry locally.
var ErrInference = errors.New("detect: inference backend failed")

// RawBox is a single raw detection in the backend's own input-resolution
// coordinate space, before rescaling.
type RawBox struct {
	X1, Y1, X2, Y2 float64
	Score          float64
}

// Detection is a single detected object in original-frame coordinates.
// Invariant: X2>X1, Y2>Y1, 0<=Score<=1 (spec.md §3).
type Detection struct {
	X1, Y1, X2, Y2 float64
	Score          float64

	// FrameID and CapturedAt are additive fields for HUD/FPS computation
	// and log correlation (SPEC_FULL.md §3 expansion); they carry no
	// invariant of their own. Adapter.Detect leaves both at their zero
	// value.
	FrameID    uint64
	CapturedAt time.Time
}

// Backend is the narrow interface any inference engine must implement:
// a pure function from a resized input Mat to raw boxes in that Mat's
// coordinate space.
type Backend interface {
	Infer(input gocv.Mat) ([]RawBox, error)
	// InputSize returns the backend's declared fixed input shape (W, H).
	InputSize() (w, h int)
}

// Detector is the public contract: detect(frame) -> detections in frame
// coordinates (spec.md §4.C).
type Detector interface {
	Detect(frame gocv.Mat) ([]Detection, error)
}

// Adapter implements Detector by driving a Backend: resize to (WIn,HIn),
// invoke inference, threshold by score, rescale boxes back to the original
// frame's dimensions.
type Adapter struct {
	backend   Backend
	threshold float64
}

// NewAdapter builds an Adapter over the given backend with the given score
// threshold (spec.md §4.C default 0.4).
func NewAdapter(backend Backend, threshold float64) *Adapter {
	if threshold <= 0 {
		threshold = 0.4
	}
	return &Adapter{backend: backend, threshold: threshold}
}

// Detect resizes frame to the backend's input shape, runs inference,
// thresholds by score, and rescales surviving boxes back to frame's
// original dimensions. Zero detections is normal and returns an empty
// slice, not an error.
func (a *Adapter) Detect(frame gocv.Mat) ([]Detection, error) {
	wIn, hIn := a.backend.InputSize()
	origW, origH := frame.Cols(), frame.Rows()

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(frame, &resized, imgPoint(wIn, hIn), 0, 0, gocv.InterpolationLinear)

	raw, err := a.backend.Infer(resized)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInference, err)
	}

	scaleX := float64(origW) / float64(wIn)
	scaleY := float64(origH) / float64(hIn)

	detections := make([]Detection, 0, len(raw))
	for _, box := range raw {
		if box.Score < a.threshold {
			continue
		}
		d := Detection{
			X1:    box.X1 * scaleX,
			Y1:    box.Y1 * scaleY,
			X2:    box.X2 * scaleX,
			Y2:    box.Y2 * scaleY,
			Score: box.Score,
		}
		if d.X2 <= d.X1 || d.Y2 <= d.Y1 {
			continue
		}
		detections = append(detections, d)
	}

	return detections, nil
}
