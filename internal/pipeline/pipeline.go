// Package pipeline implements the preprocess->detect->track stage: it owns
// the preprocessor chain, the detector, and the tracker manager, and is
// their exclusive owner for the lifetime of the run (spec.md §5, §9) —
// nothing else may touch the background-subtraction operator's state or
// the tracker's track list.
package pipeline

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"gocv.io/x/gocv"

	"github.com/edgetrack/pipeline/internal/capture"
	"github.com/edgetrack/pipeline/internal/detect"
	"github.com/edgetrack/pipeline/internal/metrics"
	"github.com/edgetrack/pipeline/internal/preprocess"
	"github.com/edgetrack/pipeline/internal/queue"
	"github.com/edgetrack/pipeline/internal/tracker"
)

// Result is the per-tick output handed to the Output stage: the capture
// timestamp, the (possibly preprocessed) frame, and the confirmed tracks.
type Result struct {
	CapturedAt time.Time
	FrameID    uint64
	Frame      capture.CapturedFrame
	Tracks     []tracker.TrackOutput
}

// Stage runs the preprocess -> detect -> track loop.
type Stage struct {
	chain   preprocess.Chain
	detect  detect.Detector
	manager *tracker.Manager
	log     *zap.Logger
	metrics *metrics.Counters
	fatal   chan<- error
}

// New constructs a pipeline Stage. chain, detector, and manager become
// exclusively owned by this Stage; the caller must not retain references
// that mutate them concurrently. counters may be nil, in which case tick
// and inference counts are simply not recorded. fatal is the channel an
// InferenceError is sent on — spec.md §4.C/§7: inference failure is fatal,
// not retried (contrast with capture's CaptureTransient, which retries
// before escalating).
func New(chain preprocess.Chain, detector detect.Detector, manager *tracker.Manager, log *zap.Logger, fatal chan<- error, counters *metrics.Counters) *Stage {
	if log == nil {
		log = zap.NewNop()
	}
	return &Stage{chain: chain, detect: detector, manager: manager, log: log.With(zap.String("component", "pipeline")), metrics: counters, fatal: fatal}
}

// Run pops frames from capQ, applies the preprocessor chain, detects, ticks
// the tracker, and pushes the result onto outQ until ctx is cancelled,
// capQ is closed and drained, or the detector backend fails — at which
// point the error is sent on fatal and Run returns rather than retrying
// forever (spec.md §4.C, §7). The tracker is ticked every iteration even
// with zero detections, so it ages existing tracks (spec.md §4.H).
func (s *Stage) Run(ctx context.Context, capQ *queue.Queue[capture.CapturedFrame], outQ *queue.Queue[Result]) {
	for {
		cf, ok := capQ.Pop(ctx)
		if !ok {
			return
		}

		start := time.Now()

		out, err := s.tick(cf)
		if err != nil {
			if errors.Is(err, detect.ErrInference) {
				s.log.Error("inference backend failed, shutting down", zap.Error(err))
				if s.fatal != nil {
					s.fatal <- err
				}
				return
			}
			s.log.Warn("pipeline tick failed", zap.Error(err))
			continue
		}

		outQ.Push(out)
		if s.metrics != nil {
			s.metrics.IncTicksProcessed()
		}

		if elapsed := time.Since(start); elapsed > 0 {
			s.log.Debug("tick timing", zap.Duration("elapsed", elapsed))
		}
	}
}

func (s *Stage) tick(cf capture.CapturedFrame) (Result, error) {
	processedFrame := cf.Frame
	if len(s.chain) > 0 {
		var out gocv.Mat
		if err := s.chain.Apply(cf.Frame, &out); err != nil {
			return Result{}, err
		}
		processedFrame = out
	}

	detections, err := s.detect.Detect(processedFrame)
	if s.metrics != nil {
		s.metrics.IncInferenceCalls()
	}
	if err != nil {
		return Result{}, err
	}

	tracks := s.manager.Update(detections)

	return Result{
		CapturedAt: cf.CapturedAt,
		FrameID:    cf.FrameID,
		Frame:      capture.CapturedFrame{Frame: processedFrame, CapturedAt: cf.CapturedAt, FrameID: cf.FrameID},
		Tracks:     tracks,
	}, nil
}
