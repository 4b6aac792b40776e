package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"github.com/edgetrack/pipeline/internal/capture"
	"github.com/edgetrack/pipeline/internal/detect"
	"github.com/edgetrack/pipeline/internal/queue"
	"github.com/edgetrack/pipeline/internal/tracker"
)

type fakeDetector struct {
	detections []detect.Detection
	err        error
}

func (f *fakeDetector) Detect(gocv.Mat) ([]detect.Detection, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.detections, nil
}

func TestRun_ProducesOneOutputPerInputFrame(t *testing.T) {
	capQ := queue.New[capture.CapturedFrame](2)
	outQ := queue.New[Result](2)

	detector := &fakeDetector{detections: []detect.Detection{{X1: 10, Y1: 10, X2: 50, Y2: 50, Score: 0.9}}}
	manager := tracker.New(tracker.DefaultConfig(), nil)
	stage := New(nil, detector, manager, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go stage.Run(ctx, capQ, outQ)

	frame := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer frame.Close()
	capQ.Push(capture.CapturedFrame{Frame: frame, CapturedAt: time.Now(), FrameID: 1})

	result, ok := outQ.Pop(ctx)
	if !ok {
		t.Fatal("expected one result from the pipeline")
	}
	if result.FrameID != 1 {
		t.Errorf("expected FrameID 1, got %d", result.FrameID)
	}
	// Grace window (frame_count<=min_hits) means the first tick already
	// emits the freshly birthed track.
	if len(result.Tracks) != 1 {
		t.Errorf("expected 1 emitted track, got %d", len(result.Tracks))
	}
}

func TestRun_EmptyDetectionsStillProducesResult(t *testing.T) {
	capQ := queue.New[capture.CapturedFrame](2)
	outQ := queue.New[Result](2)

	detector := &fakeDetector{}
	manager := tracker.New(tracker.DefaultConfig(), nil)
	stage := New(nil, detector, manager, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go stage.Run(ctx, capQ, outQ)

	frame := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer frame.Close()
	capQ.Push(capture.CapturedFrame{Frame: frame, CapturedAt: time.Now(), FrameID: 1})

	result, ok := outQ.Pop(ctx)
	if !ok {
		t.Fatal("expected a result even with zero detections")
	}
	if len(result.Tracks) != 0 {
		t.Errorf("expected 0 tracks, got %d", len(result.Tracks))
	}
}

func TestRun_InferenceErrorIsFatalNotRetried(t *testing.T) {
	capQ := queue.New[capture.CapturedFrame](2)
	outQ := queue.New[Result](2)
	fatal := make(chan error, 1)

	detector := &fakeDetector{err: errors.New("boom")}
	manager := tracker.New(tracker.DefaultConfig(), nil)
	stage := New(nil, detector, manager, nil, fatal, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		stage.Run(ctx, capQ, outQ)
		close(done)
	}()

	frame := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer frame.Close()
	capQ.Push(capture.CapturedFrame{Frame: frame, CapturedAt: time.Now(), FrameID: 1})

	select {
	case err := <-fatal:
		if !errors.Is(err, detect.ErrInference) {
			t.Errorf("expected ErrInference on the fatal channel, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected an inference error on the fatal channel")
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected Run to return after a fatal inference error, not retry forever")
	}
}
