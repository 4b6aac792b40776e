// Package capture drives the video source (camera or file), probes a
// working FourCC codec, and feeds timestamped frames into the capture
// queue with drop-oldest backpressure.
//
// Source-opening, FourCC probing, and the V4L2-backend/MJPEG-default
// pattern are grounded on the teacher's pkg/miface/camera_gocv.go
// (OpenCVCamera.Open), generalized from a single hardcoded MJPEG codec to
// the ordered MJPG/YUYV/H264 probe spec.md §4.G requires, and extended to
// also accept a file path source.
package capture

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"gocv.io/x/gocv"

	"github.com/edgetrack/pipeline/internal/config"
	"github.com/edgetrack/pipeline/internal/metrics"
	"github.com/edgetrack/pipeline/internal/queue"
)

// ErrNoWorkingCodec is returned when none of the probed FourCC codecs yield
// successful test reads — a StartupFatal per spec.md §7.
var ErrNoWorkingCodec = errors.New("capture: no working FourCC codec found")

// ErrSourceLost is sent on the fatal channel once consecutive transient read
// failures exceed maxConsecutiveFailures, escalating what started as
// CaptureTransient into a fatal condition the supervisor must shut down on
// (spec.md §7).
var ErrSourceLost = errors.New("capture: source lost, too many consecutive read failures")

const maxConsecutiveFailures = 100

// fourcc codes probed in order, per spec.md §4.G.
var fourccCandidates = []struct {
	name string
	code float64
}{
	{"MJPG", fourccCode('M', 'J', 'P', 'G')},
	{"YUYV", fourccCode('Y', 'U', 'Y', 'V')},
	{"H264", fourccCode('H', '2', '6', '4')},
}

func fourccCode(a, b, c, d byte) float64 {
	return float64(uint32(a) | uint32(b)<<8 | uint32(c)<<16 | uint32(d)<<24)
}

// CapturedFrame is a captured frame paired with its capture timestamp.
// Immutable once enqueued; ownership transfers to the consumer (spec.md §3).
type CapturedFrame struct {
	Frame      gocv.Mat
	CapturedAt time.Time
	FrameID    uint64
}

// Stage drives the configured source in a loop, pushing CapturedFrame
// values onto capQ until ctx is cancelled.
type Stage struct {
	source *gocv.VideoCapture
	log    *zap.Logger

	frameID   uint64
	dropCount uint64

	fatal   chan<- error
	metrics *metrics.Counters
}

// Open opens the configured source (camera index or file path), sets
// resolution/FPS/buffer size, and probes FourCC codecs in order, failing
// fatally if none succeed. counters may be nil, in which case capture
// counts are simply not recorded.
func Open(cfg config.Config, log *zap.Logger, fatal chan<- error, counters *metrics.Counters) (*Stage, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("component", "capture"))

	var source *gocv.VideoCapture
	var err error
	if cfg.Source.IsFile {
		source, err = gocv.VideoCaptureFile(cfg.Source.FilePath)
	} else {
		source, err = gocv.OpenVideoCaptureWithAPI(cfg.Source.CameraID, gocv.VideoCaptureV4L2)
	}
	if err != nil {
		return nil, fmt.Errorf("capture: opening source: %w", err)
	}
	if !source.IsOpened() {
		source.Close()
		return nil, fmt.Errorf("capture: source not found or unavailable")
	}

	source.Set(gocv.VideoCaptureBufferSize, 1)
	if cfg.Camera.Width > 0 {
		source.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Camera.Width))
	}
	if cfg.Camera.Height > 0 {
		source.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Camera.Height))
	}
	if cfg.Camera.FPS > 0 {
		source.Set(gocv.VideoCaptureFPS, float64(cfg.Camera.FPS))
	}

	if err := probeCodec(source, log); err != nil {
		source.Close()
		return nil, err
	}

	return &Stage{source: source, log: log, fatal: fatal, metrics: counters}, nil
}

// probeCodec sets and test-reads three frames for each candidate FourCC in
// order; the first that yields successful reads is kept.
func probeCodec(source *gocv.VideoCapture, log *zap.Logger) error {
	mat := gocv.NewMat()
	defer mat.Close()

	for _, candidate := range fourccCandidates {
		source.Set(gocv.VideoCaptureFOURCC, candidate.code)

		ok := true
		for i := 0; i < 3; i++ {
			if !source.Read(&mat) || mat.Empty() {
				ok = false
				break
			}
		}
		if ok {
			log.Debug("codec probe succeeded", zap.String("codec", candidate.name))
			return nil
		}
	}

	return ErrNoWorkingCodec
}

// Run reads frames in a loop until ctx is cancelled, timestamping each and
// pushing it onto capQ with drop-oldest semantics. On a transient read
// failure it sleeps briefly and retries (CaptureTransient, spec.md §7).
func (s *Stage) Run(ctx context.Context, capQ *queue.Queue[CapturedFrame]) {
	defer s.source.Close()

	consecutiveFailures := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		mat := gocv.NewMat()
		if !s.source.Read(&mat) || mat.Empty() {
			mat.Close()
			consecutiveFailures++
			if consecutiveFailures >= maxConsecutiveFailures {
				s.log.Error("capture source lost", zap.Int("consecutive_failures", consecutiveFailures))
				if s.fatal != nil {
					s.fatal <- ErrSourceLost
				}
				return
			}
			s.log.Warn("transient capture failure, retrying")
			time.Sleep(30 * time.Millisecond)
			continue
		}
		consecutiveFailures = 0

		s.frameID++
		capQ.Push(CapturedFrame{
			Frame:      mat,
			CapturedAt: time.Now(),
			FrameID:    s.frameID,
		})
		if s.metrics != nil {
			s.metrics.IncFramesCaptured()
		}

		dropped, _ := capQ.Stats()
		if dropped > 0 && dropped%100 == 0 && dropped != s.dropCount {
			s.dropCount = dropped
			s.log.Debug("drop-oldest counter", zap.Uint64("dropped", dropped))
		}
	}
}
