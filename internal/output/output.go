// Package output consumes pipeline results, draws track overlays and an FPS
// HUD, displays the result in a window, and signals shutdown on ESC.
//
// Window ownership and the FPS-EMA HUD are grounded on the teacher's
// pkg/miface/preview.go (PreviewWindow: a gocv.Window driven by IMShow/
// WaitKey), generalized from a one-off debug preview into the spec's
// always-on display stage with track overlays and an FPS readout.
package output

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"
	"time"

	"go.uber.org/zap"

	"gocv.io/x/gocv"

	"github.com/edgetrack/pipeline/internal/pipeline"
	"github.com/edgetrack/pipeline/internal/queue"
	"github.com/edgetrack/pipeline/internal/tracker"
)

var (
	boxColor  = color.RGBA{R: 0, G: 255, B: 0, A: 0}
	hudColor  = color.RGBA{R: 255, G: 255, B: 0, A: 0}
	textScale = 0.6
	textThick = 2
)

// Stage draws and displays pipeline results.
type Stage struct {
	window      *gocv.Window
	preview     bool
	displayGray bool
	log         *zap.Logger

	fpsEMA   float64
	fpsInit  bool
	lastSeen time.Time
}

// New constructs an output Stage. If preview is false, no window is
// created and ESC-shutdown is unavailable — useful for headless runs on a
// systemd unit (SPEC_FULL.md §6 expansion).
func New(preview, displayGray bool, log *zap.Logger) *Stage {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Stage{preview: preview, displayGray: displayGray, log: log.With(zap.String("component", "output"))}
	if preview {
		s.window = gocv.NewWindow("edgetrack")
	}
	return s
}

// Run pops results from outQ, draws overlays, and displays them until ctx
// is cancelled, outQ is closed and drained, or ESC is pressed (which also
// invokes requestShutdown).
func (s *Stage) Run(ctx context.Context, outQ *queue.Queue[pipeline.Result], requestShutdown func()) {
	defer func() {
		if s.window != nil {
			s.window.Close()
		}
	}()

	for {
		result, ok := outQ.Pop(ctx)
		if !ok {
			return
		}

		frame := result.Frame.Frame
		s.drawTracks(frame, result.Tracks)
		s.updateFPS(result.CapturedAt)
		s.drawHUD(frame)

		display := frame
		hasGray := false
		var gray gocv.Mat
		if s.displayGray {
			gray = gocv.NewMat()
			gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray)
			display = gray
			hasGray = true
		}

		shutdown := false
		if s.window != nil {
			s.window.IMShow(display)
			key := s.window.WaitKey(1)
			if key == 27 { // ESC
				s.log.Info("ESC pressed, requesting shutdown")
				shutdown = true
			}
		}

		if hasGray {
			gray.Close()
		}
		frame.Close()

		if shutdown {
			if requestShutdown != nil {
				requestShutdown()
			}
			return
		}
	}
}

// drawTracks validates finiteness, clips to frame bounds, skips degenerate
// boxes, and draws a rectangle plus "ID:<n>" label for each track
// (spec.md §4.I).
func (s *Stage) drawTracks(frame gocv.Mat, tracks []tracker.TrackOutput) {
	w, h := frame.Cols(), frame.Rows()

	for _, t := range tracks {
		if math.IsNaN(t.X1) || math.IsNaN(t.Y1) || math.IsNaN(t.X2) || math.IsNaN(t.Y2) {
			continue
		}
		if math.IsInf(t.X1, 0) || math.IsInf(t.Y1, 0) || math.IsInf(t.X2, 0) || math.IsInf(t.Y2, 0) {
			continue
		}

		x1 := clip(t.X1, 0, float64(w))
		y1 := clip(t.Y1, 0, float64(h))
		x2 := clip(t.X2, 0, float64(w))
		y2 := clip(t.Y2, 0, float64(h))

		if x2 <= x1 || y2 <= y1 {
			continue
		}

		rect := image.Rect(int(x1), int(y1), int(x2), int(y2))
		gocv.Rectangle(&frame, rect, boxColor, 2)

		label := fmt.Sprintf("ID:%d", t.ID)
		gocv.PutText(&frame, label, image.Pt(int(x1), int(y1)-6), gocv.FontHersheyPlain, textScale, boxColor, textThick)
	}
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// updateFPS maintains an EMA of FPS computed from successive capture
// timestamps: fps_ema <- 0.9*fps_ema + 0.1*(1/dt), or instantaneous on the
// first valid delta (spec.md §4.I).
func (s *Stage) updateFPS(capturedAt time.Time) {
	if s.lastSeen.IsZero() {
		s.lastSeen = capturedAt
		return
	}

	dt := capturedAt.Sub(s.lastSeen).Seconds()
	s.lastSeen = capturedAt
	if dt <= 0 {
		return
	}

	instant := 1.0 / dt
	if !s.fpsInit {
		s.fpsEMA = instant
		s.fpsInit = true
		return
	}
	s.fpsEMA = 0.9*s.fpsEMA + 0.1*instant
}

func (s *Stage) drawHUD(frame gocv.Mat) {
	text := fmt.Sprintf("FPS: %.1f", s.fpsEMA)
	gocv.PutText(&frame, text, image.Pt(8, 20), gocv.FontHersheyPlain, textScale, hudColor, textThick)
}
