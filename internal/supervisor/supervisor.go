// Package supervisor wires the three pipeline stages together: it
// constructs both queues, starts Capture, Pipeline, and Output, installs
// the OS signal handler, and on shutdown closes capQ first, waits for
// Pipeline to drain, then closes outQ.
//
// The signal.Notify(os.Interrupt, syscall.SIGTERM) block is grounded
// verbatim on the teacher's cmd/miface/main.go shutdown-signal handling,
// generalized from a single blocking main-loop select into a dedicated
// Supervisor type that also multiplexes the stages' Fatal() channel.
package supervisor

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/edgetrack/pipeline/internal/capture"
	"github.com/edgetrack/pipeline/internal/metrics"
	"github.com/edgetrack/pipeline/internal/output"
	"github.com/edgetrack/pipeline/internal/pipeline"
	"github.com/edgetrack/pipeline/internal/queue"
)

// Supervisor owns both handoff queues and coordinates the three stages'
// lifecycle.
type Supervisor struct {
	capQ *queue.Queue[capture.CapturedFrame]
	outQ *queue.Queue[pipeline.Result]

	capture  *capture.Stage
	pipeline *pipeline.Stage
	output   *output.Stage

	fatal   chan error
	log     *zap.Logger
	metrics *metrics.Counters

	cancel context.CancelFunc
}

// New constructs a Supervisor over already-built stages and a queue
// capacity (spec.md §6's `queue` config key, default 4, capped at 4 per
// internal/config.Validate). fatal is the same channel passed to
// capture.Open, so a CaptureFatal raised after Run during capture reaches
// the supervisor's own select loop; it must be buffered (capacity >= 1).
// counters may be nil, in which case no shutdown summary is logged.
func New(queueCapacity int, captureStage *capture.Stage, pipelineStage *pipeline.Stage, outputStage *output.Stage, log *zap.Logger, fatal chan error, counters *metrics.Counters) *Supervisor {
	if log == nil {
		log = zap.NewNop()
	}
	if fatal == nil {
		fatal = make(chan error, 3)
	}
	return &Supervisor{
		capQ:     queue.New[capture.CapturedFrame](queueCapacity),
		outQ:     queue.New[pipeline.Result](queueCapacity),
		capture:  captureStage,
		pipeline: pipelineStage,
		output:   outputStage,
		fatal:    fatal,
		log:      log.With(zap.String("component", "supervisor")),
		metrics:  counters,
	}
}

// Fatal returns the channel that Capture sends ErrSourceLost on and
// Pipeline sends InferenceError on. Run itself selects on it alongside the
// OS signal channel and performs the same ordered shutdown (SPEC_FULL.md
// §4.J expansion).
func (s *Supervisor) Fatal() <-chan error {
	return s.fatal
}

// Run starts all three stages (constructed after the queues, per spec.md
// §4.J's "all three are started after construction; queues exist first"),
// installs the SIGINT/SIGTERM handler, and blocks until shutdown is
// requested by a signal, a fatal error, or ESC in the output stage. On
// return, shutdown has completed: capQ closed, Pipeline drained, outQ
// closed.
func (s *Supervisor) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	pipelineDone := make(chan struct{})
	go func() {
		s.pipeline.Run(ctx, s.capQ, s.outQ)
		close(pipelineDone)
	}()

	go s.capture.Run(ctx, s.capQ)

	outputDone := make(chan struct{})
	go func() {
		s.output.Run(ctx, s.outQ, s.requestShutdown)
		close(outputDone)
	}()

	var fatalErr error
	select {
	case <-ctx.Done():
	case sig := <-sigCh:
		s.log.Info("received shutdown signal", zap.String("signal", sig.String()))
	case err := <-s.fatal:
		s.log.Error("fatal error, shutting down", zap.Error(err))
		fatalErr = err
	}

	s.shutdown(pipelineDone)
	<-outputDone

	if s.metrics != nil {
		framesCaptured, ticksProcessed, inferenceCalls := s.metrics.Snapshot()
		dropped, delivered := s.capQ.Stats()
		s.log.Info("run summary",
			zap.Uint64("frames_captured", framesCaptured),
			zap.Uint64("ticks_processed", ticksProcessed),
			zap.Uint64("inference_calls", inferenceCalls),
			zap.Uint64("frames_dropped", dropped),
			zap.Uint64("frames_delivered", delivered),
		)
	}

	return fatalErr
}

func (s *Supervisor) requestShutdown() {
	if s.cancel != nil {
		s.cancel()
	}
}

// shutdown implements the ordered close: capQ first, wait for Pipeline to
// drain, then outQ — matching spec.md §4.J exactly.
func (s *Supervisor) shutdown(pipelineDone <-chan struct{}) {
	s.capQ.Close()
	<-pipelineDone
	s.outQ.Close()
}
