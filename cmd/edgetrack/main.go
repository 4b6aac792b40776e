// Package main provides the CLI entrypoint for edgetrack.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	"go.uber.org/zap"

	"github.com/edgetrack/pipeline/internal/capture"
	"github.com/edgetrack/pipeline/internal/config"
	"github.com/edgetrack/pipeline/internal/detect"
	"github.com/edgetrack/pipeline/internal/logging"
	"github.com/edgetrack/pipeline/internal/metrics"
	"github.com/edgetrack/pipeline/internal/output"
	"github.com/edgetrack/pipeline/internal/pipeline"
	"github.com/edgetrack/pipeline/internal/preprocess"
	"github.com/edgetrack/pipeline/internal/supervisor"
	"github.com/edgetrack/pipeline/internal/tracker"
)

var version = "0.1.0"

func main() {
	cfgPath := flag.String("cfg", "config/pipeline.yaml", "Path to YAML configuration file")
	source := flag.String("source", "", "Video source override: camera index or file path (overrides config)")
	preview := flag.Bool("preview", true, "Show the tracked-output preview window")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	showVersion := flag.Bool("version", false, "Show version information")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "edgetrack - real-time multi-object detection and tracking\n\n")
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                              # Run with default settings\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -cfg config/pipeline.yaml    # Run with a custom config\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -source 1                    # Use camera index 1\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -source clip.mp4 -preview=0  # Headless run over a file\n", os.Args[0])
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("edgetrack version %s\n", version)
		os.Exit(0)
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}

	if *source != "" {
		applySourceOverride(cfg, *source)
	}
	cfg.Preview = *preview
	cfg.LogLevel = *logLevel

	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "building logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Error("exiting with error", zap.Error(err))
		os.Exit(1)
	}
}

// applySourceOverride applies config.Source's own "int camera id or string
// file path" rule (a value that strconv.Atoi accepts is a camera id) so
// -source behaves identically to the YAML key it overrides (spec.md §6).
func applySourceOverride(cfg *config.Config, source string) {
	if n, ok := parseCameraID(source); ok {
		cfg.Source = config.Source{CameraID: n}
		return
	}
	cfg.Source = config.Source{FilePath: source, IsFile: true}
}

func parseCameraID(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

func run(cfg *config.Config, log *zap.Logger) error {
	counters := &metrics.Counters{}
	fatal := make(chan error, 3)

	captureStage, err := capture.Open(*cfg, log, fatal, counters)
	if err != nil {
		return fmt.Errorf("opening capture source: %w", err)
	}

	chain, err := preprocess.NewChainFromConfig(cfg.Preprocessing)
	if err != nil {
		return fmt.Errorf("building preprocessing chain: %w", err)
	}
	defer chain.Close()

	backend, err := detect.NewGocvDNNBackend(cfg.Detector.Model, cfg.Detector.InputWidth, cfg.Detector.InputHeight, "")
	if err != nil {
		return fmt.Errorf("loading detector model: %w", err)
	}
	defer backend.Close()

	detector := detect.NewAdapter(backend, cfg.Detector.Threshold)

	trackerCfg := tracker.Config{
		MaxAge:              cfg.Tracker.Params.MaxAge,
		MinHits:             cfg.Tracker.Params.MinHits,
		IOUThreshold:        cfg.Tracker.Params.IOUThreshold,
		GraceWindowEmitsAll: true,
	}
	manager := tracker.New(trackerCfg, log)

	pipelineStage := pipeline.New(chain, detector, manager, log, fatal, counters)
	outputStage := output.New(cfg.Preview, cfg.DisplayGray, log)

	sup := supervisor.New(cfg.Queue, captureStage, pipelineStage, outputStage, log, fatal, counters)

	log.Info("starting edgetrack",
		zap.Int("queue_capacity", cfg.Queue),
		zap.Bool("preview", cfg.Preview),
		zap.String("tracker", cfg.Tracker.Name),
	)

	return sup.Run(context.Background())
}
