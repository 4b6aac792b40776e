// Package config loads and validates the YAML pipeline configuration.
//
// The configuration file supports the following structure:
//
//	source: 0
//	queue: 4
//	camera:
//	  width: 640
//	  height: 480
//	  fps: 30
//	preprocessing:
//	  preset: Night
//	detector:
//	  model: models/detector.onnx
//	  threshold: 0.4
//	tracker:
//	  name: sort
//	  params: { max_age: 10, min_hits: 3, iou_threshold: 0.3 }
//	display_gray: false
//
// Example usage:
//
//	cfg, err := config.Load("config/pipeline.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("camera id: %d\n", cfg.Source.CameraID)
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Source identifies the video source: either a camera device index or a file
// path. Exactly one of the two is active, tracked by IsFile.
type Source struct {
	CameraID int
	FilePath string
	IsFile   bool
}

// UnmarshalYAML accepts either a scalar int (camera index) or a scalar
// string (file path), per spec.md §6's `source: <int camera-id> | <string
// file-path>` schema.
func (s *Source) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		var n int
		if err2 := value.Decode(&n); err2 != nil {
			return fmt.Errorf("source must be an int camera id or a string file path: %w", err)
		}
		s.CameraID = n
		s.IsFile = false
		return nil
	}

	if n, err := strconv.Atoi(raw); err == nil {
		s.CameraID = n
		s.IsFile = false
		return nil
	}

	s.FilePath = raw
	s.IsFile = true
	return nil
}

// CameraConfig holds capture resolution/rate settings.
type CameraConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
	FPS    int `yaml:"fps"`
}

// ContrastEnhanceConfig configures the gamma-LUT contrast operator. Enable
// defaults to true when the block is present (spec.md §4.B); a block can
// only be turned off with an explicit `enable: false`.
type ContrastEnhanceConfig struct {
	Enable bool    `yaml:"enable"`
	Gamma  float64 `yaml:"gamma"`
}

func (c *ContrastEnhanceConfig) UnmarshalYAML(value *yaml.Node) error {
	type plain ContrastEnhanceConfig
	p := plain{Enable: true}
	if err := value.Decode(&p); err != nil {
		return err
	}
	*c = ContrastEnhanceConfig(p)
	return nil
}

// EdgeEnhanceConfig configures the unsharp-mask operator. Enable defaults
// to true when the block is present (spec.md §4.B).
type EdgeEnhanceConfig struct {
	Enable bool    `yaml:"enable"`
	Ksize  int     `yaml:"ksize"`
	Amount float64 `yaml:"amount"`
}

func (c *EdgeEnhanceConfig) UnmarshalYAML(value *yaml.Node) error {
	type plain EdgeEnhanceConfig
	p := plain{Enable: true}
	if err := value.Decode(&p); err != nil {
		return err
	}
	*c = EdgeEnhanceConfig(p)
	return nil
}

// DenoiseConfig configures the Gaussian blur operator. Enable defaults to
// true when the block is present (spec.md §4.B).
type DenoiseConfig struct {
	Enable bool    `yaml:"enable"`
	Ksize  int     `yaml:"ksize"`
	Sigma  float64 `yaml:"sigma"`
}

func (c *DenoiseConfig) UnmarshalYAML(value *yaml.Node) error {
	type plain DenoiseConfig
	p := plain{Enable: true}
	if err := value.Decode(&p); err != nil {
		return err
	}
	*c = DenoiseConfig(p)
	return nil
}

// DeblurConfig configures the Laplacian-sharpen operator. Enable defaults
// to true when the block is present (spec.md §4.B).
type DeblurConfig struct {
	Enable bool    `yaml:"enable"`
	Alpha  float64 `yaml:"alpha"`
	Ks     int     `yaml:"ks"`
}

func (c *DeblurConfig) UnmarshalYAML(value *yaml.Node) error {
	type plain DeblurConfig
	p := plain{Enable: true}
	if err := value.Decode(&p); err != nil {
		return err
	}
	*c = DeblurConfig(p)
	return nil
}

// ClutterRemovalConfig configures the background-subtraction operator.
// Enable defaults to true when the block is present (spec.md §4.B).
type ClutterRemovalConfig struct {
	Enable        bool `yaml:"enable"`
	History       int  `yaml:"history"`
	VarThreshold  int  `yaml:"var_threshold"`
	DetectShadows bool `yaml:"detect_shadows"`
}

func (c *ClutterRemovalConfig) UnmarshalYAML(value *yaml.Node) error {
	type plain ClutterRemovalConfig
	p := plain{Enable: true}
	if err := value.Decode(&p); err != nil {
		return err
	}
	*c = ClutterRemovalConfig(p)
	return nil
}

// PreprocessingConfig mirrors the `preprocessing` config block. If Preset is
// non-empty, every other field is ignored (spec.md §4.B).
type PreprocessingConfig struct {
	Preset          string                 `yaml:"preset"`
	ContrastEnhance *ContrastEnhanceConfig `yaml:"contrast_enhance"`
	EdgeEnhance     *EdgeEnhanceConfig     `yaml:"edge_enhance"`
	Denoise         *DenoiseConfig         `yaml:"denoise"`
	Deblur          *DeblurConfig          `yaml:"deblur"`
	ClutterRemoval  *ClutterRemovalConfig  `yaml:"clutter_removal"`
}

// DetectorConfig holds neural back-end settings. InputWidth/InputHeight are
// the model's fixed input shape, independent of the camera's capture
// resolution (see DESIGN.md, "Open Question decisions") — the adapter resizes every frame
// to this shape before inference and rescales detections back out.
type DetectorConfig struct {
	Model       string  `yaml:"model"`
	Threshold   float64 `yaml:"threshold"`
	InputWidth  int     `yaml:"input_width"`
	InputHeight int     `yaml:"input_height"`
}

// TrackerParams holds SORT tuning parameters.
type TrackerParams struct {
	MaxAge       int     `yaml:"max_age"`
	MinHits      int     `yaml:"min_hits"`
	IOUThreshold float64 `yaml:"iou_threshold"`
}

// TrackerConfig selects the tracker implementation and its parameters.
type TrackerConfig struct {
	Name   string        `yaml:"name"`
	Params TrackerParams `yaml:"params"`
}

// Config is the complete pipeline configuration.
type Config struct {
	Source        Source              `yaml:"source"`
	Queue         int                 `yaml:"queue"`
	Camera        CameraConfig        `yaml:"camera"`
	Preprocessing PreprocessingConfig `yaml:"preprocessing"`
	Detector      DetectorConfig      `yaml:"detector"`
	Tracker       TrackerConfig       `yaml:"tracker"`
	DisplayGray   bool                `yaml:"display_gray"`

	// Preview and LogLevel are CLI-only overrides (see cmd/edgetrack),
	// not part of spec.md's schema; they are excluded from YAML decoding.
	Preview  bool   `yaml:"-"`
	LogLevel string `yaml:"-"`
}

// Default returns the default configuration per spec.md §6's stated
// defaults. Source defaults to camera 0.
func Default() *Config {
	return &Config{
		Source: Source{CameraID: 0},
		Queue:  4,
		Camera: CameraConfig{
			Width:  640,
			Height: 480,
			FPS:    30,
		},
		Detector: DetectorConfig{
			Threshold:   0.4,
			InputWidth:  300,
			InputHeight: 300,
		},
		Tracker: TrackerConfig{
			Name: "sort",
			Params: TrackerParams{
				MaxAge:       10,
				MinHits:      3,
				IOUThreshold: 0.3,
			},
		},
		DisplayGray: false,
		Preview:     true,
		LogLevel:    "info",
	}
}

// Load reads and parses a YAML configuration file. If path is empty or the
// file does not exist, the default configuration is returned — missing keys
// always take the stated default (spec.md §6).
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Decode into the default-seeded Config so unset keys in the document
	// keep their default value rather than being zeroed.
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Camera.Width <= 0 {
		return fmt.Errorf("camera width must be positive, got %d", c.Camera.Width)
	}
	if c.Camera.Height <= 0 {
		return fmt.Errorf("camera height must be positive, got %d", c.Camera.Height)
	}
	if c.Camera.FPS <= 0 {
		return fmt.Errorf("camera FPS must be positive, got %d", c.Camera.FPS)
	}
	if c.Queue <= 0 || c.Queue > 4 {
		return fmt.Errorf("queue capacity must be between 1 and 4, got %d", c.Queue)
	}
	if c.Detector.Threshold < 0 || c.Detector.Threshold > 1 {
		return fmt.Errorf("detector threshold must be between 0 and 1, got %f", c.Detector.Threshold)
	}
	if c.Detector.InputWidth <= 0 || c.Detector.InputHeight <= 0 {
		return fmt.Errorf("detector input_width/input_height must be positive, got %dx%d", c.Detector.InputWidth, c.Detector.InputHeight)
	}
	if c.Tracker.Params.MaxAge < 0 {
		return fmt.Errorf("tracker max_age must be non-negative, got %d", c.Tracker.Params.MaxAge)
	}
	if c.Tracker.Params.MinHits < 0 {
		return fmt.Errorf("tracker min_hits must be non-negative, got %d", c.Tracker.Params.MinHits)
	}
	if c.Tracker.Params.IOUThreshold < 0 || c.Tracker.Params.IOUThreshold > 1 {
		return fmt.Errorf("tracker iou_threshold must be between 0 and 1, got %f", c.Tracker.Params.IOUThreshold)
	}
	return nil
}
