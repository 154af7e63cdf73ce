// Package config loads the runtime configuration of the balloon detector.
//
// Values are layered, later layers winning:
//
//  1. Built-in defaults (Default)
//  2. An optional YAML file
//  3. An optional .env file, which only fills variables not already set
//  4. BALLOON_* environment variables
//  5. Command-line flags, applied by the caller before Validate
package config

import (
	"errors"
	"fmt"
	"image"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ironsheep/balloon-vision/internal/imaging"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config is the complete runtime configuration.
type Config struct {
	Source  SourceConfig  `yaml:"source"`
	Display DisplayConfig `yaml:"display"`

	// TargetResolution is the requested capture size, "WIDTHxHEIGHT".
	TargetResolution string `yaml:"targetResolution"`

	// MaxFrames stops the run after this many frames; 0 runs until interrupted.
	MaxFrames int `yaml:"maxFrames"`

	ShowRawFeed          bool `yaml:"showRawFeed"`
	ShowDiagnosticPlanes bool `yaml:"showDiagnosticPlanes"`
	ShowAnnotatedOverlay bool `yaml:"showAnnotatedOverlay"`
	LogPerFrameTiming    bool `yaml:"logPerFrameTiming"`
	DrawDebugContours    bool `yaml:"drawDebugContours"`

	// UseAcceleratorBackend runs segmentation and scoring on AcceleratorDevice
	// instead of the host backend.
	UseAcceleratorBackend bool   `yaml:"useAcceleratorBackend"`
	AcceleratorDevice     string `yaml:"acceleratorDevice"`

	TargetHue        int     `yaml:"targetHue"`
	CircularityRatio float64 `yaml:"circularityRatio"`
	ScoreThreshold   int     `yaml:"scoreThreshold"`

	// InterruptPollMs is how long the pipeline waits for an interrupt key per frame.
	InterruptPollMs int `yaml:"interruptPollMs"`

	// ReportFormat is "text" or "json".
	ReportFormat string `yaml:"reportFormat"`
}

// SourceConfig selects the frame source.
type SourceConfig struct {
	Kind   string `yaml:"kind"`   // camera, files, watch, synthetic
	Device int    `yaml:"device"` // camera index
	Path   string `yaml:"path"`   // directory for files and watch
	Loop   bool   `yaml:"loop"`   // replay files forever
}

// DisplayConfig selects the display sink.
type DisplayConfig struct {
	Kind   string `yaml:"kind"`   // none, dir, websocket, window
	Dir    string `yaml:"dir"`    // snapshot directory for dir
	Listen string `yaml:"listen"` // address for websocket
	Every  int    `yaml:"every"`  // snapshot every n-th frame for dir
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Source: SourceConfig{
			Kind: "synthetic",
		},
		Display: DisplayConfig{
			Kind:   "none",
			Dir:    "./frames",
			Listen: ":8090",
			Every:  1,
		},
		TargetResolution:  "1280x960",
		AcceleratorDevice: "cuda",
		TargetHue:         90,
		CircularityRatio:  0.65,
		ScoreThreshold:    200,
		InterruptPollMs:   30,
		ReportFormat:      "text",
	}
}

// Load builds a configuration from the defaults, the YAML file at path, the .env file
// at envFile and the environment. Empty paths skip their layer; a missing envFile is
// not an error.
//
// Load does not validate the result: callers apply their command-line overrides and
// then call Validate once.
func Load(path, envFile string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from BALLOON_* variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}
	decimal := func(key string, dst *float64) {
		if v, ok := lookup(key); ok && v != "" {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = f
		}
	}

	str("BALLOON_SOURCE", &c.Source.Kind)
	num("BALLOON_CAMERA_DEVICE", &c.Source.Device)
	str("BALLOON_SOURCE_PATH", &c.Source.Path)
	boolean("BALLOON_SOURCE_LOOP", &c.Source.Loop)
	str("BALLOON_RESOLUTION", &c.TargetResolution)
	num("BALLOON_MAX_FRAMES", &c.MaxFrames)
	boolean("BALLOON_SHOW_RAW_FEED", &c.ShowRawFeed)
	boolean("BALLOON_SHOW_DIAGNOSTIC_PLANES", &c.ShowDiagnosticPlanes)
	boolean("BALLOON_SHOW_ANNOTATED_OVERLAY", &c.ShowAnnotatedOverlay)
	boolean("BALLOON_LOG_FRAME_TIMING", &c.LogPerFrameTiming)
	boolean("BALLOON_DRAW_DEBUG", &c.DrawDebugContours)
	boolean("BALLOON_ACCELERATOR", &c.UseAcceleratorBackend)
	str("BALLOON_ACCELERATOR_DEVICE", &c.AcceleratorDevice)
	num("BALLOON_TARGET_HUE", &c.TargetHue)
	decimal("BALLOON_CIRCULARITY", &c.CircularityRatio)
	num("BALLOON_SCORE_THRESHOLD", &c.ScoreThreshold)
	str("BALLOON_DISPLAY", &c.Display.Kind)
	str("BALLOON_DISPLAY_DIR", &c.Display.Dir)
	str("BALLOON_DISPLAY_LISTEN", &c.Display.Listen)
	num("BALLOON_DISPLAY_EVERY", &c.Display.Every)
	num("BALLOON_INTERRUPT_POLL_MS", &c.InterruptPollMs)
	str("BALLOON_REPORT_FORMAT", &c.ReportFormat)

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

// Validate checks every field and reports all problems at once.
func (c *Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if !oneOf(c.Source.Kind, "camera", "files", "watch", "synthetic") {
		bad("source.kind %q: want camera, files, watch or synthetic", c.Source.Kind)
	}
	if (c.Source.Kind == "files" || c.Source.Kind == "watch") && c.Source.Path == "" {
		bad("source.path is required for %s sources", c.Source.Kind)
	}
	if c.Source.Device < 0 {
		bad("source.device %d: must not be negative", c.Source.Device)
	}
	if _, err := imaging.ParseResolution(c.TargetResolution); err != nil {
		bad("targetResolution: %v", err)
	}
	if c.MaxFrames < 0 {
		bad("maxFrames %d: must not be negative", c.MaxFrames)
	}
	if !oneOf(c.AcceleratorDevice, "cuda", "pool") {
		bad("acceleratorDevice %q: want cuda or pool", c.AcceleratorDevice)
	}
	if c.TargetHue < 0 || c.TargetHue > 179 {
		bad("targetHue %d: want 0-179", c.TargetHue)
	}
	if c.CircularityRatio < 0 || c.CircularityRatio > 1 {
		bad("circularityRatio %g: want 0-1", c.CircularityRatio)
	}
	if c.ScoreThreshold < 0 || c.ScoreThreshold > 255 {
		bad("scoreThreshold %d: want 0-255", c.ScoreThreshold)
	}
	if !oneOf(c.Display.Kind, "none", "dir", "websocket", "window") {
		bad("display.kind %q: want none, dir, websocket or window", c.Display.Kind)
	}
	if c.Display.Kind == "dir" && c.Display.Dir == "" {
		bad("display.dir is required for the dir display")
	}
	if c.Display.Every < 1 {
		bad("display.every %d: must be at least 1", c.Display.Every)
	}
	if c.InterruptPollMs < 0 {
		bad("interruptPollMs %d: must not be negative", c.InterruptPollMs)
	}
	if !oneOf(c.ReportFormat, "text", "json") {
		bad("reportFormat %q: want text or json", c.ReportFormat)
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

// Resolution returns the parsed target resolution. Call Validate first.
func (c *Config) Resolution() image.Point {
	p, _ := imaging.ParseResolution(c.TargetResolution)
	return p
}

// BackendName returns the backend to open: the accelerator device when the
// accelerator is enabled, "host" otherwise.
func (c *Config) BackendName() string {
	if c.UseAcceleratorBackend {
		return c.AcceleratorDevice
	}
	return "host"
}

// InterruptPoll returns InterruptPollMs as a duration.
func (c *Config) InterruptPoll() time.Duration {
	return time.Duration(c.InterruptPollMs) * time.Millisecond
}

func oneOf(v string, options ...string) bool {
	for _, o := range options {
		if v == o {
			return true
		}
	}
	return false
}
