package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ironsheep/balloon-vision/internal/backend"
	"github.com/ironsheep/balloon-vision/internal/config"
	"github.com/ironsheep/balloon-vision/internal/display"
	"github.com/ironsheep/balloon-vision/internal/pipeline"
	"github.com/ironsheep/balloon-vision/internal/source"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Handle --version and --help before flag parsing
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("balloon-vision %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			printHelp()
			return
		}
	}

	// Logs go to stderr; stdout carries the exit report
	logger := newLogger(os.Getenv("BALLOON_LOG_LEVEL"))
	slog.SetDefault(logger)

	if err := run(logger, os.Args[1:]); err != nil {
		logger.Error("balloon-vision: fatal", "error", err)
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Println("balloon-vision - real-time balloon detection in a camera feed")
	fmt.Println()
	fmt.Println("Usage: balloon-vision [options]")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --version, -v        Print version information")
	fmt.Println("  --help, -h           Print this help message")
	fmt.Println("  -config FILE         YAML configuration file")
	fmt.Println("  -env FILE            .env file (default .env, ignored when missing)")
	fmt.Println("  -source KIND         camera, files, watch or synthetic")
	fmt.Println("  -path DIR            directory for the files and watch sources")
	fmt.Println("  -display KIND        none, dir, websocket or window")
	fmt.Println("  -frames N            stop after N frames (0 runs until interrupted)")
	fmt.Println("  -accelerator DEVICE  run on an accelerator backend (cuda or pool)")
	fmt.Println("  -report FORMAT       exit report format, text or json")
	fmt.Println()
	fmt.Println("Environment variables:")
	fmt.Println("  BALLOON_LOG_LEVEL=debug    Log level (debug, info, warn, error)")
	fmt.Println("  BALLOON_*                  Any configuration key, e.g. BALLOON_SOURCE=camera")
	fmt.Println()
	fmt.Println("Press q in the window sink, send a message on the websocket sink or hit")
	fmt.Println("Ctrl-C to stop and print the statistics.")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl == slog.LevelDebug,
	}))
}

// loadConfig layers the command-line flags over config.Load and validates the result.
func loadConfig(args []string) (*config.Config, error) {
	fs := flag.NewFlagSet("balloon-vision", flag.ContinueOnError)
	configPath := fs.String("config", "", "YAML configuration file")
	envFile := fs.String("env", ".env", ".env file")
	sourceKind := fs.String("source", "", "frame source")
	sourcePath := fs.String("path", "", "source directory")
	displayKind := fs.String("display", "", "display sink")
	frames := fs.Int("frames", 0, "frame limit")
	accelerator := fs.String("accelerator", "", "accelerator device")
	reportFormat := fs.String("report", "", "report format")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg, err := config.Load(*configPath, *envFile)
	if err != nil {
		return nil, err
	}

	// Flags override every other layer, but only when given
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "source":
			cfg.Source.Kind = *sourceKind
		case "path":
			cfg.Source.Path = *sourcePath
		case "display":
			cfg.Display.Kind = *displayKind
		case "frames":
			cfg.MaxFrames = *frames
		case "accelerator":
			cfg.UseAcceleratorBackend = true
			cfg.AcceleratorDevice = *accelerator
		case "report":
			cfg.ReportFormat = *reportFormat
		}
	})
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(logger *slog.Logger, args []string) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}

	b, err := backend.Open(cfg.BackendName())
	if err != nil {
		return err
	}
	defer b.Close()

	info := backend.Describe(b)
	logger.Info("balloon-vision: initializing",
		"version", Version,
		"backend", info.Name,
		"accelerated", info.Accelerated,
		"devices", info.Devices,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	src, err := source.Open(source.Options{
		Kind:   cfg.Source.Kind,
		Device: cfg.Source.Device,
		Path:   cfg.Source.Path,
		Loop:   cfg.Source.Loop,
		Size:   cfg.Resolution(),
		Logger: logger,
	})
	if err != nil {
		return err
	}
	defer src.Close()

	// Unblock a source waiting for frames when the run is canceled
	go func() {
		<-ctx.Done()
		src.Close()
	}()

	sink, err := display.Open(display.Options{
		Kind:   cfg.Display.Kind,
		Dir:    cfg.Display.Dir,
		Listen: cfg.Display.Listen,
		Every:  cfg.Display.Every,
		Logger: logger,
	})
	if err != nil {
		return err
	}
	defer sink.Close()

	p, err := pipeline.New(pipeline.Options{
		Backend:              b,
		Source:               src,
		Sink:                 sink,
		Logger:               logger,
		TargetHue:            uint8(cfg.TargetHue),
		Cutoff:               uint8(cfg.ScoreThreshold),
		CircularityRatio:     cfg.CircularityRatio,
		MaxFrames:            cfg.MaxFrames,
		InterruptPoll:        cfg.InterruptPoll(),
		ShowRawFeed:          cfg.ShowRawFeed,
		ShowDiagnosticPlanes: cfg.ShowDiagnosticPlanes,
		ShowAnnotatedOverlay: cfg.ShowAnnotatedOverlay,
		DrawDebugContours:    cfg.DrawDebugContours,
		LogPerFrameTiming:    cfg.LogPerFrameTiming,
	})
	if err != nil {
		return err
	}

	logger.Info("balloon-vision: starting balloon recognition",
		"source", cfg.Source.Kind,
		"resolution", src.Size(),
		"display", cfg.Display.Kind,
	)

	runErr := p.Run(ctx)

	report := p.Report()
	if err := report.Write(os.Stdout, cfg.ReportFormat); err != nil {
		logger.Error("balloon-vision: failed to write report", "error", err)
	}
	logger.Info("balloon-vision: terminating", "reason", report.StopReason)
	return runErr
}
