package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/docpages/internal/config"
	"git.home.luguber.info/inful/docpages/internal/daemon"
	"git.home.luguber.info/inful/docpages/internal/logfields"
	"git.home.luguber.info/inful/docpages/internal/pipeline"
)

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"docpages.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Run struct {
		Commit string `help:"Document a specific commit instead of the branch head"`
	} `cmd:"" help:"Run one documentation build and publish cycle"`

	Init struct {
		Force bool `help:"Overwrite existing configuration file"`
	} `cmd:"" help:"Initialize a new configuration file"`

	Daemon struct{} `cmd:"" help:"Start daemon mode: webhook endpoint, scheduler and run queue"`
}

func main() {
	ctx := kong.Parse(&CLI)

	logLevel := slog.LevelInfo
	if CLI.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	switch ctx.Command() {
	case "run":
		cfg, err := config.Load(CLI.Config)
		if err != nil {
			slog.Error("Failed to load configuration", logfields.Error(err))
			os.Exit(1)
		}
		if err := runOnce(cfg, CLI.Run.Commit); err != nil {
			os.Exit(1)
		}
	case "init":
		if err := config.Init(CLI.Config, CLI.Init.Force); err != nil {
			slog.Error("Init failed", logfields.Error(err))
			os.Exit(1)
		}
		fmt.Printf("Configuration file created: %s\n", CLI.Config)
	case "daemon":
		cfg, err := config.Load(CLI.Config)
		if err != nil {
			slog.Error("Failed to load configuration", logfields.Error(err))
			os.Exit(1)
		}
		if err := runDaemon(cfg, CLI.Config); err != nil {
			slog.Error("Daemon failed", logfields.Error(err))
			os.Exit(1)
		}
	default:
		slog.Error("Unknown command", slog.String("command", ctx.Command()))
		os.Exit(1)
	}
}

// runOnce executes a single pipeline run. Failures are already logged with
// stage context by the pipeline itself.
func runOnce(cfg *config.Config, commit string) error {
	runCtx, cancel := signalContext()
	defer cancel()

	res, err := pipeline.New(cfg).Run(runCtx, commit)
	if err != nil {
		return err
	}
	if res.Publish != nil && res.Publish.UpToDate {
		fmt.Println("Documentation already up to date, nothing published")
	} else if res.Publish != nil {
		fmt.Printf("Published %d files to %s (%s)\n", res.Publish.Files, cfg.Publish.Branch, res.Publish.Commit)
	}
	return nil
}

func runDaemon(cfg *config.Config, configPath string) error {
	runCtx, cancel := signalContext()
	defer cancel()

	d, err := daemon.New(cfg, configPath)
	if err != nil {
		return err
	}
	return d.Run(runCtx)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
