// Package docgen invokes the toolchain's documentation command against a
// checkout and enforces the output-directory contract consumed by the
// publish stage.
package docgen

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/docpages/internal/config"
	"git.home.luguber.info/inful/docpages/internal/errors"
	"git.home.luguber.info/inful/docpages/internal/logfields"
)

// Runner executes the documentation command. Abstracted for tests.
type Runner interface {
	Run(ctx context.Context, dir, name string, args ...string) ([]byte, error)
}

// ExecRunner runs the doc command via os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	if err := cmd.Run(); err != nil {
		return buf.Bytes(), fmt.Errorf("%s failed: %w", name, err)
	}
	return buf.Bytes(), nil
}

// Generator produces the static documentation output directory.
type Generator struct {
	cfg    config.DocGenConfig
	runner Runner
}

// NewGenerator creates a generator for the given docgen configuration.
func NewGenerator(cfg config.DocGenConfig) *Generator {
	return &Generator{cfg: cfg, runner: ExecRunner{}}
}

// WithRunner injects an alternate command runner (tests).
func (g *Generator) WithRunner(r Runner) *Generator {
	if r != nil {
		g.runner = r
	}
	return g
}

// Generate runs the documentation command inside checkoutDir and returns the
// absolute path of the produced output directory. The command's own failure
// (compile errors, doc errors) aborts the run before anything is published.
func (g *Generator) Generate(ctx context.Context, checkoutDir string) (string, error) {
	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}

	slog.Info("Generating documentation",
		slog.String("command", g.cfg.Command),
		slog.String("args", strings.Join(g.cfg.Args, " ")),
		logfields.Path(checkoutDir))

	out, err := g.runner.Run(ctx, checkoutDir, g.cfg.Command, g.cfg.Args...)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryDocGen, errors.SeverityFatal, "documentation generation failed").
			WithContext("command", g.cfg.Command).
			WithContext("output", tailLines(out))
	}

	outputDir := filepath.Join(checkoutDir, g.cfg.OutputDir)
	if err := validateOutputDir(outputDir); err != nil {
		return "", err
	}

	if g.cfg.ReadmeIndex {
		if err := EnsureReadmeIndex(checkoutDir, outputDir); err != nil {
			// A missing index page degrades the landing experience but the
			// generated docs are still intact.
			slog.Warn("Failed to render README index", logfields.Error(err))
		}
	}

	slog.Info("Documentation generated", logfields.Path(outputDir))
	return outputDir, nil
}

// validateOutputDir enforces the path contract between generate and publish:
// the output directory must exist and contain at least one file.
func validateOutputDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return errors.New(errors.CategoryDocGen, errors.SeverityFatal, "doc command produced no output directory").
			WithContext("output_dir", dir)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return errors.Wrap(err, errors.CategoryDocGen, errors.SeverityFatal, "failed to read output directory").
			WithContext("output_dir", dir)
	}
	if len(entries) == 0 {
		return errors.New(errors.CategoryDocGen, errors.SeverityFatal, "output directory is empty").
			WithContext("output_dir", dir)
	}
	return nil
}

func tailLines(out []byte) string {
	const maxLines = 20
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	if len(lines) > maxLines {
		lines = lines[len(lines)-maxLines:]
	}
	return strings.Join(lines, "\n")
}
