package toolchain

import (
	"context"
	"log/slog"
	"strings"

	"git.home.luguber.info/inful/docpages/internal/config"
	"git.home.luguber.info/inful/docpages/internal/errors"
	"git.home.luguber.info/inful/docpages/internal/logfields"
)

// Installer drives the external toolchain installer (rustup-style interface:
// `<installer> toolchain install <version> --profile <profile>` plus an
// optional per-directory override).
type Installer struct {
	cfg    config.ToolchainConfig
	runner Runner
}

// NewInstaller creates an installer for the given toolchain configuration.
func NewInstaller(cfg config.ToolchainConfig) *Installer {
	return &Installer{cfg: cfg, runner: ExecRunner{}}
}

// WithRunner injects an alternate command runner (tests).
func (i *Installer) WithRunner(r Runner) *Installer {
	if r != nil {
		i.runner = r
	}
	return i
}

// Ensure installs the configured toolchain version and, when override is set,
// pins it as the active toolchain for the checkout directory. Installation is
// idempotent: the installer is expected to no-op when the version is present.
func (i *Installer) Ensure(ctx context.Context, checkoutDir string) error {
	args := []string{"toolchain", "install", i.cfg.Version, "--profile", string(i.cfg.Profile)}

	slog.Info("Ensuring toolchain",
		slog.String("installer", i.cfg.Installer),
		slog.String("version", i.cfg.Version),
		slog.String("profile", string(i.cfg.Profile)))

	if out, err := i.runner.Run(ctx, checkoutDir, i.cfg.Installer, args...); err != nil {
		return errors.Wrap(err, errors.CategoryToolchain, errors.SeverityFatal, "toolchain install failed").
			WithContext("version", i.cfg.Version).
			WithContext("output", tail(out))
	}

	if i.cfg.Override {
		if out, err := i.runner.Run(ctx, checkoutDir, i.cfg.Installer, "override", "set", i.cfg.Version); err != nil {
			return errors.Wrap(err, errors.CategoryToolchain, errors.SeverityFatal, "toolchain override failed").
				WithContext("version", i.cfg.Version).
				WithContext("output", tail(out))
		}
		slog.Debug("Toolchain override set", logfields.Path(checkoutDir), slog.String("version", i.cfg.Version))
	}

	return nil
}

// tail truncates command output to its last few lines for error context.
func tail(out []byte) string {
	const maxLines = 10
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	if len(lines) > maxLines {
		lines = lines[len(lines)-maxLines:]
	}
	return strings.Join(lines, "\n")
}
