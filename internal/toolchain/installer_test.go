package toolchain

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appcfg "git.home.luguber.info/inful/docpages/internal/config"
	apperrors "git.home.luguber.info/inful/docpages/internal/errors"
)

type fakeRunner struct {
	calls [][]string
	fail  map[string]error // keyed by first subcommand word
}

func (f *fakeRunner) Run(_ context.Context, dir, name string, args ...string) ([]byte, error) {
	call := append([]string{dir, name}, args...)
	f.calls = append(f.calls, call)
	if err, ok := f.fail[args[0]]; ok && err != nil {
		return []byte("error: some installer noise\ndetails"), err
	}
	return []byte("ok"), nil
}

func TestEnsureInstallsAndOverrides(t *testing.T) {
	fr := &fakeRunner{}
	inst := NewInstaller(appcfg.ToolchainConfig{
		Installer: "rustup", Version: "1.84.0", Profile: appcfg.ProfileMinimal, Override: true,
	}).WithRunner(fr)

	require.NoError(t, inst.Ensure(context.Background(), "/ws/pool"))
	require.Len(t, fr.calls, 2)

	install := strings.Join(fr.calls[0], " ")
	assert.Equal(t, "/ws/pool rustup toolchain install 1.84.0 --profile minimal", install)

	override := strings.Join(fr.calls[1], " ")
	assert.Equal(t, "/ws/pool rustup override set 1.84.0", override)
}

func TestEnsureSkipsOverrideWhenDisabled(t *testing.T) {
	fr := &fakeRunner{}
	inst := NewInstaller(appcfg.ToolchainConfig{
		Installer: "rustup", Version: "stable", Profile: appcfg.ProfileFull,
	}).WithRunner(fr)

	require.NoError(t, inst.Ensure(context.Background(), "/ws/pool"))
	require.Len(t, fr.calls, 1)
	assert.Contains(t, strings.Join(fr.calls[0], " "), "--profile full")
}

func TestEnsureInstallFailureClassified(t *testing.T) {
	fr := &fakeRunner{fail: map[string]error{"toolchain": errors.New("exit status 1")}}
	inst := NewInstaller(appcfg.ToolchainConfig{
		Installer: "rustup", Version: "stable", Profile: appcfg.ProfileMinimal, Override: true,
	}).WithRunner(fr)

	err := inst.Ensure(context.Background(), "/ws/pool")
	require.Error(t, err)
	pe, ok := apperrors.AsPipelineError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CategoryToolchain, pe.Category)
	assert.Contains(t, pe.Context["output"], "installer noise")
	// Failed install must not attempt the override.
	assert.Len(t, fr.calls, 1)
}

func TestEnsureOverrideFailureClassified(t *testing.T) {
	fr := &fakeRunner{fail: map[string]error{"override": errors.New("exit status 1")}}
	inst := NewInstaller(appcfg.ToolchainConfig{
		Installer: "rustup", Version: "stable", Profile: appcfg.ProfileMinimal, Override: true,
	}).WithRunner(fr)

	err := inst.Ensure(context.Background(), "/ws/pool")
	require.Error(t, err)
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryToolchain))
}

func TestTailTruncatesLongOutput(t *testing.T) {
	long := strings.Repeat("line\n", 50) + "last"
	got := tail([]byte(long))
	assert.LessOrEqual(t, len(strings.Split(got, "\n")), 10)
	assert.True(t, strings.HasSuffix(got, "last"))
}
