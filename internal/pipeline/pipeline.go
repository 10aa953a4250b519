// Package pipeline orchestrates the four-stage documentation run: fetch the
// source at a commit, ensure the toolchain, generate the documentation
// output, and publish it to the pages branch. Each run works in its own
// workspace and records per-stage timings.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/docpages/internal/config"
	"git.home.luguber.info/inful/docpages/internal/docgen"
	"git.home.luguber.info/inful/docpages/internal/gitrepo"
	"git.home.luguber.info/inful/docpages/internal/logfields"
	"git.home.luguber.info/inful/docpages/internal/metrics"
	"git.home.luguber.info/inful/docpages/internal/publish"
	"git.home.luguber.info/inful/docpages/internal/retry"
	"git.home.luguber.info/inful/docpages/internal/toolchain"
	"git.home.luguber.info/inful/docpages/internal/workspace"
)

// Fetcher checks out the source repository at a commit (empty = branch head).
type Fetcher interface {
	Checkout(ctx context.Context, repo config.Repository, commit string) (string, error)
}

// Toolchain prepares the documentation toolchain for a checkout.
type Toolchain interface {
	Ensure(ctx context.Context, checkoutDir string) error
}

// Generator produces the documentation output directory from a checkout.
type Generator interface {
	Generate(ctx context.Context, checkoutDir string) (string, error)
}

// Publisher pushes an output directory to the pages branch.
type Publisher interface {
	Publish(ctx context.Context, outputDir, sourceCommit string) (*publish.Result, error)
}

// Result summarizes a completed run.
type Result struct {
	RunID     string
	Repo      string
	Commit    string // source commit that was documented (when resolvable)
	Outcome   Outcome
	Stages    []StageExecution
	Publish   *publish.Result // nil unless the publish stage ran
	StartedAt time.Time
	Duration  time.Duration
}

// FailedStage returns the name of the stage that failed, or "" on success.
func (r *Result) FailedStage() StageName {
	for _, s := range r.Stages {
		if s.Err != nil {
			return s.Name
		}
	}
	return ""
}

// Err returns the error of the failed stage, if any.
func (r *Result) Err() error {
	for _, s := range r.Stages {
		if s.Err != nil {
			return s.Err
		}
	}
	return nil
}

// Pipeline runs documentation builds for one configured repository.
type Pipeline struct {
	cfg      *config.Config
	recorder metrics.Recorder

	// Stage factories, replaceable in tests. Fetch and publish need per-run
	// workspace directories so they take the directory as an argument.
	newFetcher   func(workspaceDir string) Fetcher
	toolchain    Toolchain
	generator    Generator
	newPublisher func(pagesDir string) Publisher
}

// New creates a pipeline wired with the real stage implementations.
func New(cfg *config.Config) *Pipeline {
	policy := retry.FromConfig(cfg.Build.Retry)
	p := &Pipeline{
		cfg:       cfg,
		recorder:  metrics.NoopRecorder{},
		toolchain: toolchain.NewInstaller(cfg.Toolchain),
		generator: docgen.NewGenerator(cfg.DocGen),
	}
	p.newFetcher = func(workspaceDir string) Fetcher {
		return gitrepo.NewClient(workspaceDir).
			WithShallowDepth(cfg.Build.ShallowDepth).
			WithRetryPolicy(policy)
	}
	p.newPublisher = func(pagesDir string) Publisher {
		return publish.NewPublisher(cfg.Publish, pagesDir).
			WithToken(cfg.PublishToken()).
			WithRetryPolicy(policy)
	}
	return p
}

// WithRecorder attaches a metrics recorder.
func (p *Pipeline) WithRecorder(r metrics.Recorder) *Pipeline {
	if r != nil {
		p.recorder = r
	}
	return p
}

// WithStages overrides stage implementations (tests). Nil arguments keep the
// current implementation.
func (p *Pipeline) WithStages(f func(string) Fetcher, t Toolchain, g Generator, pub func(string) Publisher) *Pipeline {
	if f != nil {
		p.newFetcher = f
	}
	if t != nil {
		p.toolchain = t
	}
	if g != nil {
		p.generator = g
	}
	if pub != nil {
		p.newPublisher = pub
	}
	return p
}

// Run executes a full documentation run for the given source commit. An empty
// commit documents the head of the configured branch. The returned Result
// always carries per-stage records; the error mirrors Result.Err for callers
// that only care about overall failure.
func (p *Pipeline) Run(ctx context.Context, commit string) (*Result, error) {
	res := &Result{
		RunID:     uuid.NewString(),
		Repo:      p.cfg.Repository.Name,
		Commit:    commit,
		StartedAt: time.Now(),
	}
	log := slog.With(logfields.RunID(res.RunID), logfields.Repository(res.Repo))
	log.Info("Starting documentation run", logfields.Commit(commit), logfields.Branch(p.cfg.Repository.Branch))

	ws := p.newWorkspace()
	if err := ws.Create(); err != nil {
		// Without a workspace the fetch stage cannot start, so the run fails there.
		res.Stages = append(res.Stages, StageExecution{Name: StageFetch, StartedAt: time.Now(), Err: err})
		p.finish(res, log)
		return res, err
	}
	defer func() {
		if err := ws.Cleanup(); err != nil {
			log.Warn("Workspace cleanup failed", logfields.Error(err))
		}
	}()

	var checkoutDir, outputDir string

	p.runStage(ctx, res, StageFetch, func(ctx context.Context) error {
		fetcher := p.newFetcher(ws.GetPath())
		dir, err := fetcher.Checkout(ctx, p.cfg.Repository, commit)
		if err != nil {
			return err
		}
		checkoutDir = dir
		if res.Commit == "" {
			if head, herr := gitrepo.HeadCommit(dir); herr == nil {
				res.Commit = head
			}
		}
		return nil
	})

	p.runStage(ctx, res, StageToolchain, func(ctx context.Context) error {
		return p.toolchain.Ensure(ctx, checkoutDir)
	})

	p.runStage(ctx, res, StageGenerate, func(ctx context.Context) error {
		dir, err := p.generator.Generate(ctx, checkoutDir)
		if err != nil {
			return err
		}
		outputDir = dir
		return nil
	})

	p.runStage(ctx, res, StagePublish, func(ctx context.Context) error {
		pagesDir, err := ws.ResetSubdir("pages")
		if err != nil {
			return err
		}
		pr, perr := p.newPublisher(pagesDir).Publish(ctx, outputDir, res.Commit)
		p.recorder.IncPublishResult(p.cfg.Publish.KeepFiles, perr == nil)
		if perr != nil {
			return perr
		}
		res.Publish = pr
		return nil
	})

	p.finish(res, log)
	return res, res.Err()
}

// newWorkspace builds the per-run workspace: timestamped and removed after the
// run by default, or a fixed directory kept between runs when the build is
// configured with a persistent workspace.
func (p *Pipeline) newWorkspace() *workspace.Manager {
	if p.cfg.Build.WorkspacePersistent {
		return workspace.NewPersistentManager(p.cfg.Build.Workspace, p.cfg.Repository.Name)
	}
	return workspace.NewManager(p.cfg.Build.Workspace)
}

// runStage executes one stage unless an earlier stage already failed, in which
// case the stage is recorded as skipped.
func (p *Pipeline) runStage(ctx context.Context, res *Result, name StageName, fn func(context.Context) error) {
	if res.Err() != nil {
		res.Stages = append(res.Stages, StageExecution{Name: name, Skipped: true})
		p.recorder.IncStageResult(string(name), metrics.ResultSkipped)
		return
	}

	exec := StageExecution{Name: name, StartedAt: time.Now()}
	slog.Debug("Stage starting", logfields.RunID(res.RunID), logfields.Stage(string(name)))

	exec.Err = fn(ctx)
	exec.Duration = time.Since(exec.StartedAt)

	p.recorder.ObserveStageDuration(string(name), exec.Duration)
	if exec.Err != nil {
		p.recorder.IncStageResult(string(name), metrics.ResultFailed)
		slog.Error("Stage failed",
			logfields.RunID(res.RunID),
			logfields.Stage(string(name)),
			logfields.DurationMS(exec.Duration),
			logfields.Error(exec.Err))
	} else {
		p.recorder.IncStageResult(string(name), metrics.ResultSuccess)
		slog.Debug("Stage completed",
			logfields.RunID(res.RunID),
			logfields.Stage(string(name)),
			logfields.DurationMS(exec.Duration))
	}
	res.Stages = append(res.Stages, exec)
}

func (p *Pipeline) finish(res *Result, log *slog.Logger) {
	res.Duration = time.Since(res.StartedAt)
	if res.Err() != nil {
		res.Outcome = OutcomeFailed
	} else {
		res.Outcome = OutcomeSuccess
	}
	p.recorder.ObserveRunDuration(res.Duration)
	p.recorder.IncRunOutcome(string(res.Outcome))

	if res.Outcome == OutcomeSuccess {
		log.Info("Documentation run completed",
			logfields.Commit(res.Commit),
			logfields.DurationMS(res.Duration),
			logfields.Outcome(string(res.Outcome)))
	} else {
		log.Error("Documentation run failed",
			logfields.Stage(string(res.FailedStage())),
			logfields.DurationMS(res.Duration),
			logfields.Error(res.Err()))
	}
}
