// Package publish uploads a generated documentation directory to the
// repository's pages branch. A publish is a single git commit plus push, so a
// failed push leaves the previously published state fully intact; there is no
// partial publish.
package publish

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	gitcfg "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"

	"git.home.luguber.info/inful/docpages/internal/config"
	"git.home.luguber.info/inful/docpages/internal/errors"
	"git.home.luguber.info/inful/docpages/internal/gitrepo"
	"git.home.luguber.info/inful/docpages/internal/logfields"
	"git.home.luguber.info/inful/docpages/internal/retry"
)

// Result summarizes a publish operation.
type Result struct {
	Commit    string // hash of the publish commit (empty when skipped)
	Files     int    // files present in the published state
	Deleted   int    // previously published files removed (mirror mode)
	UpToDate  bool   // nothing changed, no commit was made
	KeepFiles bool   // merge semantics were in effect
}

// Publisher pushes an output directory to the configured pages branch.
type Publisher struct {
	cfg     config.PublishConfig
	workDir string // directory holding the pages checkout
	token   string
	policy  retry.Policy
}

// NewPublisher creates a publisher that stages the pages branch under workDir.
func NewPublisher(cfg config.PublishConfig, workDir string) *Publisher {
	return &Publisher{cfg: cfg, workDir: workDir}
}

// WithToken supplies the publish credential. Required for http(s) remotes.
func (p *Publisher) WithToken(token string) *Publisher { p.token = token; return p }

// WithRetryPolicy attaches a retry policy for the push (transient failures only).
func (p *Publisher) WithRetryPolicy(pol retry.Policy) *Publisher { p.policy = pol; return p }

// Publish makes outputDir the new published state of the pages branch.
// sourceCommit (may be empty) is referenced in the commit message for
// traceability back to the documented revision.
func (p *Publisher) Publish(ctx context.Context, outputDir, sourceCommit string) (*Result, error) {
	auth, err := p.authentication()
	if err != nil {
		return nil, err
	}

	repo, err := p.preparePagesCheckout(ctx, auth)
	if err != nil {
		return nil, err
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryPublish, errors.SeverityFatal, "failed to get pages worktree")
	}

	sync, err := syncOutput(wt.Filesystem.Root(), outputDir, p.cfg.KeepFiles)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryPublish, errors.SeverityFatal, "failed to stage output files")
	}

	if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return nil, errors.Wrap(err, errors.CategoryPublish, errors.SeverityFatal, "failed to stage changes")
	}

	status, err := wt.Status()
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryPublish, errors.SeverityFatal, "failed to read worktree status")
	}
	if status.IsClean() {
		slog.Info("Published state already current, skipping push", logfields.Commit(shortHash(sourceCommit)))
		return &Result{UpToDate: true, Files: sync.files, KeepFiles: p.cfg.KeepFiles}, nil
	}

	message := "Publish documentation"
	if sourceCommit != "" {
		message = fmt.Sprintf("Publish documentation for %s", shortHash(sourceCommit))
	}
	commit, err := wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{Name: p.cfg.AuthorName, Email: p.cfg.AuthorEmail, When: time.Now()},
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryPublish, errors.SeverityFatal, "failed to commit published state")
	}

	if err := p.push(ctx, repo, auth); err != nil {
		return nil, err
	}

	slog.Info("Documentation published",
		logfields.Branch(p.cfg.Branch),
		logfields.Commit(shortHash(commit.String())),
		slog.Int("files", sync.files),
		slog.Int("deleted", sync.deleted),
		slog.Bool("keep_files", p.cfg.KeepFiles))

	return &Result{
		Commit:    commit.String(),
		Files:     sync.files,
		Deleted:   sync.deleted,
		KeepFiles: p.cfg.KeepFiles,
	}, nil
}

// authentication builds the transport auth for the pages remote. Missing
// credentials on http(s) remotes fail here, before any network work.
func (p *Publisher) authentication() (transport.AuthMethod, error) {
	if !strings.HasPrefix(p.cfg.Remote, "http://") && !strings.HasPrefix(p.cfg.Remote, "https://") {
		// Local and ssh-agent remotes carry their own credentials.
		return nil, nil
	}
	if p.token == "" {
		return nil, errors.New(errors.CategoryAuth, errors.SeverityFatal, "publish credential missing").
			WithContext("token_env", p.cfg.TokenEnv)
	}
	return gitrepo.Authentication(&config.AuthConfig{Type: config.AuthTypeToken, Token: p.token})
}

// preparePagesCheckout materializes a worktree tracking the pages branch under
// workDir, handling the three remote states: branch exists, branch missing,
// repository empty.
func (p *Publisher) preparePagesCheckout(ctx context.Context, auth transport.AuthMethod) (*git.Repository, error) {
	branchRef := plumbing.NewBranchReferenceName(p.cfg.Branch)

	repo, err := git.PlainCloneContext(ctx, p.workDir, false, &git.CloneOptions{
		URL:           p.cfg.Remote,
		ReferenceName: branchRef,
		SingleBranch:  true,
		Auth:          auth,
	})
	if err == nil {
		return repo, nil
	}

	switch {
	case isEmptyRemote(err):
		return p.initPagesRepo(branchRef)
	case isMissingBranch(err):
		return p.cloneAndCreateBranch(ctx, branchRef, auth)
	default:
		return nil, gitrepo.ClassifyGitError(err, "clone", p.cfg.Remote)
	}
}

// cloneAndCreateBranch clones the remote's default branch and starts the pages
// branch from it. The inherited worktree is wiped before the first publish
// commit regardless of keep_files: there is no previously published state yet,
// and the keep/mirror distinction only applies to prior published content. The
// published tree must never leak source files.
func (p *Publisher) cloneAndCreateBranch(ctx context.Context, branchRef plumbing.ReferenceName, auth transport.AuthMethod) (*git.Repository, error) {
	repo, err := git.PlainCloneContext(ctx, p.workDir, false, &git.CloneOptions{URL: p.cfg.Remote, Auth: auth})
	if err != nil {
		return nil, gitrepo.ClassifyGitError(err, "clone", p.cfg.Remote)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryPublish, errors.SeverityFatal, "failed to get worktree")
	}
	if err := wt.Checkout(&git.CheckoutOptions{Branch: branchRef, Create: true}); err != nil {
		return nil, errors.Wrap(err, errors.CategoryPublish, errors.SeverityFatal, "failed to create pages branch").
			WithContext("branch", p.cfg.Branch)
	}
	if err := clearDir(wt.Filesystem.Root()); err != nil {
		return nil, errors.Wrap(err, errors.CategoryPublish, errors.SeverityFatal, "failed to clear inherited worktree")
	}
	slog.Info("Created pages branch", logfields.Branch(p.cfg.Branch))
	return repo, nil
}

// initPagesRepo handles a completely empty remote: initialize a fresh
// repository whose first commit will create the pages branch.
func (p *Publisher) initPagesRepo(branchRef plumbing.ReferenceName) (*git.Repository, error) {
	repo, err := git.PlainInit(p.workDir, false)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryPublish, errors.SeverityFatal, "failed to init pages repository")
	}
	if _, err := repo.CreateRemote(&gitcfg.RemoteConfig{Name: "origin", URLs: []string{p.cfg.Remote}}); err != nil {
		return nil, errors.Wrap(err, errors.CategoryPublish, errors.SeverityFatal, "failed to configure pages remote")
	}
	if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, branchRef)); err != nil {
		return nil, errors.Wrap(err, errors.CategoryPublish, errors.SeverityFatal, "failed to point HEAD at pages branch")
	}
	slog.Info("Initialized pages repository for empty remote", logfields.Branch(p.cfg.Branch))
	return repo, nil
}

// push updates the remote pages branch, retrying transient failures.
func (p *Publisher) push(ctx context.Context, repo *git.Repository, auth transport.AuthMethod) error {
	refspec := gitcfg.RefSpec(fmt.Sprintf("refs/heads/%s:refs/heads/%s", p.cfg.Branch, p.cfg.Branch))

	attemptPush := func() error {
		err := repo.PushContext(ctx, &git.PushOptions{
			RemoteName: "origin",
			RefSpecs:   []gitcfg.RefSpec{refspec},
			Auth:       auth,
		})
		if err == nil || err == git.NoErrAlreadyUpToDate {
			return nil
		}
		return gitrepo.ClassifyGitError(err, "push", p.cfg.Remote)
	}

	var lastErr error
	for attempt := 0; attempt <= p.policy.MaxRetries; attempt++ {
		if attempt > 0 {
			slog.Warn("Retrying publish push", logfields.Attempt(attempt), logfields.Error(lastErr))
			time.Sleep(p.policy.Delay(attempt))
		}
		lastErr = attemptPush()
		if lastErr == nil {
			return nil
		}
		if !errors.IsRetryable(lastErr) {
			return lastErr
		}
	}
	return fmt.Errorf("push failed after retries: %w", lastErr)
}

func isEmptyRemote(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "remote repository is empty")
}

func isMissingBranch(err error) bool {
	if err == nil {
		return false
	}
	l := strings.ToLower(err.Error())
	return strings.Contains(l, "couldn't find remote ref") || strings.Contains(l, "reference not found")
}

func shortHash(h string) string {
	if len(h) > 8 {
		return h[:8]
	}
	return h
}
