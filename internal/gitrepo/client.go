package gitrepo

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	gitssh "github.com/go-git/go-git/v5/plumbing/transport/ssh"

	"git.home.luguber.info/inful/docpages/internal/config"
	"git.home.luguber.info/inful/docpages/internal/logfields"
	"git.home.luguber.info/inful/docpages/internal/retry"
)

// Client handles Git fetch operations into a workspace directory.
type Client struct {
	workspaceDir string
	shallowDepth int
	policy       retry.Policy
	inRetry      bool // internal guard to avoid nested retry wrapping
}

// NewClient creates a new Git client rooted at the specified workspace directory.
func NewClient(workspaceDir string) *Client {
	return &Client{workspaceDir: workspaceDir, policy: retry.Policy{}}
}

// WithShallowDepth limits clone depth (0 = full history).
func (c *Client) WithShallowDepth(depth int) *Client {
	if depth > 0 {
		c.shallowDepth = depth
	}
	return c
}

// WithRetryPolicy attaches a retry policy for transient failures.
func (c *Client) WithRetryPolicy(p retry.Policy) *Client { c.policy = p; return c }

// Checkout produces a local checkout of the repository at the given commit.
// An empty commit means the head of the configured branch. The previous
// checkout directory, if any, is removed first so re-runs for the same commit
// are reproducible.
func (c *Client) Checkout(ctx context.Context, repo config.Repository, commit string) (string, error) {
	if c.inRetry {
		return c.checkoutOnce(ctx, repo, commit)
	}
	return c.withRetry("clone", repo.Name, func() (string, error) {
		return c.checkoutOnce(ctx, repo, commit)
	})
}

func (c *Client) checkoutOnce(ctx context.Context, repo config.Repository, commit string) (string, error) {
	repoPath := filepath.Join(c.workspaceDir, repo.Name)
	slog.Debug("Cloning repository",
		logfields.URL(repo.URL),
		logfields.Repository(repo.Name),
		logfields.Branch(repo.Branch),
		logfields.Commit(commit),
		logfields.Path(repoPath))

	if err := os.RemoveAll(repoPath); err != nil {
		return "", fmt.Errorf("failed to remove existing directory: %w", err)
	}

	cloneOptions := &git.CloneOptions{URL: repo.URL}
	if repo.Branch != "" {
		cloneOptions.ReferenceName = plumbing.ReferenceName("refs/heads/" + repo.Branch)
		cloneOptions.SingleBranch = true
	}
	// A pinned commit may predate a shallow horizon, so depth applies only to
	// branch-head checkouts.
	if c.shallowDepth > 0 && commit == "" {
		cloneOptions.Depth = c.shallowDepth
	}
	if repo.Auth != nil {
		auth, err := Authentication(repo.Auth)
		if err != nil {
			return "", fmt.Errorf("failed to setup authentication: %w", err)
		}
		cloneOptions.Auth = auth
	}

	repository, err := git.PlainCloneContext(ctx, repoPath, false, cloneOptions)
	if err != nil {
		return "", ClassifyGitError(err, "clone", repo.URL)
	}

	if commit != "" {
		worktree, err := repository.Worktree()
		if err != nil {
			return "", fmt.Errorf("failed to get worktree: %w", err)
		}
		if err := worktree.Checkout(&git.CheckoutOptions{Hash: plumbing.NewHash(commit)}); err != nil {
			return "", ClassifyGitError(err, "checkout", repo.URL)
		}
	}

	if ref, herr := repository.Head(); herr == nil {
		slog.Info("Repository checked out",
			logfields.Repository(repo.Name),
			logfields.URL(repo.URL),
			logfields.Commit(shortHash(ref.Hash().String())),
			logfields.Path(repoPath))
	} else {
		slog.Info("Repository checked out", logfields.Repository(repo.Name), logfields.URL(repo.URL), logfields.Path(repoPath))
	}

	return repoPath, nil
}

// HeadCommit returns the full hash of the checkout's HEAD.
func HeadCommit(repoPath string) (string, error) {
	repository, err := git.PlainOpen(repoPath)
	if err != nil {
		return "", fmt.Errorf("failed to open repository: %w", err)
	}
	ref, err := repository.Head()
	if err != nil {
		return "", fmt.Errorf("failed to resolve HEAD: %w", err)
	}
	return ref.Hash().String(), nil
}

func shortHash(h string) string {
	if len(h) > 8 {
		return h[:8]
	}
	return h
}

// Authentication creates a go-git transport auth method from config.
func Authentication(auth *config.AuthConfig) (transport.AuthMethod, error) {
	switch auth.Type {
	case config.AuthTypeNone, "":
		return nil, nil // No authentication needed for public repositories

	case config.AuthTypeSSH:
		keyPath := auth.KeyPath
		if keyPath == "" {
			keyPath = filepath.Join(os.Getenv("HOME"), ".ssh", "id_rsa")
		}
		publicKeys, err := gitssh.NewPublicKeysFromFile("git", keyPath, "")
		if err != nil {
			return nil, fmt.Errorf("failed to load SSH key from %s: %w", keyPath, err)
		}
		return publicKeys, nil

	case config.AuthTypeToken:
		if auth.Token == "" {
			return nil, fmt.Errorf("token authentication requires a token")
		}
		return &githttp.BasicAuth{
			Username: "token", // forges accept "token" as username for token auth
			Password: auth.Token,
		}, nil

	case config.AuthTypeBasic:
		if auth.Username == "" || auth.Password == "" {
			return nil, fmt.Errorf("basic authentication requires username and password")
		}
		return &githttp.BasicAuth{Username: auth.Username, Password: auth.Password}, nil

	default:
		return nil, fmt.Errorf("unsupported authentication type: %s", auth.Type)
	}
}
