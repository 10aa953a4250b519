package publish

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	gitcfg "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appcfg "git.home.luguber.info/inful/docpages/internal/config"
	apperrors "git.home.luguber.info/inful/docpages/internal/errors"
)

// newBareRemote creates an empty bare repository acting as the forge remote.
func newBareRemote(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	_, err := git.PlainInit(dir, true)
	require.NoError(t, err)
	return dir
}

// writeOutput materializes a fake generated docs directory.
func writeOutput(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for rel, content := range files {
		p := filepath.Join(dir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return dir
}

func pagesConfig(remote string, keepFiles bool) appcfg.PublishConfig {
	return appcfg.PublishConfig{
		Branch:      "gh-pages",
		Remote:      remote,
		KeepFiles:   keepFiles,
		TokenEnv:    appcfg.DefaultPublishTokenEnv,
		AuthorName:  "docpages",
		AuthorEmail: "docpages@localhost",
	}
}

// publishedFiles reads the file set of the pages branch head in the remote.
func publishedFiles(t *testing.T, remote string) []string {
	t.Helper()
	repo, err := git.PlainOpen(remote)
	require.NoError(t, err)
	ref, err := repo.Reference(plumbing.NewBranchReferenceName("gh-pages"), true)
	require.NoError(t, err)
	commit, err := repo.CommitObject(ref.Hash())
	require.NoError(t, err)
	tree, err := commit.Tree()
	require.NoError(t, err)

	var files []string
	err = tree.Files().ForEach(func(f *object.File) error {
		files = append(files, f.Name)
		return nil
	})
	require.NoError(t, err)
	sort.Strings(files)
	return files
}

func publishOnce(t *testing.T, remote string, keepFiles bool, files map[string]string) *Result {
	t.Helper()
	out := writeOutput(t, files)
	pub := NewPublisher(pagesConfig(remote, keepFiles), t.TempDir())
	res, err := pub.Publish(context.Background(), out, "6dcb09b5b57875f334f61aebed695e2e4193db5e")
	require.NoError(t, err)
	return res
}

func TestPublishToEmptyRemote(t *testing.T) {
	remote := newBareRemote(t)

	res := publishOnce(t, remote, false, map[string]string{
		"index.html":      "<html>root</html>",
		"pool/index.html": "<html>pool</html>",
	})

	assert.NotEmpty(t, res.Commit)
	assert.Equal(t, 2, res.Files)
	assert.False(t, res.UpToDate)
	assert.Equal(t, []string{"index.html", "pool/index.html"}, publishedFiles(t, remote))
}

func TestPublishMirrorSemantics(t *testing.T) {
	remote := newBareRemote(t)

	publishOnce(t, remote, false, map[string]string{"a.html": "a", "b.html": "b"})
	res := publishOnce(t, remote, false, map[string]string{"a.html": "a", "c.html": "c"})

	assert.Equal(t, 1, res.Deleted)
	assert.Equal(t, []string{"a.html", "c.html"}, publishedFiles(t, remote))
}

func TestPublishMergeSemantics(t *testing.T) {
	remote := newBareRemote(t)

	publishOnce(t, remote, false, map[string]string{"a.html": "a", "b.html": "b"})
	res := publishOnce(t, remote, true, map[string]string{"a.html": "a", "c.html": "c"})

	assert.Equal(t, 0, res.Deleted)
	assert.True(t, res.KeepFiles)
	assert.Equal(t, []string{"a.html", "b.html", "c.html"}, publishedFiles(t, remote))
}

// seedDefaultBranch pushes a main branch with source files to the bare remote,
// simulating a repository that has never published documentation.
func seedDefaultBranch(t *testing.T, remote string, files map[string]string) {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInitWithOptions(dir, &git.PlainInitOptions{
		InitOptions: git.InitOptions{DefaultBranch: "refs/heads/main"},
	})
	require.NoError(t, err)

	wt, err := repo.Worktree()
	require.NoError(t, err)
	for rel, content := range files {
		p := filepath.Join(dir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
		_, err = wt.Add(rel)
		require.NoError(t, err)
	}
	_, err = wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "tester", Email: "tester@example.test", When: time.Now()},
	})
	require.NoError(t, err)

	_, err = repo.CreateRemote(&gitcfg.RemoteConfig{Name: "origin", URLs: []string{remote}})
	require.NoError(t, err)
	require.NoError(t, repo.Push(&git.PushOptions{
		RemoteName: "origin",
		RefSpecs:   []gitcfg.RefSpec{"refs/heads/main:refs/heads/main"},
	}))

	// A fresh bare repository points HEAD at master; aim it at the pushed branch
	// so clones of the default branch resolve.
	bare, err := git.PlainOpen(remote)
	require.NoError(t, err)
	require.NoError(t, bare.Storer.SetReference(
		plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName("main"))))
}

func TestFirstPublishMergeModeExcludesSourceTree(t *testing.T) {
	remote := newBareRemote(t)
	seedDefaultBranch(t, remote, map[string]string{
		"src/lib.rs": "pub struct Pool;",
		"Cargo.toml": "[package]\nname = \"pool\"\n",
	})

	res := publishOnce(t, remote, true, map[string]string{"index.html": "<html>docs</html>"})

	assert.Equal(t, 1, res.Files)
	assert.Equal(t, []string{"index.html"}, publishedFiles(t, remote))
}

func TestFirstPublishMirrorModeExcludesSourceTree(t *testing.T) {
	remote := newBareRemote(t)
	seedDefaultBranch(t, remote, map[string]string{"src/lib.rs": "pub struct Pool;"})

	res := publishOnce(t, remote, false, map[string]string{"index.html": "<html>docs</html>"})

	// Inherited source files are not previously published content.
	assert.Equal(t, 0, res.Deleted)
	assert.Equal(t, []string{"index.html"}, publishedFiles(t, remote))
}

func TestPublishUnchangedOutputSkipsCommit(t *testing.T) {
	remote := newBareRemote(t)
	files := map[string]string{"index.html": "same"}

	first := publishOnce(t, remote, false, files)
	second := publishOnce(t, remote, false, files)

	assert.False(t, first.UpToDate)
	assert.True(t, second.UpToDate)
	assert.Empty(t, second.Commit)

	// Exactly one commit on the pages branch.
	repo, err := git.PlainOpen(remote)
	require.NoError(t, err)
	ref, err := repo.Reference(plumbing.NewBranchReferenceName("gh-pages"), true)
	require.NoError(t, err)
	commit, err := repo.CommitObject(ref.Hash())
	require.NoError(t, err)
	assert.Equal(t, 0, commit.NumParents())
}

func TestPublishOverwritesChangedContent(t *testing.T) {
	remote := newBareRemote(t)

	publishOnce(t, remote, false, map[string]string{"index.html": "v1"})
	publishOnce(t, remote, false, map[string]string{"index.html": "v2"})

	repo, err := git.PlainOpen(remote)
	require.NoError(t, err)
	ref, err := repo.Reference(plumbing.NewBranchReferenceName("gh-pages"), true)
	require.NoError(t, err)
	commit, err := repo.CommitObject(ref.Hash())
	require.NoError(t, err)
	f, err := commit.File("index.html")
	require.NoError(t, err)
	content, err := f.Contents()
	require.NoError(t, err)
	assert.Equal(t, "v2", content)
}

func TestPublishMissingCredentialFails(t *testing.T) {
	out := writeOutput(t, map[string]string{"index.html": "x"})
	cfg := pagesConfig("https://example.test/inful/pool.git", false)

	pub := NewPublisher(cfg, t.TempDir()) // no token
	_, err := pub.Publish(context.Background(), out, "")
	require.Error(t, err)
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryAuth))
}

func TestPublishCommitMessageReferencesSource(t *testing.T) {
	remote := newBareRemote(t)
	publishOnce(t, remote, false, map[string]string{"index.html": "x"})

	repo, err := git.PlainOpen(remote)
	require.NoError(t, err)
	ref, err := repo.Reference(plumbing.NewBranchReferenceName("gh-pages"), true)
	require.NoError(t, err)
	commit, err := repo.CommitObject(ref.Hash())
	require.NoError(t, err)
	assert.Contains(t, commit.Message, "6dcb09b5")
}
