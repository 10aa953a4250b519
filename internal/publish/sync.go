package publish

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// syncStats reports what a sync changed in the pages worktree.
type syncStats struct {
	files   int // files in the new published state
	deleted int // previously published files removed (mirror mode only)
}

// syncOutput makes pagesDir reflect outputDir. With keepFiles false the result
// mirrors outputDir exactly (stale files removed); with keepFiles true files
// absent from outputDir are preserved. The .git directory is never touched.
func syncOutput(pagesDir, outputDir string, keepFiles bool) (*syncStats, error) {
	stats := &syncStats{}

	if !keepFiles {
		previous, err := listFiles(pagesDir)
		if err != nil {
			return nil, err
		}
		next, err := listFiles(outputDir)
		if err != nil {
			return nil, err
		}
		for rel := range previous {
			if _, ok := next[rel]; !ok {
				stats.deleted++
			}
		}
		if err := clearDir(pagesDir); err != nil {
			return nil, err
		}
	}

	if err := copyTree(outputDir, pagesDir); err != nil {
		return nil, err
	}

	final, err := listFiles(pagesDir)
	if err != nil {
		return nil, err
	}
	stats.files = len(final)
	return stats, nil
}

// listFiles returns the set of file paths under root, relative to root,
// excluding the .git directory.
func listFiles(root string) (map[string]struct{}, error) {
	files := make(map[string]struct{})
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, rerr := filepath.Rel(root, path)
		if rerr != nil {
			return rerr
		}
		if d.IsDir() {
			if d.Name() == ".git" && rel != "." {
				return filepath.SkipDir
			}
			return nil
		}
		files[filepath.ToSlash(rel)] = struct{}{}
		return nil
	})
	if os.IsNotExist(err) {
		return files, nil
	}
	return files, err
}

// clearDir removes every entry in dir except the .git directory.
func clearDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if entry.Name() == ".git" {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

// copyTree copies all files under src into dst, creating directories as needed.
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, rerr := filepath.Rel(src, path)
		if rerr != nil {
			return rerr
		}
		if rel == "." || strings.HasPrefix(rel, ".git"+string(filepath.Separator)) || rel == ".git" {
			if d.IsDir() && rel == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
