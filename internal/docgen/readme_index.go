package docgen

import (
	"bytes"
	"fmt"
	"html"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"git.home.luguber.info/inful/docpages/internal/logfields"
)

// readmeCandidates in lookup order.
var readmeCandidates = []string{"README.md", "Readme.md", "readme.md"}

const indexPageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>%s</title>
<meta name="viewport" content="width=device-width, initial-scale=1">
<style>body{max-width:52rem;margin:2rem auto;padding:0 1rem;font-family:sans-serif;line-height:1.6}pre{overflow-x:auto;background:#f6f8fa;padding:1rem}code{background:#f6f8fa}</style>
</head>
<body>
%s
</body>
</html>
`

// EnsureReadmeIndex renders the repository README into outputDir/index.html
// when the doc command did not produce a root index page itself. Existing
// index pages are never overwritten.
func EnsureReadmeIndex(checkoutDir, outputDir string) error {
	indexPath := filepath.Join(outputDir, "index.html")
	if _, err := os.Stat(indexPath); err == nil {
		slog.Debug("Output already has an index page", logfields.Path(indexPath))
		return nil
	}

	readmePath, ok := findReadme(checkoutDir)
	if !ok {
		return fmt.Errorf("no README found in %s", checkoutDir)
	}

	source, err := os.ReadFile(readmePath)
	if err != nil {
		return fmt.Errorf("failed to read README: %w", err)
	}

	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	var body bytes.Buffer
	if err := md.Convert(source, &body); err != nil {
		return fmt.Errorf("failed to render README: %w", err)
	}

	title := html.EscapeString(filepath.Base(checkoutDir))
	page := fmt.Sprintf(indexPageTemplate, title, body.String())
	if err := os.WriteFile(indexPath, []byte(page), 0o644); err != nil {
		return fmt.Errorf("failed to write index page: %w", err)
	}

	slog.Info("Rendered README index page", logfields.Path(indexPath))
	return nil
}

func findReadme(dir string) (string, bool) {
	for _, name := range readmeCandidates {
		p := filepath.Join(dir, name)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, true
		}
	}
	return "", false
}
