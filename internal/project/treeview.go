package project

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/kr/fs"

	"github.com/joe/datashuttle/internal/logging"
)

// ShowLocalTree renders the local project tree as indented text, one entry
// per line. Tool-managed meta folders are skipped so the view shows only the
// experimenter's data layout.
func (p *Project) ShowLocalTree() (string, error) {
	if err := p.requireConfig(); err != nil {
		return "", err
	}

	root := p.Cfg.LocalPath

	var b strings.Builder
	fmt.Fprintln(&b, filepath.Base(root))

	walker := fs.Walk(root)
	for walker.Step() {
		if err := walker.Err(); err != nil {
			return "", fmt.Errorf("failed to walk %s: %w", walker.Path(), err)
		}

		if walker.Path() == root {
			continue
		}

		rel, err := filepath.Rel(root, walker.Path())
		if err != nil {
			return "", err
		}

		name := filepath.Base(rel)
		if name == logging.MetaFolderName {
			walker.SkipDir()
			continue
		}

		depth := strings.Count(rel, string(filepath.Separator)) + 1
		fmt.Fprintf(&b, "%s%s\n", strings.Repeat("    ", depth), name)
	}

	return b.String(), nil
}
