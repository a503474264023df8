package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"paperpipe/internal/config"
	"paperpipe/internal/domain"
)

// Artifact suffixes, appended to the document stem.
const (
	MarkupSuffix     = ".tei.xml"
	NormalizedSuffix = ".md"
	RecordSuffix     = ".json"
)

// Workspace is the set of directories a batch reads from and writes to.
type Workspace struct {
	Source     string
	Markup     string
	Normalized string
	Processed  string
	Quarantine string
}

// NewWorkspace maps the configured paths onto a Workspace.
func NewWorkspace(p config.PathsConfig) Workspace {
	return Workspace{
		Source:     p.SourceDir,
		Markup:     p.MarkupDir,
		Normalized: p.NormalizedDir,
		Processed:  p.ProcessedDir,
		Quarantine: p.QuarantineDir,
	}
}

// Ensure creates every directory of the workspace.
func (w Workspace) Ensure() error {
	for _, dir := range []string{w.Source, w.Markup, w.Normalized, w.Processed, w.Quarantine} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// Discover lists the PDFs in the source directory sorted by name. The
// extension is matched case-insensitively.
func (w Workspace) Discover() ([]domain.SourceDocument, error) {
	entries, err := os.ReadDir(w.Source)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", w.Source, err)
	}
	var docs []domain.SourceDocument
	for _, e := range entries {
		if !e.Type().IsRegular() || !strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			continue
		}
		docs = append(docs, domain.NewSourceDocument(filepath.Join(w.Source, e.Name())))
	}
	return docs, nil
}

// MarkupPath is the intermediate TEI artifact for doc.
func (w Workspace) MarkupPath(doc domain.SourceDocument) string {
	return filepath.Join(w.Markup, doc.Stem+MarkupSuffix)
}

// NormalizedPath is the intermediate markdown artifact for doc.
func (w Workspace) NormalizedPath(doc domain.SourceDocument) string {
	return filepath.Join(w.Normalized, doc.Stem+NormalizedSuffix)
}

// RecordPath is the processed record for doc.
func (w Workspace) RecordPath(doc domain.SourceDocument) string {
	return filepath.Join(w.Processed, doc.Stem+RecordSuffix)
}
