// Package quarantine isolates source documents that failed the pipeline.
package quarantine

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"paperpipe/internal/domain"
	"paperpipe/internal/fsutil"
	"paperpipe/internal/logging"
)

// SidecarSuffix is appended to the quarantined file name for its reason file.
const SidecarSuffix = ".reason.json"

// Entry is the structured reason stored next to a quarantined document.
type Entry struct {
	Document      string       `json:"document"`
	Stem          string       `json:"stem"`
	Stage         domain.Stage `json:"stage"`
	Reason        string       `json:"reason"`
	RunID         string       `json:"run_id"`
	QuarantinedAt time.Time    `json:"quarantined_at"`
}

// Manager moves failing documents into the quarantine directory.
type Manager struct {
	dir    string
	logger *zap.Logger
	now    func() time.Time
}

// New returns a Manager rooted at dir.
func New(dir string, logger *zap.Logger) *Manager {
	return &Manager{dir: dir, logger: logging.OrNop(logger), now: time.Now}
}

// Dir is the quarantine directory.
func (m *Manager) Dir() string { return m.dir }

// Path is where doc ends up once quarantined.
func (m *Manager) Path(doc domain.SourceDocument) string {
	return filepath.Join(m.dir, doc.Name)
}

// Quarantine moves doc into the quarantine directory, replacing an earlier
// copy, and writes its reason sidecar. A document that is already gone from
// the source directory is not an error as long as a quarantined copy exists.
func (m *Manager) Quarantine(doc domain.SourceDocument, stage domain.Stage, reason, runID string) (Entry, error) {
	entry := Entry{
		Document:      doc.Name,
		Stem:          doc.Stem,
		Stage:         stage,
		Reason:        reason,
		RunID:         runID,
		QuarantinedAt: m.now().UTC(),
	}

	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return entry, fmt.Errorf("create quarantine dir: %w", err)
	}
	dst := m.Path(doc)
	if err := fsutil.Move(doc.Path, dst); err != nil {
		if !errors.Is(err, fs.ErrNotExist) || !fsutil.Exists(dst) {
			m.logger.Error("failed to move document to quarantine",
				zap.String("document", doc.Name), zap.Error(err))
			return entry, fmt.Errorf("quarantine %s: %w", doc.Name, err)
		}
	}

	data, err := json.MarshalIndent(entry, "", "    ")
	if err != nil {
		return entry, err
	}
	if err := fsutil.WriteFileAtomic(dst+SidecarSuffix, data, 0o644); err != nil {
		return entry, fmt.Errorf("write quarantine reason: %w", err)
	}

	m.logger.Warn("moved document to quarantine",
		zap.String("document", doc.Name),
		zap.String("stage", string(stage)),
		zap.String("reason", reason),
		zap.String("run_id", runID))
	return entry, nil
}

// List reads every reason sidecar in the quarantine directory, sorted by
// document name.
func (m *Manager) List() ([]Entry, error) {
	files, err := os.ReadDir(m.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var entries []Entry
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), SidecarSuffix) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(m.dir, f.Name()))
		if err != nil {
			return nil, err
		}
		var e Entry
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("parse %s: %w", f.Name(), err)
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Document < entries[j].Document })
	return entries, nil
}
