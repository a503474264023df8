package pipeline

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"paperpipe/internal/domain"
	"paperpipe/internal/fsutil"
)

// RecordWriter persists a processed record and returns where it went.
type RecordWriter interface {
	Write(doc domain.SourceDocument, rec domain.ProcessedRecord) (string, error)
}

// FileRecordWriter writes indented JSON records into a directory, replacing
// the file atomically.
type FileRecordWriter struct {
	Dir string
}

// Write stores rec as <dir>/<stem>.json.
func (w FileRecordWriter) Write(doc domain.SourceDocument, rec domain.ProcessedRecord) (string, error) {
	data, err := json.MarshalIndent(rec, "", "    ")
	if err != nil {
		return "", fmt.Errorf("encode record: %w", err)
	}
	path := filepath.Join(w.Dir, doc.Stem+RecordSuffix)
	if err := fsutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write record: %w", err)
	}
	return path, nil
}
