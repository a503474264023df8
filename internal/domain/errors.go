package domain

import (
	"errors"
	"fmt"
)

// ErrServiceUnavailable halts a whole batch before any document is touched.
var ErrServiceUnavailable = errors.New("document-analysis service unavailable")

// Per-document failure kinds. Each resolves to quarantine + cleanup.
var (
	ErrConversion    = errors.New("conversion failed")
	ErrNormalization = errors.New("normalization failed")
	ErrEnrichment    = errors.New("enrichment failed")
	ErrChunking      = errors.New("chunking failed")
	ErrPersistence   = errors.New("persistence failed")
)

// Stage names the pipeline step that produced a failure.
type Stage string

const (
	StagePreflight     Stage = "preflight"
	StageConversion    Stage = "conversion"
	StageNormalization Stage = "normalization"
	StageEnrichment    Stage = "enrichment"
	StageChunking      Stage = "chunking"
	StagePersistence   Stage = "persistence"
)

// Kind returns the failure sentinel for the stage.
func (s Stage) Kind() error {
	switch s {
	case StagePreflight, StageConversion:
		return ErrConversion
	case StageNormalization:
		return ErrNormalization
	case StageEnrichment:
		return ErrEnrichment
	case StageChunking:
		return ErrChunking
	case StagePersistence:
		return ErrPersistence
	default:
		return fmt.Errorf("unknown stage %q", string(s))
	}
}

// Failure is a per-document stage failure with a human-readable reason.
type Failure struct {
	Stage  Stage
	Reason string
	Err    error
}

// NewFailure builds a Failure whose reason is taken from err.
func NewFailure(stage Stage, err error) *Failure {
	reason := ""
	if err != nil {
		reason = err.Error()
	}
	return &Failure{Stage: stage, Reason: reason, Err: err}
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s", f.Stage, f.Reason)
}

// Unwrap exposes both the stage sentinel and the underlying cause to errors.Is.
func (f *Failure) Unwrap() []error {
	if f.Err == nil {
		return []error{f.Stage.Kind()}
	}
	return []error{f.Stage.Kind(), f.Err}
}
