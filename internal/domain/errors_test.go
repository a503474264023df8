package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFailureMatchesStageAndCause(t *testing.T) {
	cause := errors.New("missing required key \"entities\"")
	f := NewFailure(StageEnrichment, cause)

	assert.ErrorIs(t, f, ErrEnrichment)
	assert.ErrorIs(t, f, cause)
	assert.NotErrorIs(t, f, ErrConversion)
	assert.Equal(t, "enrichment: missing required key \"entities\"", f.Error())
}

func TestPreflightCountsAsConversion(t *testing.T) {
	f := &Failure{Stage: StagePreflight, Reason: "not a pdf"}
	assert.ErrorIs(t, f, ErrConversion)
}

func TestNewSourceDocument(t *testing.T) {
	doc := NewSourceDocument("/in/pdfs/attention.is.all.pdf")
	assert.Equal(t, "attention.is.all.pdf", doc.Name)
	assert.Equal(t, "attention.is.all", doc.Stem)
	assert.Equal(t, "/in/pdfs/attention.is.all.pdf", doc.Path)
}

func TestTerminalStates(t *testing.T) {
	assert.True(t, StateCleaned.Terminal())
	assert.True(t, StateQuarantined.Terminal())
	assert.True(t, StateSkipped.Terminal())
	assert.False(t, StateEnriched.Terminal())
}
