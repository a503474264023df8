package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"paperpipe/internal/domain"
	"paperpipe/internal/pipeline"
)

// Sender is the part of *tea.Program the observer needs.
type Sender interface {
	Send(msg tea.Msg)
}

// Observer forwards pipeline events to a running program.
type Observer struct {
	program Sender
}

var _ pipeline.Observer = (*Observer)(nil)

// NewObserver returns an Observer that sends to p.
func NewObserver(p Sender) *Observer { return &Observer{program: p} }

func (o *Observer) BatchStarted(runID string, total int) {
	o.program.Send(batchStartedMsg{runID: runID, total: total})
}

func (o *Observer) Transition(doc domain.SourceDocument, state domain.State, detail string) {
	o.program.Send(transitionMsg{doc: doc.Name, state: state, detail: detail})
}

func (o *Observer) BatchFinished(summary pipeline.Summary) {
	o.program.Send(batchFinishedMsg{summary: summary})
}
