package pipeline

import "paperpipe/internal/domain"

// Observer receives progress events from a batch. Calls are serialized, and
// the events of one document arrive in state order. With several workers the
// events of different documents interleave.
type Observer interface {
	BatchStarted(runID string, total int)
	Transition(doc domain.SourceDocument, state domain.State, detail string)
	BatchFinished(summary Summary)
}

type nopObserver struct{}

func (nopObserver) BatchStarted(string, int) {}
func (nopObserver) Transition(domain.SourceDocument, domain.State, string) {}
func (nopObserver) BatchFinished(Summary) {}
