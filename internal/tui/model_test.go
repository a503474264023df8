package tui

import (
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paperpipe/internal/domain"
	"paperpipe/internal/pipeline"
)

type capture struct{ msgs []tea.Msg }

func (c *capture) Send(msg tea.Msg) { c.msgs = append(c.msgs, msg) }

func replay(t *testing.T, m Model, msgs []tea.Msg) Model {
	t.Helper()
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		var ok bool
		m, ok = next.(Model)
		require.True(t, ok)
	}
	return m
}

func TestObserverDrivesModel(t *testing.T) {
	c := &capture{}
	obs := NewObserver(c)
	a := domain.NewSourceDocument("/in/a.pdf")
	b := domain.NewSourceDocument("/in/b.pdf")

	obs.BatchStarted("run-1", 2)
	obs.Transition(a, domain.StatePending, "")
	obs.Transition(a, domain.StateCleaned, "")
	obs.Transition(b, domain.StatePending, "")
	obs.Transition(b, domain.StateQuarantined, "conversion: GROBID returned status 500")
	obs.BatchFinished(pipeline.Summary{RunID: "run-1", Total: 2, Processed: 1, Quarantined: 1})

	m := replay(t, New(nil), c.msgs)

	assert.Equal(t, 2, m.finished)
	assert.Equal(t, 1.0, m.percent())
	view := m.View()
	assert.Contains(t, view, "run run-1")
	assert.Contains(t, view, "a.pdf")
	assert.Contains(t, view, "GROBID returned status 500")
	assert.Contains(t, view, "processed 1, quarantined 1, skipped 0")
}

func TestStopKeyCallsStopOnce(t *testing.T) {
	calls := 0
	m := New(func() { calls++ })
	m = replay(t, m, []tea.Msg{
		batchStartedMsg{runID: "r", total: 3},
		tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")},
		tea.KeyMsg{Type: tea.KeyCtrlC},
	})

	assert.Equal(t, 1, calls)
	assert.True(t, m.stopping)
	assert.Contains(t, m.View(), "Stopping after the current document")
}

func TestDoneQuits(t *testing.T) {
	m := New(nil)
	next, cmd := m.Update(DoneMsg{Err: errors.New("document-analysis service unavailable")})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Contains(t, next.View(), "Error: document-analysis service unavailable")
}

func TestHistoryIsBounded(t *testing.T) {
	m := New(nil)
	msgs := []tea.Msg{batchStartedMsg{total: historySize + 4}}
	for i := 0; i < historySize+4; i++ {
		msgs = append(msgs, transitionMsg{doc: "d.pdf", state: domain.StateSkipped})
	}
	m = replay(t, m, msgs)
	assert.Len(t, m.history, historySize)
	assert.Equal(t, historySize+4, m.finished)
}
