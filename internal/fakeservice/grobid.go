// Package fakeservice provides in-process stand-ins for the GROBID server and
// the language-model endpoints, for use in tests.
package fakeservice

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

// Upload is one PDF received by the fake GROBID server.
type Upload struct {
	Field       string
	Filename    string
	ContentType string
	Data        []byte
}

// GrobidResponder decides the reply for an uploaded file.
type GrobidResponder func(filename string, data []byte) (status int, body string)

// Grobid is a fake GROBID server.
type Grobid struct {
	*httptest.Server

	mu        sync.Mutex
	alive     bool
	delay     time.Duration
	responder GrobidResponder
	uploads   []Upload
}

// NewGrobid starts a fake GROBID server that is alive and answers every upload
// with an empty TEI document. It is closed when the test ends.
func NewGrobid(tb testing.TB) *Grobid {
	g := &Grobid{alive: true}
	g.responder = func(string, []byte) (int, string) { return http.StatusOK, "<TEI/>" }

	r := chi.NewRouter()
	r.Get("/api/isalive", g.handleAlive)
	r.Post("/api/processFulltextDocument", g.handleProcess)
	g.Server = httptest.NewServer(r)
	tb.Cleanup(g.Server.Close)
	return g
}

// SetAlive toggles the liveness endpoint.
func (g *Grobid) SetAlive(alive bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.alive = alive
}

// SetDelay holds every upload response for d.
func (g *Grobid) SetDelay(d time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.delay = d
}

// RespondWith answers every upload with status and body.
func (g *Grobid) RespondWith(status int, body string) {
	g.Respond(func(string, []byte) (int, string) { return status, body })
}

// Respond installs a per-file responder.
func (g *Grobid) Respond(fn GrobidResponder) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.responder = fn
}

// Uploads returns the files received so far.
func (g *Grobid) Uploads() []Upload {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Upload(nil), g.uploads...)
}

func (g *Grobid) handleAlive(w http.ResponseWriter, _ *http.Request) {
	g.mu.Lock()
	alive := g.alive
	g.mu.Unlock()
	if !alive {
		http.Error(w, "down", http.StatusServiceUnavailable)
		return
	}
	_, _ = w.Write([]byte("true"))
}

func (g *Grobid) handleProcess(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	file, hdr, err := r.FormFile("input")
	if err != nil {
		http.Error(w, "missing input", http.StatusBadRequest)
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	g.mu.Lock()
	g.uploads = append(g.uploads, Upload{
		Field:       "input",
		Filename:    hdr.Filename,
		ContentType: hdr.Header.Get("Content-Type"),
		Data:        data,
	})
	delay := g.delay
	responder := g.responder
	g.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	status, body := responder(hdr.Filename, data)
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
