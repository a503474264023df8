package grobid

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paperpipe/internal/domain"
	"paperpipe/internal/fakeservice"
)

func writePDF(t *testing.T, name string) domain.SourceDocument {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 fake"), 0o644))
	return domain.NewSourceDocument(path)
}

func TestPing(t *testing.T) {
	srv := fakeservice.NewGrobid(t)
	c := NewClient(Config{BaseURL: srv.URL}, nil)

	require.NoError(t, c.Ping(context.Background()))

	srv.SetAlive(false)
	err := c.Ping(context.Background())
	assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
}

func TestPingUnreachable(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://127.0.0.1:1", PingTimeout: time.Second}, nil)
	assert.ErrorIs(t, c.Ping(context.Background()), domain.ErrServiceUnavailable)
}

func TestConvertUploadsUnderInputField(t *testing.T) {
	srv := fakeservice.NewGrobid(t)
	srv.RespondWith(http.StatusOK, "<TEI>ok</TEI>")
	c := NewClient(Config{BaseURL: srv.URL + "/"}, nil)
	doc := writePDF(t, "paper.pdf")

	out, err := c.Convert(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, "<TEI>ok</TEI>", string(out))

	uploads := srv.Uploads()
	require.Len(t, uploads, 1)
	assert.Equal(t, "paper.pdf", uploads[0].Filename)
	assert.Equal(t, "application/pdf", uploads[0].ContentType)
	assert.Equal(t, "%PDF-1.4 fake", string(uploads[0].Data))
}

func TestConvertStatusError(t *testing.T) {
	srv := fakeservice.NewGrobid(t)
	srv.RespondWith(http.StatusInternalServerError, strings.Repeat("x", 300))
	c := NewClient(Config{BaseURL: srv.URL}, nil)

	_, err := c.Convert(context.Background(), writePDF(t, "bad.pdf"))
	require.Error(t, err)
	assert.Equal(t, "GROBID returned status 500. Response: "+strings.Repeat("x", 200)+"...", err.Error())
}

func TestConvertTimeout(t *testing.T) {
	srv := fakeservice.NewGrobid(t)
	srv.SetDelay(time.Second)
	c := NewClient(Config{BaseURL: srv.URL, Timeout: 50 * time.Millisecond}, nil)

	_, err := c.Convert(context.Background(), writePDF(t, "slow.pdf"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "request timed out after 50ms")
}

func TestConvertNetworkError(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://127.0.0.1:1"}, nil)

	_, err := c.Convert(context.Background(), writePDF(t, "paper.pdf"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a network error occurred")
}

func TestConvertMissingSource(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://127.0.0.1:1"}, nil)

	_, err := c.Convert(context.Background(), domain.NewSourceDocument(filepath.Join(t.TempDir(), "gone.pdf")))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
