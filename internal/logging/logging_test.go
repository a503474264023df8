package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewWritesConsoleAndFile(t *testing.T) {
	var console bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "ingestion.log")

	logger, closeFn, err := New(Options{Verbose: true, File: path, Console: &console})
	require.NoError(t, err)

	logger.Info("document quarantined", zap.String("document", "paper.pdf"))
	closeFn()

	assert.Contains(t, console.String(), "document quarantined")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"document":"paper.pdf"`)
}

func TestQuietModeDropsInfo(t *testing.T) {
	var console bytes.Buffer
	logger, closeFn, err := New(Options{Console: &console})
	require.NoError(t, err)

	logger.Info("chatty")
	logger.Warn("important")
	closeFn()

	assert.NotContains(t, console.String(), "chatty")
	assert.Contains(t, console.String(), "important")
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))
	l := zap.NewExample()
	assert.Same(t, l, OrNop(l))
}
