package ledger

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paperpipe/internal/domain"
)

func openMemory(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func TestRecordAndLast(t *testing.T) {
	ctx := context.Background()
	l := openMemory(t)

	_, ok, err := l.Last(ctx, "paper")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, l.Record(ctx, Outcome{RunID: "r1", Document: "paper.pdf", Stem: "paper", SHA256: "aaa", State: domain.StateQuarantined, Stage: domain.StageEnrichment, Reason: "missing key"}))
	require.NoError(t, l.Record(ctx, Outcome{RunID: "r2", Document: "paper.pdf", Stem: "paper", SHA256: "bbb", State: domain.StateCleaned, Chunks: 4}))
	require.NoError(t, l.Record(ctx, Outcome{RunID: "r3", Document: "paper.pdf", Stem: "paper", State: domain.StateSkipped}))

	last, ok, err := l.Last(ctx, "paper")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "r2", last.RunID)
	assert.Equal(t, "bbb", last.SHA256)
	assert.Equal(t, domain.StateCleaned, last.State)
	assert.Equal(t, 4, last.Chunks)
	assert.False(t, last.RecordedAt.IsZero())
}

func TestQuarantinedUsesLatestOutcome(t *testing.T) {
	ctx := context.Background()
	l := openMemory(t)

	require.NoError(t, l.Record(ctx, Outcome{RunID: "r1", Document: "a.pdf", Stem: "a", State: domain.StateQuarantined, Stage: domain.StageConversion, Reason: "GROBID returned status 500"}))
	require.NoError(t, l.Record(ctx, Outcome{RunID: "r1", Document: "b.pdf", Stem: "b", State: domain.StateQuarantined, Stage: domain.StageChunking, Reason: "chunking failed"}))
	require.NoError(t, l.Record(ctx, Outcome{RunID: "r2", Document: "a.pdf", Stem: "a", State: domain.StateCleaned}))

	q, err := l.Quarantined(ctx)
	require.NoError(t, err)
	require.Len(t, q, 1)
	assert.Equal(t, "b.pdf", q[0].Document)
	assert.Equal(t, domain.StageChunking, q[0].Stage)
	assert.Equal(t, "chunking failed", q[0].Reason)
}

func TestUnresolvedIncludesCleanupProblems(t *testing.T) {
	ctx := context.Background()
	l := openMemory(t)

	require.NoError(t, l.Record(ctx, Outcome{RunID: "r1", Document: "a.pdf", Stem: "a", State: domain.StateCleaned}))
	require.NoError(t, l.Record(ctx, Outcome{RunID: "r1", Document: "b.pdf", Stem: "b", State: domain.StateCleaned, Reason: "record written but source not removed: permission denied"}))
	require.NoError(t, l.Record(ctx, Outcome{RunID: "r1", Document: "c.pdf", Stem: "c", State: domain.StateQuarantined, Stage: domain.StageEnrichment, Reason: "bad json"}))

	out, err := l.Unresolved(ctx)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "b.pdf", out[0].Document)
	assert.Equal(t, domain.StateCleaned, out[0].State)
	assert.Equal(t, "c.pdf", out[1].Document)
}

func TestRunOutcomesInOrder(t *testing.T) {
	ctx := context.Background()
	l := openMemory(t)
	for _, name := range []string{"z", "a", "m"} {
		require.NoError(t, l.Record(ctx, Outcome{RunID: "run", Document: name + ".pdf", Stem: name, State: domain.StateCleaned}))
	}
	require.NoError(t, l.Record(ctx, Outcome{RunID: "other", Document: "x.pdf", Stem: "x", State: domain.StateCleaned}))

	out, err := l.Run(ctx, "run")
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, []string{"z.pdf", "a.pdf", "m.pdf"}, []string{out[0].Document, out[1].Document, out[2].Document})
}

func TestOpenFileCreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "ledger.db")
	l, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, l.Record(context.Background(), Outcome{RunID: "r", Document: "d.pdf", Stem: "d", State: domain.StateCleaned}))
	require.NoError(t, l.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()
	_, ok, err := reopened.Last(context.Background(), "d")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHashFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.pdf")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0o644))

	sum, err := HashFile(path)
	require.NoError(t, err)
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", sum)
}
