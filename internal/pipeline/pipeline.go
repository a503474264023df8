// Package pipeline drives source PDFs through conversion, normalization,
// enrichment, chunking and persistence, quarantining any document that fails.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"paperpipe/internal/domain"
	"paperpipe/internal/fsutil"
	"paperpipe/internal/ledger"
	"paperpipe/internal/logging"
	"paperpipe/internal/pdfcheck"
	"paperpipe/internal/quarantine"
)

// Preflighter checks a source file locally before it is uploaded.
type Preflighter interface {
	Check(path string) (pdfcheck.Info, error)
}

// Ledger stores per-document outcomes.
type Ledger interface {
	Record(ctx context.Context, o ledger.Outcome) error
	Last(ctx context.Context, stem string) (ledger.Outcome, bool, error)
}

// Outcome is the terminal result of one document.
type Outcome struct {
	Document   string
	Stem       string
	State      domain.State
	Stage      domain.Stage
	// Reason explains a quarantine, or a cleanup problem on a processed document.
	Reason     string
	Chunks     int
	RecordPath string
	Err        error
}

// Summary describes a finished batch.
type Summary struct {
	RunID       string
	Total       int
	Processed   int
	Quarantined int
	Skipped     int
	Interrupted bool
	Outcomes    []Outcome
}

func (s *Summary) add(o Outcome) {
	s.Outcomes = append(s.Outcomes, o)
	switch o.State {
	case domain.StateCleaned:
		s.Processed++
	case domain.StateQuarantined:
		s.Quarantined++
	case domain.StateSkipped:
		s.Skipped++
	}
}

// Pipeline processes every PDF of a workspace. By default one document is in
// flight at a time.
type Pipeline struct {
	ws         Workspace
	converter  domain.Converter
	normalizer domain.Normalizer
	enricher   domain.Enricher
	chunker    domain.Chunker
	quarantine *quarantine.Manager
	records    RecordWriter
	preflight  Preflighter
	ledger     Ledger
	observer   Observer
	logger     *zap.Logger
	limiter    *rate.Limiter
	force      bool
	workers    int
	now        func() time.Time

	removeSource func(path string) error
}

// Option customises a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger. Default: no-op.
func WithLogger(l *zap.Logger) Option { return func(p *Pipeline) { p.logger = logging.OrNop(l) } }

// WithForce reprocesses documents whose normalized artifact already exists.
func WithForce(force bool) Option { return func(p *Pipeline) { p.force = force } }

// WithPacing spaces document starts at least d apart. Zero disables pacing.
func WithPacing(d time.Duration) Option {
	return func(p *Pipeline) {
		if d <= 0 {
			p.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		p.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

// WithWorkers bounds how many documents are processed concurrently. Values
// below one mean one.
func WithWorkers(n int) Option { return func(p *Pipeline) { p.workers = max(1, n) } }

// WithPreflight validates each PDF locally before conversion.
func WithPreflight(pf Preflighter) Option { return func(p *Pipeline) { p.preflight = pf } }

// WithLedger records every outcome and enables changed-source warnings.
func WithLedger(l Ledger) Option { return func(p *Pipeline) { p.ledger = l } }

// WithObserver receives progress events.
func WithObserver(o Observer) Option { return func(p *Pipeline) { p.observer = o } }

// WithRecordWriter replaces the default JSON file writer.
func WithRecordWriter(w RecordWriter) Option { return func(p *Pipeline) { p.records = w } }

// WithClock overrides the time source used for record timestamps.
func WithClock(now func() time.Time) Option { return func(p *Pipeline) { p.now = now } }

// New wires a Pipeline from its collaborators.
func New(ws Workspace, conv domain.Converter, norm domain.Normalizer, enr domain.Enricher, chunk domain.Chunker, opts ...Option) *Pipeline {
	p := &Pipeline{
		ws:         ws,
		converter:  conv,
		normalizer: norm,
		enricher:   enr,
		chunker:    chunk,
		observer:   nopObserver{},
		logger:     zap.NewNop(),
		limiter:    rate.NewLimiter(rate.Every(time.Second), 1),
		workers:    1,
		now:        time.Now,

		removeSource: fsutil.RemoveIfExists,
	}
	for _, o := range opts {
		o(p)
	}
	if p.workers > 1 {
		p.observer = &serialObserver{next: p.observer}
	}
	if p.records == nil {
		p.records = FileRecordWriter{Dir: ws.Processed}
	}
	p.quarantine = quarantine.New(ws.Quarantine, p.logger)
	return p
}

// Run processes every discovered document. It fails only when the workspace
// cannot be prepared or the conversion service is unavailable; per-document
// failures end up in the Summary, in discovery order. Cancelling ctx stops the
// batch before the next document starts; documents in flight always reach a
// terminal state.
func (p *Pipeline) Run(ctx context.Context) (Summary, error) {
	sum := Summary{RunID: uuid.NewString()}
	log := p.logger.With(zap.String("run_id", sum.RunID))
	log.Info("starting ingestion pipeline")

	if err := p.ws.Ensure(); err != nil {
		return sum, fmt.Errorf("prepare workspace: %w", err)
	}
	if err := p.converter.Ping(ctx); err != nil {
		log.Error("halting pipeline: conversion service is not available", zap.Error(err))
		if !errors.Is(err, domain.ErrServiceUnavailable) {
			err = fmt.Errorf("%w: %v", domain.ErrServiceUnavailable, err)
		}
		return sum, err
	}

	docs, err := p.ws.Discover()
	if err != nil {
		return sum, err
	}
	sum.Total = len(docs)
	if len(docs) == 0 {
		log.Info("no new PDF files found to process")
	} else {
		log.Info("found PDFs to process", zap.Int("count", len(docs)))
	}
	p.observer.BatchStarted(sum.RunID, len(docs))

	runID := sum.RunID
	results := make([]*Outcome, len(docs))
	slots := make(chan struct{}, p.workers)
	var g errgroup.Group
	for i, doc := range docs {
		slots <- struct{}{}
		if ctx.Err() != nil {
			<-slots
			sum.Interrupted = true
			break
		}
		if p.shouldSkip(ctx, doc, log) {
			o := Outcome{Document: doc.Name, Stem: doc.Stem, State: domain.StateSkipped}
			p.observer.Transition(doc, domain.StateSkipped, "normalized artifact exists")
			p.recordOutcome(ctx, runID, o, "", log)
			results[i] = &o
			<-slots
			continue
		}
		if err := p.limiter.Wait(ctx); err != nil {
			<-slots
			sum.Interrupted = true
			break
		}
		g.Go(func() error {
			defer func() { <-slots }()
			o := p.Process(ctx, runID, doc)
			results[i] = &o
			return nil
		})
	}
	_ = g.Wait()
	for _, o := range results {
		if o != nil {
			sum.add(*o)
		}
	}

	if sum.Interrupted {
		log.Warn("batch interrupted", zap.Int("remaining", sum.Total-len(sum.Outcomes)))
	}
	log.Info("ingestion pipeline finished",
		zap.Int("processed", sum.Processed),
		zap.Int("quarantined", sum.Quarantined),
		zap.Int("skipped", sum.Skipped))
	p.observer.BatchFinished(sum)
	return sum, nil
}

// serialObserver keeps events from concurrent workers from interleaving.
type serialObserver struct {
	mu   sync.Mutex
	next Observer
}

func (o *serialObserver) BatchStarted(runID string, total int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.next.BatchStarted(runID, total)
}

func (o *serialObserver) Transition(doc domain.SourceDocument, state domain.State, detail string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.next.Transition(doc, state, detail)
}

func (o *serialObserver) BatchFinished(summary Summary) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.next.BatchFinished(summary)
}

// shouldSkip applies the idempotence gate: an existing normalized artifact
// means the document was already taken through this pipeline.
func (p *Pipeline) shouldSkip(ctx context.Context, doc domain.SourceDocument, log *zap.Logger) bool {
	if p.force || !fsutil.Exists(p.ws.NormalizedPath(doc)) {
		return false
	}
	log = log.With(zap.String("document", doc.Name))
	log.Info("skipping document, normalized artifact already exists")
	if p.ledger == nil {
		return true
	}
	last, ok, err := p.ledger.Last(ctx, doc.Stem)
	if err != nil || !ok || last.SHA256 == "" {
		return true
	}
	if sum, err := ledger.HashFile(doc.Path); err == nil && sum != last.SHA256 {
		log.Warn("source content changed since it was last processed under this name",
			zap.String("previous_sha256", last.SHA256), zap.String("sha256", sum))
	}
	return true
}

// Process takes one document from pending to a terminal state. It is not
// interrupted by ctx cancellation.
func (p *Pipeline) Process(ctx context.Context, runID string, doc domain.SourceDocument) Outcome {
	ctx = context.WithoutCancel(ctx)
	log := p.logger.With(zap.String("document", doc.Name), zap.String("run_id", runID))

	var hash string
	if p.ledger != nil {
		hash, _ = ledger.HashFile(doc.Path)
	}

	markupPath := p.ws.MarkupPath(doc)
	normalizedPath := p.ws.NormalizedPath(doc)
	removeArtifacts := func() {
		for _, path := range []string{markupPath, normalizedPath} {
			if err := fsutil.RemoveIfExists(path); err != nil {
				log.Warn("failed to remove intermediate artifact", zap.String("path", path), zap.Error(err))
			}
		}
	}

	fail := func(stage domain.Stage, err error) Outcome {
		f := domain.NewFailure(stage, err)
		log.Error("document failed", zap.String("stage", string(stage)), zap.String("reason", f.Reason))
		removeArtifacts()
		if _, qerr := p.quarantine.Quarantine(doc, stage, f.Reason, runID); qerr != nil {
			log.Error("failed to quarantine document", zap.Error(qerr))
		}
		o := Outcome{Document: doc.Name, Stem: doc.Stem, State: domain.StateQuarantined, Stage: stage, Reason: f.Reason, Err: f}
		p.observer.Transition(doc, domain.StateQuarantined, f.Error())
		p.recordOutcome(ctx, runID, o, hash, log)
		return o
	}
	advance := func(state domain.State, detail string) {
		log.Info("document advanced", zap.String("state", string(state)))
		p.observer.Transition(doc, state, detail)
	}

	advance(domain.StatePending, "")

	if p.preflight != nil {
		info, err := p.preflight.Check(doc.Path)
		if err != nil {
			return fail(domain.StagePreflight, err)
		}
		log.Info("preflight passed", zap.Int("pages", info.Pages))
	}

	markup, err := p.converter.Convert(ctx, doc)
	if err != nil {
		return fail(domain.StageConversion, err)
	}
	if err := fsutil.WriteFileAtomic(markupPath, markup, 0o644); err != nil {
		return fail(domain.StageConversion, fmt.Errorf("write markup artifact: %w", err))
	}
	advance(domain.StateConverted, markupPath)

	text, err := p.normalizer.Normalize(markup)
	if err != nil {
		return fail(domain.StageNormalization, fmt.Errorf("failed to convert markup to markdown: %w", err))
	}
	if err := fsutil.WriteFileAtomic(normalizedPath, []byte(text), 0o644); err != nil {
		return fail(domain.StageNormalization, fmt.Errorf("write normalized artifact: %w", err))
	}
	advance(domain.StateNormalized, normalizedPath)

	content, err := p.enricher.Enrich(ctx, text)
	if err != nil {
		return fail(domain.StageEnrichment, err)
	}
	advance(domain.StateEnriched, "")

	chunks, err := p.chunker.Chunk(domain.Document{ID: doc.Stem, Content: content.CleanedText})
	if err != nil {
		return fail(domain.StageChunking, fmt.Errorf("%w: %v", domain.ErrChunking, err))
	}
	if len(chunks) == 0 {
		return fail(domain.StageChunking, domain.ErrChunking)
	}
	advance(domain.StateChunked, fmt.Sprintf("%d chunks", len(chunks)))

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	now := p.now()
	recordPath, err := p.records.Write(doc, domain.ProcessedRecord{
		SourceFilename:     doc.Name,
		DocumentSummary:    content.Summary,
		KeyEntities:        content.Entities,
		Chunks:             texts,
		ProcessedTimestamp: float64(now.UnixNano()) / 1e9,
	})
	if err != nil {
		return fail(domain.StagePersistence, err)
	}
	advance(domain.StatePersisted, recordPath)

	o := Outcome{Document: doc.Name, Stem: doc.Stem, State: domain.StateCleaned, Chunks: len(chunks), RecordPath: recordPath}
	if err := p.removeSource(doc.Path); err != nil {
		o.Reason = fmt.Sprintf("record written but source not removed: %v", err)
		log.Error("failed to remove processed source", zap.String("record", recordPath), zap.Error(err))
	}
	removeArtifacts()
	advance(domain.StateCleaned, o.Reason)

	p.recordOutcome(ctx, runID, o, hash, log)
	log.Info("document processed", zap.Int("chunks", len(chunks)), zap.String("record", recordPath))
	return o
}

func (p *Pipeline) recordOutcome(ctx context.Context, runID string, o Outcome, hash string, log *zap.Logger) {
	if p.ledger == nil {
		return
	}
	err := p.ledger.Record(ctx, ledger.Outcome{
		RunID:    runID,
		Document: o.Document,
		Stem:     o.Stem,
		SHA256:   hash,
		State:    o.State,
		Stage:    o.Stage,
		Reason:   o.Reason,
		Chunks:   o.Chunks,
	})
	if err != nil {
		log.Warn("failed to record outcome in ledger", zap.Error(err))
	}
}
