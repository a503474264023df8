package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"paperpipe/internal/chunker"
	"paperpipe/internal/config"
	"paperpipe/internal/enrich"
	"paperpipe/internal/grobid"
	"paperpipe/internal/ledger"
	"paperpipe/internal/logging"
	"paperpipe/internal/pdfcheck"
	"paperpipe/internal/pipeline"
	"paperpipe/internal/tei"
	"paperpipe/internal/tui"
)

func main() {
	_ = godotenv.Load()

	var (
		cfgPath    string
		initPath   string
		force      bool
		useTUI     bool
		showReport bool
	)
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ./paperpipe.yaml if present)")
	flag.StringVar(&initPath, "init-config", "", "Write the default config to this path and exit")
	flag.BoolVar(&force, "force", false, "Reprocess documents whose markdown artifact already exists")
	flag.BoolVar(&useTUI, "tui", false, "Show an interactive progress view")
	flag.BoolVar(&showReport, "report", false, "List quarantined or unresolved documents from the ledger and exit")
	flag.Parse()

	if initPath != "" {
		if err := config.Save(initPath, config.Default()); err != nil {
			log.Fatalf("failed to write config: %v", err)
		}
		fmt.Println("wrote", initPath)
		return
	}

	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, cfgPath, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	if force {
		cfg.Pipeline.ForceReprocess = true
	}

	var console io.Writer
	if useTUI {
		console = io.Discard
	}
	logger, closeLog, err := logging.New(logging.Options{Verbose: cfg.Logging.Verbose, File: cfg.Logging.File, Console: console})
	if err != nil {
		log.Fatalf("failed to set up logging: %v", err)
	}
	defer closeLog()
	if cfgPath != "" {
		logger.Info("loaded config", zap.String("path", cfgPath))
	}

	var book *ledger.Ledger
	if cfg.Paths.LedgerPath != "" {
		book, err = ledger.Open(cfg.Paths.LedgerPath)
		if err != nil {
			logger.Fatal("failed to open ledger", zap.Error(err))
		}
		defer book.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if showReport {
		if book == nil {
			logger.Fatal("report needs paths.ledger_path")
		}
		if err := report(ctx, os.Stdout, book); err != nil {
			logger.Fatal("failed to read ledger", zap.Error(err))
		}
		return
	}

	var summary pipeline.Summary
	if useTUI {
		summary = runWithTUI(ctx, stop, cfg, logger, book)
	} else {
		p, err := build(cfg, logger, book)
		if err != nil {
			logger.Fatal("failed to assemble pipeline", zap.Error(err))
		}
		summary, err = p.Run(ctx)
		if err != nil {
			logger.Fatal("pipeline halted", zap.Error(err))
		}
	}
	printSummary(os.Stdout, summary)
	if code := exitCode(summary); code != 0 {
		if book != nil {
			book.Close()
		}
		closeLog()
		os.Exit(code)
	}
}

// exitCode is 130 for a batch stopped by a signal or the stop key.
func exitCode(s pipeline.Summary) int {
	if s.Interrupted {
		return 130
	}
	return 0
}

func build(cfg *config.AppConfig, logger *zap.Logger, book *ledger.Ledger, extra ...pipeline.Option) (*pipeline.Pipeline, error) {
	conv := grobid.NewClient(grobid.Config{
		BaseURL:     cfg.Grobid.BaseURL,
		Timeout:     cfg.GrobidTimeout(),
		PingTimeout: cfg.GrobidPingTimeout(),
	}, logger)

	enr, err := enrich.New(cfg.LLM.Backend, enrich.Config{
		Endpoint:    cfg.LLM.Endpoint,
		Model:       cfg.LLM.Model,
		APIKey:      cfg.LLM.APIKey,
		Timeout:     cfg.LLMTimeout(),
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: enrich.Temp(cfg.LLM.Temperature),
	}, logger)
	if err != nil {
		return nil, err
	}

	ch, err := chunker.New(cfg.Chunker.Method, cfg.Chunker.Size, cfg.Chunker.Overlap)
	if err != nil {
		return nil, err
	}

	opts := []pipeline.Option{
		pipeline.WithLogger(logger),
		pipeline.WithForce(cfg.Pipeline.ForceReprocess),
		pipeline.WithPacing(cfg.Pacing()),
		pipeline.WithWorkers(cfg.Pipeline.Workers),
	}
	if cfg.Grobid.Preflight {
		opts = append(opts, pipeline.WithPreflight(pdfcheck.New(logger)))
	}
	if book != nil {
		opts = append(opts, pipeline.WithLedger(book))
	}
	opts = append(opts, extra...)

	ws := pipeline.NewWorkspace(cfg.Paths)
	return pipeline.New(ws, conv, tei.New(), enr, ch, opts...), nil
}

func runWithTUI(ctx context.Context, stop context.CancelFunc, cfg *config.AppConfig, logger *zap.Logger, book *ledger.Ledger) pipeline.Summary {
	program := tea.NewProgram(tui.New(stop))
	p, err := build(cfg, logger, book, pipeline.WithObserver(tui.NewObserver(program)))
	if err != nil {
		logger.Fatal("failed to assemble pipeline", zap.Error(err))
	}
	var (
		summary pipeline.Summary
		runErr  error
	)
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		summary, runErr = p.Run(ctx)
		program.Send(tui.DoneMsg{Err: runErr})
	}()
	if _, err := program.Run(); err != nil {
		stop()
		logger.Error("progress view failed", zap.Error(err))
	}
	<-finished
	if runErr != nil {
		logger.Fatal("pipeline halted", zap.Error(runErr))
	}
	return summary
}

func printSummary(w io.Writer, s pipeline.Summary) {
	fmt.Fprintf(w, "run %s: %d found, %d processed, %d quarantined, %d skipped\n",
		s.RunID, s.Total, s.Processed, s.Quarantined, s.Skipped)
	if s.Interrupted {
		fmt.Fprintf(w, "interrupted with %d documents left in the source directory\n", s.Total-len(s.Outcomes))
	}
	for _, o := range s.Outcomes {
		switch {
		case o.Err != nil:
			fmt.Fprintf(w, "  quarantined %s at %s: %s\n", o.Document, o.Stage, o.Reason)
		case o.Reason != "":
			fmt.Fprintf(w, "  processed %s with a problem: %s\n", o.Document, o.Reason)
		}
	}
}

func report(ctx context.Context, w io.Writer, book *ledger.Ledger) error {
	entries, err := book.Unresolved(ctx)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(w, "no unresolved documents")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DOCUMENT\tSTATE\tSTAGE\tRUN\tREASON")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", e.Document, e.State, e.Stage, e.RunID, e.Reason)
	}
	return tw.Flush()
}
