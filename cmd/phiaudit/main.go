package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/researchflow/phi-sentinel/internal/audit"
	"github.com/researchflow/phi-sentinel/internal/batch"
	"github.com/researchflow/phi-sentinel/internal/config"
	"github.com/researchflow/phi-sentinel/internal/elevate"
	"github.com/researchflow/phi-sentinel/internal/logger"
	"github.com/researchflow/phi-sentinel/internal/ner"
	"github.com/researchflow/phi-sentinel/internal/phi"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Configuration file path")
		inputFile   = flag.String("input", "", "Input snippet dataset (CSV, Parquet, or JSON lines)")
		tierName    = flag.String("tier", "output_guard", "Pattern tier: high_confidence or output_guard")
		workers     = flag.Int("workers", 0, "Number of worker goroutines (0 = GOMAXPROCS)")
		topN        = flag.Int("top-n", 10, "Number of highest-risk snippets to list in the report")
		reportFile  = flag.String("report", "", "Write the Markdown report to this file instead of stdout")
		exportFile  = flag.String("export", "", "Export findings to this Parquet file")
		useEntities = flag.Bool("entities", false, "Run the contextual elevator against the configured NER service")
		recordAudit = flag.Bool("record", false, "Record scan outcomes in the audit ledger")
	)
	flag.Parse()

	if *inputFile == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s --input abstracts.csv --top-n 20\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --input pages.parquet --tier high_confidence --export findings.parquet\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --input transcripts.jsonl --entities --record\n", os.Args[0])
		os.Exit(1)
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting PHI-Sentinel audit scan",
		zap.String("config", *configPath),
		zap.String("input", *inputFile))

	tier := phi.Tier(*tierName)
	if tier != phi.TierHighConfidence && tier != phi.TierOutputGuard {
		log.Fatal("Unknown tier", zap.String("tier", *tierName))
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("Received shutdown signal, cancelling scan...")
		cancel()
	}()

	// Build the detection engine
	library, err := phi.NewLibrary(cfg.Engine.PatternSpecs(), log.WithComponent("phi").Logger)
	if err != nil {
		log.Fatal("Failed to build pattern library", zap.Error(err))
	}

	scanner := phi.NewScanner(library, phi.ScannerConfig{
		MaxTextLength: cfg.Engine.MaxTextLength,
	}, log.WithComponent("phi").Logger)

	elevator := elevate.NewElevator(nil, log.WithComponent("elevate").Logger)

	var nerClient *ner.Client
	if *useEntities {
		if !cfg.NER.Enabled {
			log.Fatal("--entities requires ner.enabled in the configuration")
		}
		nerClient = ner.NewClient(ner.Config{
			Enabled:  cfg.NER.Enabled,
			Endpoint: cfg.NER.Endpoint,
			Timeout:  cfg.NER.Timeout,
		}, log.WithComponent("ner").Logger)
	}

	aggregator := batch.NewAggregator(scanner, elevator, nerClient, batch.Config{
		Workers:    *workers,
		ReportTopN: *topN,
	}, log.WithComponent("batch").Logger)

	// Load and scan the dataset
	snippets, err := batch.ReadSnippets(*inputFile, log.Logger)
	if err != nil {
		log.Fatal("Failed to read snippet dataset", zap.Error(err))
	}
	if len(snippets) == 0 {
		log.Fatal("Dataset contains no snippets", zap.String("input", *inputFile))
	}

	result := aggregator.ScanBatch(ctx, snippets, batch.ScanOptions{
		Tier:        tier,
		UseEntities: *useEntities,
	})

	log.Info("Audit scan completed",
		zap.Int("total_snippets", result.TotalSnippets),
		zap.Int("snippets_with_phi", result.SnippetsWithPhi),
		zap.Int("total_findings", result.TotalFindings),
		zap.String("overall_risk", string(result.OverallRisk)),
		zap.Int64("duration_ms", result.ProcessingDurationMs))

	// Render the report
	report := batch.RenderReport(result, *topN)
	if *reportFile != "" {
		if err := os.WriteFile(*reportFile, []byte(report), 0o644); err != nil {
			log.Fatal("Failed to write report", zap.Error(err))
		}
		log.Info("Report written", zap.String("path", *reportFile))
	} else {
		fmt.Print(report)
	}

	// Export findings to Parquet
	if *exportFile != "" {
		if err := batch.ExportFindings(result, library.Version(), *exportFile, log.Logger); err != nil {
			log.Fatal("Failed to export findings", zap.Error(err))
		}
	}

	// Record outcomes in the audit ledger
	if *recordAudit {
		if !cfg.Audit.Enabled {
			log.Fatal("--record requires audit.enabled in the configuration")
		}
		store, err := audit.NewStore(&audit.Config{
			DatabaseURL:     cfg.Audit.DatabaseURL,
			MaxOpenConns:    cfg.Audit.MaxOpenConns,
			MaxIdleConns:    cfg.Audit.MaxIdleConns,
			ConnMaxLifetime: cfg.Audit.ConnMaxLifetime,
		}, log.WithComponent("audit").Logger)
		if err != nil {
			log.Fatal("Failed to connect to audit ledger", zap.Error(err))
		}
		defer store.Close()

		if err := store.RecordBatch(ctx, result, library.Version()); err != nil {
			log.Fatal("Failed to record scan outcomes", zap.Error(err))
		}
		log.Info("Scan outcomes recorded", zap.Int("snippets", result.TotalSnippets))
	}
}
