package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Daserxqc/reportgen/internal/ai"
	"github.com/Daserxqc/reportgen/internal/config"
	"github.com/Daserxqc/reportgen/internal/database"
	"github.com/Daserxqc/reportgen/internal/evidence"
	"github.com/Daserxqc/reportgen/internal/quality"
	"github.com/Daserxqc/reportgen/internal/querygen"
	"github.com/Daserxqc/reportgen/internal/refine"
	"github.com/Daserxqc/reportgen/internal/report"
	"github.com/Daserxqc/reportgen/internal/scraper"
	"github.com/Daserxqc/reportgen/internal/search"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	topic := flag.String("topic", "", "Report topic (required)")
	outputDir := flag.String("output", "", "Report output directory (overrides config)")
	maxIterations := flag.Int("max-iterations", 0, "Search iteration budget (overrides config)")
	minScore := flag.Float64("min-score", 0, "Quality score threshold (overrides config)")
	listRuns := flag.Bool("runs", false, "List recent runs and exit")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("reportgen %s (built %s)\n", version, buildTime)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	if *outputDir != "" {
		cfg.Report.OutputDir = *outputDir
	}
	if *maxIterations > 0 {
		cfg.Loop.MaxIterations = *maxIterations
	}
	if *minScore > 0 {
		cfg.Loop.MinQualityScore = *minScore
	}

	// Initialize logger
	var logLevel slog.Level
	switch strings.ToLower(cfg.Logging.Level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	db, err := database.New(cfg.Database.Path)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if *listRuns {
		printRuns(db)
		os.Exit(0)
	}

	if *topic == "" {
		fmt.Fprintln(os.Stderr, "usage: reportgen -topic <topic> [-config config.yaml]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Starting reportgen", "version", version, "topic", *topic)

	if err := run(ctx, cfg, db, *topic); err != nil {
		slog.Error("Run failed", "topic", *topic, "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, db *database.DB, topic string) error {
	llm, err := buildLLM(cfg.LLM)
	if err != nil {
		return err
	}

	searcher, err := buildSearcher(cfg.Search)
	if err != nil {
		return err
	}

	evaluator, err := quality.NewEvaluator(llm, quality.DefaultDimensions(), cfg.Loop.MinQualityScore)
	if err != nil {
		return fmt.Errorf("building evaluator: %w", err)
	}

	loop, err := refine.New(evaluator, querygen.NewMapper(llm), searcher,
		cfg.Loop.MaxIterations, cfg.Loop.MinQualityScore)
	if err != nil {
		return fmt.Errorf("building refinement loop: %w", err)
	}

	// Initial collection pass, one seed query per category.
	set := evidence.NewSet()
	initial := querygen.InitialQueries(topic)
	slog.Info("Collecting initial evidence", "queries", len(initial))
	batch, err := searcher.Search(ctx, initial)
	if err != nil {
		slog.Warn("Initial collection came back empty, the loop will retry", "error", err)
	} else {
		added, err := set.Merge(batch)
		if err != nil {
			return fmt.Errorf("merging initial evidence: %w", err)
		}
		slog.Info("Initial evidence collected", "added", added, "total", set.TotalCount)
	}

	outcome, err := loop.Run(ctx, topic, set)
	if err != nil {
		if outcome != nil && outcome.State == refine.StateError {
			return fmt.Errorf("refinement failed: %w", err)
		}
		return err
	}
	slog.Info("Refinement finished",
		"state", outcome.State.String(),
		"iterations", outcome.Iterations,
		"score", outcome.FinalScore(),
		"evidence", outcome.Evidence.TotalCount)

	writer := report.NewWriter(llm, scraper.New())
	content, err := writer.Build(ctx, topic, outcome.Evidence)
	if err != nil {
		return fmt.Errorf("building report: %w", err)
	}

	path, err := report.Save(cfg.Report.OutputDir, topic, content)
	if err != nil {
		return err
	}
	slog.Info("Report written", "path", path)

	saved, err := db.SaveRun(database.Run{
		Topic:         topic,
		Iterations:    outcome.Iterations,
		FinalScore:    outcome.FinalScore(),
		TerminalState: outcome.State.String(),
		EvidenceCount: outcome.Evidence.TotalCount,
		ReportPath:    path,
	})
	if err != nil {
		// The report is already on disk; losing the run record is not fatal.
		slog.Warn("Failed to record run", "error", err)
		return nil
	}
	slog.Info("Run recorded", "id", saved.ID)
	return nil
}

func buildLLM(cfg config.LLMConfig) (*ai.Client, error) {
	switch cfg.Provider {
	case "dashscope":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("dashscope provider requires an API key (config llm.api_key or DASHSCOPE_API_KEY)")
		}
		return ai.NewClient(ai.NewDashScopeProvider(cfg.APIKey, cfg.BaseURL, cfg.Model)), nil
	case "ollama":
		return ai.NewClient(ai.NewOllamaProvider(cfg.OllamaURL, cfg.OllamaModel)), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
}

func buildSearcher(cfg config.SearchConfig) (*search.Multi, error) {
	var providers []search.Provider
	if cfg.TavilyAPIKey != "" {
		providers = append(providers, search.NewTavily(cfg.TavilyAPIKey, "basic"))
	}
	if cfg.BraveAPIKey != "" {
		providers = append(providers, search.NewBrave(cfg.BraveAPIKey))
	}
	if len(cfg.FeedURLs) > 0 {
		providers = append(providers, search.NewFeeds(cfg.FeedURLs))
	}
	if cfg.EnableArxiv {
		providers = append(providers, search.NewArxiv())
	}
	if len(providers) == 0 {
		return nil, fmt.Errorf("no search providers configured: set tavily_api_key, brave_api_key, feed_urls, or enable_arxiv")
	}
	slog.Info("Search providers configured", "count", len(providers))

	return search.NewMulti(providers, cfg.Workers,
		time.Duration(cfg.QueryTimeoutSeconds)*time.Second, cfg.MaxResultsPerQuery), nil
}

func printRuns(db *database.DB) {
	runs, err := db.ListRuns(20)
	if err != nil {
		slog.Error("Failed to list runs", "error", err)
		os.Exit(1)
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded yet.")
		return
	}
	for _, r := range runs {
		fmt.Printf("%s  %-30s  %-10s  score=%.1f  iterations=%d  evidence=%d  %s\n",
			r.CreatedAt.Format("2006-01-02 15:04"), r.Topic, r.TerminalState,
			r.FinalScore, r.Iterations, r.EvidenceCount, r.ReportPath)
	}
}
