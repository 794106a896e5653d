package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/jonathan/logishift/internal/classify"
	"github.com/jonathan/logishift/internal/cms"
	"github.com/jonathan/logishift/internal/collector"
	"github.com/jonathan/logishift/internal/config"
	"github.com/jonathan/logishift/internal/db"
	"github.com/jonathan/logishift/internal/dedup"
	"github.com/jonathan/logishift/internal/fetch"
	"github.com/jonathan/logishift/internal/generation"
	"github.com/jonathan/logishift/internal/linking"
	"github.com/jonathan/logishift/internal/llm"
	"github.com/jonathan/logishift/internal/observability"
	"github.com/jonathan/logishift/internal/pipeline"
	"github.com/jonathan/logishift/internal/scoring"
	"github.com/jonathan/logishift/internal/summarize"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the content pipeline end to end",
		Long: `Collects recent articles from the configured feeds, scores them, then for the
best candidates classifies, checks for duplicates, generates and publishes an
article until --limit articles have been generated.

Configuration can be loaded with --config. Command-line flags override config
file values.`,
		RunE: runPipelineCmd,
	}
	addRunFlags(cmd.Flags())
	return cmd
}

func addRunFlags(fs *pflag.FlagSet) {
	fs.Int("days", 0, "Collect articles from the last N days")
	fs.Int("hours", collector.DefaultHours, "Collect articles from the last N hours (overrides --days)")
	fs.Int("threshold", 70, "Minimum relevance score for generation")
	fs.Int("limit", 2, "Maximum number of articles to generate")
	fs.Int("score-limit", 0, "Score only the first N collected articles (0 scores all)")
	fs.Bool("dry-run", false, "Generate without publishing")
	fs.Bool("use-browser", false, "Render pages with headless Chrome when static extraction is too short")
}

// applyRunFlags copies explicitly set flags over the configured values.
// --hours wins over --days; setting only --days clears the hour window.
func applyRunFlags(fs *pflag.FlagSet, cfg *config.Config) error {
	intFlags := map[string]*int{
		"threshold":   &cfg.Pipeline.Threshold,
		"limit":       &cfg.Pipeline.Limit,
		"score-limit": &cfg.Pipeline.ScoreLimit,
	}
	for name, dst := range intFlags {
		if fs.Changed(name) {
			v, err := fs.GetInt(name)
			if err != nil {
				return err
			}
			*dst = v
		}
	}

	switch {
	case fs.Changed("hours"):
		hours, err := fs.GetInt("hours")
		if err != nil {
			return err
		}
		cfg.Pipeline.Hours = hours
		cfg.Pipeline.Days = 0
	case fs.Changed("days"):
		days, err := fs.GetInt("days")
		if err != nil {
			return err
		}
		cfg.Pipeline.Days = days
		cfg.Pipeline.Hours = 0
	}

	if fs.Changed("use-browser") {
		useBrowser, err := fs.GetBool("use-browser")
		if err != nil {
			return err
		}
		cfg.Fetch.UseBrowser = useBrowser
	}

	return cfg.Pipeline.Validate()
}

// runOptions translates the merged configuration into pipeline options.
func runOptions(cfg *config.Config, sources []collector.Source, dryRun bool) pipeline.Options {
	return pipeline.Options{
		Sources:        sources,
		Window:         collector.Window{Days: cfg.Pipeline.Days, Hours: cfg.Pipeline.Hours},
		Threshold:      cfg.Pipeline.Threshold,
		Limit:          cfg.Pipeline.Limit,
		ScoreLimit:     cfg.Pipeline.ScoreLimit,
		DryRun:         dryRun,
		ExistingTitles: cfg.Pipeline.ExistingTitles,
	}
}

func loadSources(cfg *config.Config) ([]collector.Source, error) {
	if cfg.FeedsFile == "" {
		return collector.DefaultSources, nil
	}
	return collector.LoadSources(cfg.FeedsFile)
}

func runPipelineCmd(cmd *cobra.Command, _ []string) error {
	// Step 1: Load config and merge flags
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := applyRunFlags(cmd.Flags(), cfg); err != nil {
		return err
	}
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	if !dryRun && (cfg.WordPress.URL == "" || cfg.WordPress.Username == "" || cfg.WordPress.AppPassword == "") {
		return errors.New("WP_URL, WP_USERNAME and WP_APP_PASSWORD are required unless --dry-run is set")
	}

	sources, err := loadSources(cfg)
	if err != nil {
		return fmt.Errorf("failed to load feed sources: %w", err)
	}

	logger := newLogger(cmd, cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Step 2: Build components
	client, err := buildClient(ctx, cfg, cfg.LLMModels())
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	deps := buildDeps(cfg, client, logger)

	// Step 3: Optional run ledger
	if cfg.DatabaseURL != "" {
		database, err := openLedger(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to connect to database, continuing without database persistence")
		} else {
			defer database.Close()
			deps.Ledger = database
		}
	}

	orchestrator, err := pipeline.New(deps, logger)
	if err != nil {
		return err
	}

	// Step 4: Run
	opts := runOptions(cfg, sources, dryRun)
	opts.OnProgress = func(e pipeline.ProgressEvent) {
		logger.Debug().Str("step", e.Step).Msg(e.Message)
	}
	report, err := orchestrator.Run(ctx, opts)
	observability.NewPrinter(cmd.OutOrStdout()).PrintRunReport(report)
	if err != nil {
		return fmt.Errorf("pipeline run failed: %w", err)
	}
	return nil
}

// buildDeps wires every pipeline collaborator except the ledger.
func buildDeps(cfg *config.Config, client llm.Client, logger zerolog.Logger) pipeline.Deps {
	wp := cms.NewWordPressClient(cfg.WordPress.URL, cfg.WordPress.Username, cfg.WordPress.AppPassword)
	classifier := classify.New(client, logger)

	fetchOpts := fetch.DefaultOptions()
	fetchOpts.Timeout = cfg.Fetch.Timeout
	extractorOpts := []fetch.ExtractorOption{fetch.WithOptions(fetchOpts), fetch.WithLogger(logger)}
	if cfg.Fetch.UseBrowser {
		extractorOpts = append(extractorOpts, fetch.WithRenderer(fetch.ChromeRenderer(cfg.Fetch.BrowserTimeout, logger)))
	}

	return pipeline.Deps{
		Collector:  collector.New(collector.WithLogger(logger)),
		Scorer:     scoring.New(client, scoring.WithBatchSize(cfg.Scoring.BatchSize), scoring.WithLogger(logger)),
		Classifier: classifier,
		Extractor:  fetch.NewExtractor(extractorOpts...),
		Summarizer: summarize.New(client),
		Dedup:      dedup.New(client, dedup.WithLogger(logger)),
		Generator: generation.New(client,
			generation.WithLinks(linking.NewSuggester(wp, client, logger)),
			generation.WithTaxonomer(classifier),
			generation.WithLogger(logger),
		),
		Publisher: cms.NewPublisher(wp, cfg.WordPress.PostStatus, logger),
		Posts:     wp,
	}
}

func openLedger(ctx context.Context, databaseURL string) (*db.DB, error) {
	database, err := db.Connect(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := database.EnsureSchema(ctx); err != nil {
		database.Close()
		return nil, err
	}
	return database, nil
}
