package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jonathan/logishift/internal/llm"
	"github.com/jonathan/logishift/internal/observability"
	"github.com/jonathan/logishift/internal/schemas"
	"github.com/jonathan/logishift/internal/scoring"
	"github.com/jonathan/logishift/internal/types"
)

type scoreOptions struct {
	input     string
	output    string
	threshold int
	model     string
}

func newScoreCmd() *cobra.Command {
	opts := &scoreOptions{}
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score candidate articles for logistics relevance",
		Long: `Scores a JSON array of candidate articles in batches, prints the articles at or
above the threshold and optionally writes the full score report as JSON.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runScore(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.input, "input", "i", "", "Path to a JSON array of candidate articles (required)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Path to write the score report JSON")
	cmd.Flags().IntVarP(&opts.threshold, "threshold", "t", 80, "Minimum score to report")
	cmd.Flags().StringVarP(&opts.model, "model", "m", "", "Model for scoring (overrides the standard tier)")

	if err := cmd.MarkFlagRequired("input"); err != nil {
		panic(fmt.Sprintf("failed to mark input flag as required: %v", err))
	}
	return cmd
}

func runScore(cmd *cobra.Command, opts *scoreOptions) error {
	if opts.threshold < 0 || opts.threshold > 100 {
		return fmt.Errorf("--threshold must be between 0 and 100, got %d", opts.threshold)
	}

	// 1. Load and validate candidates
	content, err := os.ReadFile(opts.input)
	if err != nil {
		return fmt.Errorf("failed to read input file %s: %w", opts.input, err)
	}
	if err := schemas.ValidateCandidates(content); err != nil {
		return fmt.Errorf("invalid input %s: %w", opts.input, err)
	}
	var articles []types.CandidateArticle
	if err := json.Unmarshal(content, &articles); err != nil {
		return fmt.Errorf("failed to unmarshal candidates JSON: %w", err)
	}
	for i := range articles {
		if err := articles[i].Validate(); err != nil {
			return fmt.Errorf("invalid candidate %d (%s): %w", i, articles[i].Title, err)
		}
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cmd, cfg)

	// 2. Build the scorer
	models := cfg.LLMModels()
	if opts.model != "" {
		models = models.WithModel(llm.TierStandard, opts.model)
	}
	client, err := buildClient(cmd.Context(), cfg, models)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	scorer := scoring.New(client,
		scoring.WithBatchSize(cfg.Scoring.BatchSize),
		scoring.WithLogger(logger),
	)

	logger.Info().
		Int("articles", len(articles)).
		Int("batch_size", scorer.BatchSize()).
		Str("model", models.GetModel(llm.TierStandard)).
		Msg("scoring articles")

	// 3. Score, filter and sort
	report := scoring.BuildReport(scorer.ScoreAll(cmd.Context(), articles), opts.threshold)
	observability.NewPrinter(cmd.OutOrStdout()).PrintScoreReport(&report)

	if opts.output == "" {
		return nil
	}

	// 4. Write the report
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal score report: %w", err)
	}
	if err := schemas.ValidateScoreReport(data); err != nil {
		// Output validation is a safety check; the report is still written.
		logger.Warn().Err(err).Msg("score report failed schema validation")
	}

	if dir := filepath.Dir(opts.output); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(opts.output, data, 0o644); err != nil {
		return fmt.Errorf("failed to write score report to %s: %w", opts.output, err)
	}
	logger.Info().Str("path", opts.output).Msg("score report written")
	return nil
}
