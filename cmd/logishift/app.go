package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jonathan/logishift/internal/config"
	"github.com/jonathan/logishift/internal/llm"
	"github.com/jonathan/logishift/internal/logging"
)

// errMissingAPIKey is returned when no key is configured for the provider.
var errMissingAPIKey = errors.New("GEMINI_API_KEY (or OPENROUTER_API_KEY with llm.provider openrouter) is required")

// newLLMClient builds the provider client. Tests replace it.
var newLLMClient = func(ctx context.Context, models *llm.Config, apiKey string) (llm.Client, error) {
	return llm.NewClient(ctx, models, apiKey)
}

// loadConfig reads the file named by the persistent --config flag.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// newLogger writes to the command's stderr; --verbose forces debug level.
func newLogger(cmd *cobra.Command, cfg *config.Config) zerolog.Logger {
	level := cfg.Log.Level
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = "debug"
	}
	return logging.New(cmd.ErrOrStderr(), level, cfg.Log.Pretty)
}

// buildClient creates the retrying model client for cfg.
func buildClient(ctx context.Context, cfg *config.Config, models *llm.Config) (llm.Client, error) {
	apiKey := cfg.APIKey()
	if apiKey == "" {
		return nil, errMissingAPIKey
	}
	client, err := newLLMClient(ctx, models, apiKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}
	return llm.WithRetry(client, cfg.RetryPolicy()), nil
}
