package main

import (
	"bytes"
	"context"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"testing"

	"github.com/jonathan/logishift/internal/llm"
)

type MockLLMClient struct {
	GenerateContentFunc func(ctx context.Context, prompt string, tier llm.ModelTier) (string, error)
	GenerateJSONFunc    func(ctx context.Context, prompt string, tier llm.ModelTier) (string, error)
}

func (m *MockLLMClient) GenerateContent(ctx context.Context, prompt string, tier llm.ModelTier) (string, error) {
	if m.GenerateContentFunc != nil {
		return m.GenerateContentFunc(ctx, prompt, tier)
	}
	return "", nil
}

func (m *MockLLMClient) GenerateJSON(ctx context.Context, prompt string, tier llm.ModelTier) (string, error) {
	if m.GenerateJSONFunc != nil {
		return m.GenerateJSONFunc(ctx, prompt, tier)
	}
	return "[]", nil
}

func (m *MockLLMClient) GetModel(_ llm.ModelTier) string { return "mock-model" }

func (m *MockLLMClient) Close() error { return nil }

var articleIDPattern = regexp.MustCompile(`Article ID: (\d+)`)

// scoreByID answers a batch scoring prompt with the score for each local id.
func scoreByID(prompt string, scores map[int]int) (string, error) {
	var results []map[string]any
	for _, m := range articleIDPattern.FindAllStringSubmatch(prompt, -1) {
		id, _ := strconv.Atoi(m[1])
		results = append(results, map[string]any{
			"id": id, "score": scores[id], "reasoning": "logistics relevance", "relevance": "high",
		})
	}
	data, err := json.Marshal(results)
	return string(data), err
}

// clearEnv isolates a test from the developer's environment and .env file.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"GEMINI_API_KEY", "GOOGLE_GEMINI_API_KEY", "GOOGLE_AI_API_KEY", "OPENROUTER_API_KEY",
		"DATABASE_URL", "WP_URL", "WP_USERNAME", "WP_USER", "WP_APP_PASSWORD",
		"LOGISHIFT_FEEDS", "LOGISHIFT_LLM_PROVIDER", "LOGISHIFT_LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
}

// useMockClient swaps the provider factory for the duration of a test and
// records the models it was asked for.
func useMockClient(t *testing.T, client llm.Client) *llm.Config {
	t.Helper()
	seen := &llm.Config{}
	orig := newLLMClient
	newLLMClient = func(_ context.Context, models *llm.Config, _ string) (llm.Client, error) {
		*seen = *models
		return client, nil
	}
	t.Cleanup(func() { newLLMClient = orig })
	return seen
}

// execute runs the root command with args and returns stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func containsAll(s string, parts ...string) bool {
	for _, p := range parts {
		if !strings.Contains(s, p) {
			return false
		}
	}
	return true
}
