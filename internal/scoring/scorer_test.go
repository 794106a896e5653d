package scoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/logishift/internal/llm"
	"github.com/jonathan/logishift/internal/types"
)

var titleLine = regexp.MustCompile(`(?m)^Title: (.+)$`)

func makeArticles(n int) []types.CandidateArticle {
	articles := make([]types.CandidateArticle, n)
	for i := range articles {
		articles[i] = types.CandidateArticle{
			Title:   fmt.Sprintf("Article %d", i),
			URL:     fmt.Sprintf("https://example.com/%d", i),
			Source:  "freightwaves",
			Summary: "Warehouse automation news",
		}
	}
	return articles
}

func isBatchPrompt(prompt string) bool {
	return strings.Contains(prompt, "Article ID:")
}

// scoreMock answers batch prompts with batchFn and single prompts with a
// fixed score, counting the single calls per title.
type scoreMock struct {
	batchFn     func(prompt string) (string, error)
	singleErr   error
	singleScore int
	batchCalls  int
	singleCalls map[string]int
}

func (m *scoreMock) client() *MockLLMClient {
	m.singleCalls = map[string]int{}
	return &MockLLMClient{
		GenerateJSONFunc: func(_ context.Context, prompt string, _ llm.ModelTier) (string, error) {
			if isBatchPrompt(prompt) {
				m.batchCalls++
				return m.batchFn(prompt)
			}
			title := titleLine.FindStringSubmatch(prompt)[1]
			m.singleCalls[title]++
			if m.singleErr != nil {
				return "", m.singleErr
			}
			return fmt.Sprintf(`{"score": %d, "reasoning": "single", "relevance": "medium"}`, m.singleScore), nil
		},
	}
}

func (m *scoreMock) totalSingleCalls() int {
	total := 0
	for _, n := range m.singleCalls {
		total += n
	}
	return total
}

type entry struct {
	ID        *int   `json:"id,omitempty"`
	Score     int    `json:"score"`
	Reasoning string `json:"reasoning"`
	Relevance string `json:"relevance"`
}

func answer(entries []entry) string {
	data, _ := json.Marshal(entries)
	return string(data)
}

func idp(i int) *int { return &i }

func TestScoreBatch_ScrambledIDsMatchByID(t *testing.T) {
	articles := makeArticles(5)
	startID := 20
	m := &scoreMock{batchFn: func(string) (string, error) {
		var entries []entry
		for _, id := range []int{24, 22, 20, 23, 21} {
			entries = append(entries, entry{ID: idp(id), Score: id + 50, Reasoning: fmt.Sprintf("r%d", id), Relevance: "high"})
		}
		return answer(entries), nil
	}}

	scored := New(m.client()).ScoreBatch(context.Background(), articles, startID)

	require.Len(t, scored, 5)
	for i, s := range scored {
		assert.Equal(t, articles[i].Title, s.Title)
		assert.Equal(t, startID+i+50, s.Score)
		assert.Equal(t, fmt.Sprintf("r%d", startID+i), s.Reasoning)
		assert.Equal(t, types.RelevanceHigh, s.Relevance)
	}
	assert.Equal(t, 0, m.totalSingleCalls())
}

func TestScoreBatch_NoIDsMapsPositionally(t *testing.T) {
	articles := makeArticles(5)
	m := &scoreMock{batchFn: func(string) (string, error) {
		var entries []entry
		for i := 0; i < 5; i++ {
			entries = append(entries, entry{Score: (i + 1) * 10, Relevance: "low"})
		}
		return "```json\n" + answer(entries) + "\n```", nil
	}}

	scored := New(m.client()).ScoreBatch(context.Background(), articles, 0)

	require.Len(t, scored, 5)
	for i, s := range scored {
		assert.Equal(t, articles[i], s.CandidateArticle)
		assert.Equal(t, (i+1)*10, s.Score)
	}
	assert.Equal(t, 0, m.totalSingleCalls())
}

func TestScoreBatch_PartialCoverageScoresMissingOnce(t *testing.T) {
	articles := makeArticles(5)
	m := &scoreMock{
		singleScore: 33,
		batchFn: func(string) (string, error) {
			var entries []entry
			for _, id := range []int{0, 1, 3, 4} {
				entries = append(entries, entry{ID: idp(id), Score: 80, Relevance: "high"})
			}
			return answer(entries), nil
		},
	}

	scored := New(m.client()).ScoreBatch(context.Background(), articles, 0)

	require.Len(t, scored, 5)
	assert.Equal(t, 1, m.totalSingleCalls())
	assert.Equal(t, 1, m.singleCalls["Article 2"])
	assert.Equal(t, 33, scored[2].Score)
	for _, i := range []int{0, 1, 3, 4} {
		assert.Equal(t, 80, scored[i].Score)
	}
}

func TestScoreBatch_BatchFailureScoresEachArticle(t *testing.T) {
	articles := makeArticles(4)
	m := &scoreMock{
		singleScore: 61,
		batchFn: func(string) (string, error) {
			return "", errors.New("connection reset")
		},
	}

	scored := New(m.client()).ScoreBatch(context.Background(), articles, 0)

	require.Len(t, scored, 4)
	assert.Equal(t, 1, m.batchCalls)
	assert.Equal(t, 4, m.totalSingleCalls())
	for i, s := range scored {
		assert.Equal(t, articles[i].Title, s.Title)
		assert.Equal(t, 61, s.Score)
	}
}

func TestScoreBatch_UnparseableAnswerScoresEachArticle(t *testing.T) {
	articles := makeArticles(3)
	m := &scoreMock{
		singleScore: 40,
		batchFn: func(string) (string, error) {
			return "Sorry, here are the scores: first one is good", nil
		},
	}

	scored := New(m.client()).ScoreBatch(context.Background(), articles, 0)

	require.Len(t, scored, 3)
	assert.Equal(t, 3, m.totalSingleCalls())
}

func TestScoreBatch_SingleFailureYieldsSentinel(t *testing.T) {
	articles := makeArticles(2)
	m := &scoreMock{
		singleErr: errors.New("model unavailable"),
		batchFn: func(string) (string, error) {
			return "", errors.New("boom")
		},
	}

	scored := New(m.client()).ScoreBatch(context.Background(), articles, 0)

	require.Len(t, scored, 2)
	for i, s := range scored {
		assert.Equal(t, articles[i].Title, s.Title)
		assert.Equal(t, 0, s.Score)
		assert.Equal(t, types.RelevanceError, s.Relevance)
		assert.True(t, strings.HasPrefix(s.Reasoning, "Error: "), s.Reasoning)
		assert.Contains(t, s.Reasoning, "model unavailable")
	}
}

func TestScoreBatch_TotalCoverage(t *testing.T) {
	scenarios := map[string]func(n int) func(string) (string, error){
		"well formed": func(n int) func(string) (string, error) {
			return func(string) (string, error) {
				var entries []entry
				for i := 0; i < n; i++ {
					entries = append(entries, entry{ID: idp(100 + i), Score: 90})
				}
				return answer(entries), nil
			}
		},
		"reversed": func(n int) func(string) (string, error) {
			return func(string) (string, error) {
				var entries []entry
				for i := n - 1; i >= 0; i-- {
					entries = append(entries, entry{ID: idp(100 + i), Score: 90})
				}
				return answer(entries), nil
			}
		},
		"missing last": func(n int) func(string) (string, error) {
			return func(string) (string, error) {
				var entries []entry
				for i := 0; i < n-1; i++ {
					entries = append(entries, entry{ID: idp(100 + i), Score: 90})
				}
				return answer(entries), nil
			}
		},
		"empty list": func(int) func(string) (string, error) {
			return func(string) (string, error) { return "[]", nil }
		},
		"throws": func(int) func(string) (string, error) {
			return func(string) (string, error) { return "", errors.New("429 quota") }
		},
	}

	for name, scenario := range scenarios {
		for n := 1; n <= 10; n++ {
			t.Run(fmt.Sprintf("%s/%d", name, n), func(t *testing.T) {
				articles := makeArticles(n)
				m := &scoreMock{singleScore: 10, batchFn: scenario(n)}

				scored := New(m.client()).ScoreBatch(context.Background(), articles, 100)

				require.Len(t, scored, n)
				for i := range articles {
					assert.Equal(t, articles[i], scored[i].CandidateArticle)
				}
			})
		}
	}
}

func TestScoreBatch_Empty(t *testing.T) {
	m := &scoreMock{batchFn: func(string) (string, error) {
		t.Fatal("no call expected")
		return "", nil
	}}

	scored := New(m.client()).ScoreBatch(context.Background(), nil, 0)
	assert.NotNil(t, scored)
	assert.Empty(t, scored)
}

func TestScoreAll_ChunksIntoWindows(t *testing.T) {
	articles := makeArticles(12)
	var batchPrompts []string
	m := &scoreMock{batchFn: func(prompt string) (string, error) {
		batchPrompts = append(batchPrompts, prompt)
		var entries []entry
		for _, match := range regexp.MustCompile(`Article ID: (\d+)`).FindAllStringSubmatch(prompt, -1) {
			var id int
			_, _ = fmt.Sscan(match[1], &id)
			entries = append(entries, entry{ID: idp(id), Score: id})
		}
		return answer(entries), nil
	}}

	scored := New(m.client()).ScoreAll(context.Background(), articles)

	require.Len(t, scored, 12)
	require.Len(t, batchPrompts, 2)
	assert.Equal(t, 10, strings.Count(batchPrompts[0], "Article ID:"))
	assert.Equal(t, 2, strings.Count(batchPrompts[1], "Article ID:"))
	assert.Contains(t, batchPrompts[1], "Article ID: 10\n")
	assert.Contains(t, batchPrompts[1], "Article ID: 11\n")
	for i, s := range scored {
		assert.Equal(t, i, s.Score)
		assert.Equal(t, articles[i].Title, s.Title)
	}
}

func TestScoreAll_OneWindowFailingDoesNotAffectOthers(t *testing.T) {
	articles := makeArticles(15)
	m := &scoreMock{
		singleScore: 5,
		batchFn: func(prompt string) (string, error) {
			if strings.Contains(prompt, "Article ID: 0\n") {
				return "", errors.New("server error")
			}
			var entries []entry
			for id := 10; id < 15; id++ {
				entries = append(entries, entry{ID: idp(id), Score: 77})
			}
			return answer(entries), nil
		},
	}

	scored := New(m.client()).ScoreAll(context.Background(), articles)

	require.Len(t, scored, 15)
	assert.Equal(t, 10, m.totalSingleCalls())
	for i := 10; i < 15; i++ {
		assert.Equal(t, 77, scored[i].Score)
	}
}

func TestNew_Options(t *testing.T) {
	s := New(&MockLLMClient{}, WithBatchSize(3), WithTier(llm.TierLite), WithBatchSize(0))
	assert.Equal(t, 3, s.BatchSize())
	assert.Equal(t, llm.TierLite, s.tier)
}

func TestScoreOne_UsesSingleAnswer(t *testing.T) {
	client := &MockLLMClient{
		GenerateJSONFunc: func(_ context.Context, prompt string, tier llm.ModelTier) (string, error) {
			assert.False(t, isBatchPrompt(prompt))
			assert.Contains(t, prompt, "Source: freightwaves")
			assert.Equal(t, llm.TierStandard, tier)
			return `{"score": 86, "reasoning": "Must read", "relevance": "HIGH"}`, nil
		},
	}

	scored := New(client).ScoreOne(context.Background(), makeArticles(1)[0])

	assert.Equal(t, 86, scored.Score)
	assert.Equal(t, "Must read", scored.Reasoning)
	assert.Equal(t, types.RelevanceHigh, scored.Relevance)
}

func TestScoreBatch_ModelErrorLabelIsNotTheSentinel(t *testing.T) {
	articles := makeArticles(2)
	m := &scoreMock{batchFn: func(string) (string, error) {
		return answer([]entry{
			{ID: idp(0), Score: 85, Reasoning: "port automation", Relevance: "error"},
			{ID: idp(1), Score: 60, Reasoning: "trade policy", Relevance: "medium"},
		}), nil
	}}

	scored := New(m.client()).ScoreBatch(context.Background(), articles, 0)

	require.Len(t, scored, 2)
	assert.Equal(t, 85, scored[0].Score)
	assert.Equal(t, types.RelevanceLow, scored[0].Relevance)
	assert.Equal(t, types.RelevanceMedium, scored[1].Relevance)
	assert.Equal(t, 0, m.totalSingleCalls())
}
