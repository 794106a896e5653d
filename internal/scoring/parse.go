package scoring

import (
	"encoding/json"

	"github.com/jonathan/logishift/internal/llm"
)

// Result is one decoded entry of a scoring answer.
type Result struct {
	// ID is nil when the entry carried no usable id.
	ID        *int
	Score     int
	Reasoning string
	Relevance string
}

// ParseResults decodes a scoring answer into entries. The answer may be
// fenced, may be a single object, or may wrap the list in an object such
// as {"articles": [...]}. Ids and scores are accepted as numbers or
// numeric strings; scores are clamped to 0..100.
func ParseResults(text string) ([]Result, error) {
	cleaned := llm.CleanJSONBlock(text)
	if cleaned == "" {
		return nil, &ParseError{Message: "empty response"}
	}

	var raw json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return nil, &ParseError{Message: "invalid JSON", Cause: err}
	}

	entries, err := llm.EntryList(raw)
	if err != nil {
		return nil, &ParseError{Message: "unexpected answer shape", Cause: err}
	}

	results := make([]Result, 0, len(entries))
	for _, entry := range entries {
		results = append(results, decodeEntry(entry))
	}
	return results, nil
}

func decodeEntry(entry map[string]json.RawMessage) Result {
	var r Result
	if id, ok := llm.LooseInt(entry["id"]); ok {
		r.ID = &id
	}
	if score, ok := llm.LooseInt(entry["score"]); ok {
		r.Score = clampScore(score)
	}
	r.Reasoning = llm.LooseString(entry["reasoning"])
	r.Relevance = llm.LooseString(entry["relevance"])
	return r
}

func clampScore(score int) int {
	switch {
	case score < 0:
		return 0
	case score > 100:
		return 100
	default:
		return score
	}
}
