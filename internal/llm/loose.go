package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Models are inconsistent about JSON types: ids and scores arrive as numbers
// or numeric strings, booleans as true or "true". The Loose* helpers decode a
// single field tolerantly and report whether a usable value was present.

// LooseInt decodes a number or numeric string, rounding fractions.
func LooseInt(raw json.RawMessage) (int, bool) {
	if len(raw) == 0 {
		return 0, false
	}

	var num float64
	if err := json.Unmarshal(raw, &num); err == nil {
		return int(math.Round(num)), true
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int(math.Round(f)), true
	}
	return 0, false
}

// LooseString decodes a string field, returning "" for anything else.
func LooseString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

// LooseBool decodes a boolean or a "true"/"false"/"yes"/"no" string.
func LooseBool(raw json.RawMessage) (bool, bool) {
	if len(raw) == 0 {
		return false, false
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return false, false
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes":
		return true, true
	case "false", "no":
		return false, true
	}
	return false, false
}

// listKeys are the wrappers models put around a result list when the
// provider forces a JSON object response.
var listKeys = []string{"articles", "results", "scores", "items", "links", "candidates"}

// EntryList decodes a model answer that should be a list of objects. It
// accepts a bare array, a single entry object (one with a "score" field) or
// an object wrapping the list under a known key or as its only array field.
func EntryList(raw []byte) ([]map[string]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, errors.New("empty JSON document")
	}

	switch trimmed[0] {
	case '[':
		var entries []map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return nil, fmt.Errorf("array entries are not objects: %w", err)
		}
		return entries, nil
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return nil, fmt.Errorf("invalid object: %w", err)
		}
		if _, ok := obj["score"]; ok {
			return []map[string]json.RawMessage{obj}, nil
		}
		for _, key := range listKeys {
			if inner, ok := obj[key]; ok {
				return EntryList(inner)
			}
		}
		var only json.RawMessage
		arrays := 0
		for _, v := range obj {
			if v := bytes.TrimSpace(v); len(v) > 0 && v[0] == '[' {
				only = v
				arrays++
			}
		}
		if arrays == 1 {
			return EntryList(only)
		}
		return nil, errors.New("object has neither a score nor a result list")
	default:
		return nil, errors.New("expected a JSON array or object")
	}
}
