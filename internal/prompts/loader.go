// Package prompts holds the model prompts of the pipeline. Each JSON file
// maps a prompt name to its text; placeholders are written {{.Name}}.
package prompts

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strings"
	"sync"
)

//go:embed *.json
var files embed.FS

var placeholder = regexp.MustCompile(`\{\{\.([A-Za-z][A-Za-z0-9]*)\}\}`)

// catalog is every prompt file, parsed on first use.
var catalog = sync.OnceValues(func() (map[string]map[string]string, error) {
	names, err := fs.Glob(files, "*.json")
	if err != nil {
		return nil, err
	}
	out := make(map[string]map[string]string, len(names))
	for _, name := range names {
		data, err := files.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("failed to read prompt file %s: %w", name, err)
		}
		var set map[string]string
		if err := json.Unmarshal(data, &set); err != nil {
			return nil, fmt.Errorf("failed to parse prompt file %s: %w", name, err)
		}
		out[name] = set
	}
	return out, nil
})

// MissingDataError is returned by Render when a placeholder has no value.
type MissingDataError struct {
	Prompt string
	Keys   []string
}

func (e *MissingDataError) Error() string {
	return fmt.Sprintf("prompt %s: no value for %s", e.Prompt, strings.Join(e.Keys, ", "))
}

func file(filename string) (map[string]string, error) {
	all, err := catalog()
	if err != nil {
		return nil, err
	}
	set, ok := all[filename]
	if !ok {
		return nil, fmt.Errorf("unknown prompt file %s", filename)
	}
	return set, nil
}

// Get returns the raw text of a prompt, placeholders included.
func Get(filename, key string) (string, error) {
	set, err := file(filename)
	if err != nil {
		return "", err
	}
	text, ok := set[key]
	if !ok {
		return "", fmt.Errorf("prompt %q not found in %s", key, filename)
	}
	return text, nil
}

// Keys lists the prompt names in a file, sorted.
func Keys(filename string) ([]string, error) {
	set, err := file(filename)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Placeholders returns the distinct placeholder names of text in order of
// first appearance.
func Placeholders(text string) []string {
	var names []string
	seen := map[string]bool{}
	for _, m := range placeholder.FindAllStringSubmatch(text, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}

// Format substitutes data into text in one pass. Values are inserted
// verbatim; braces inside article text are never expanded. Placeholders
// without a value are left in place.
func Format(text string, data map[string]string) string {
	return placeholder.ReplaceAllStringFunc(text, func(m string) string {
		if v, ok := data[m[3:len(m)-2]]; ok {
			return v
		}
		return m
	})
}

// Render looks up a prompt and fills every placeholder from data.
func Render(filename, key string, data map[string]string) (string, error) {
	text, err := Get(filename, key)
	if err != nil {
		return "", err
	}
	var missing []string
	for _, name := range Placeholders(text) {
		if _, ok := data[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return "", &MissingDataError{Prompt: filename + "/" + key, Keys: missing}
	}
	return Format(text, data), nil
}
