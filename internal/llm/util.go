package llm

import "strings"

// CleanJSONBlock extracts the JSON payload from a model response.
// Code fences may appear anywhere in the text; without a fence, leading
// prose and trailing chatter around the outermost object or array are dropped.
func CleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)

	if start := strings.Index(text, "```"); start >= 0 {
		body := text[start+3:]
		if nl := strings.IndexByte(body, '\n'); nl >= 0 {
			if tag := strings.TrimSpace(body[:nl]); tag == "" || isLanguageTag(tag) {
				body = body[nl+1:]
			}
		} else {
			body = strings.TrimPrefix(body, "json")
		}
		if end := strings.Index(body, "```"); end >= 0 {
			body = body[:end]
		}
		return strings.TrimSpace(body)
	}

	return trimToJSON(text)
}

func isLanguageTag(s string) bool {
	return len(s) < 20 && !strings.ContainsAny(s, " {[")
}

// trimToJSON cuts text down to the span between the first opening bracket
// and the last matching closing bracket.
func trimToJSON(text string) string {
	obj := strings.IndexByte(text, '{')
	arr := strings.IndexByte(text, '[')

	start, closer := obj, byte('}')
	if arr >= 0 && (obj < 0 || arr < obj) {
		start, closer = arr, ']'
	}
	if start < 0 {
		return text
	}

	end := strings.LastIndexByte(text, closer)
	if end < start {
		return text
	}
	return text[start : end+1]
}
