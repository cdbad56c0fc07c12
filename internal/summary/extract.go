package summary

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	ErrNoJSONObject = errors.New("output has no JSON object")

	fencedBlock = regexp.MustCompile("(?is)```(?:json)?\\s*(.*?)\\s*```")
)

// ExtractJSON pulls the JSON object text out of free-form model output: the
// body of the first fenced code block if there is one, then the span from the
// first '{' to the last '}'.
func ExtractJSON(raw string) (string, error) {
	text := strings.TrimSpace(raw)
	if m := fencedBlock.FindStringSubmatch(text); m != nil && strings.TrimSpace(m[1]) != "" {
		text = strings.TrimSpace(m[1])
	}
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return "", ErrNoJSONObject
	}
	return text[start : end+1], nil
}

// ParseObject extracts and decodes the object. The returned text is the
// compacted JSON that gets stored.
func ParseObject(raw string) (map[string]any, string, error) {
	text, err := ExtractJSON(raw)
	if err != nil {
		return nil, "", err
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err != nil {
		return nil, "", fmt.Errorf("decode json object: %w", err)
	}
	if obj == nil {
		return nil, "", ErrNoJSONObject
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(text)); err != nil {
		return nil, "", err
	}
	return obj, buf.String(), nil
}

// stringField returns obj[key] when it is a string, "" otherwise.
func stringField(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return s
}

func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
