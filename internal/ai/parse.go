package ai

import (
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"strings"
)

var fencedBlock = regexp.MustCompile("(?s)```[ \t]*(?:json|JSON)?[ \t]*\r?\n?(.*?)```")

// ParseJSON extracts the first JSON value from free text. It tries, in order:
// the whole text, fenced code blocks, the first top-level array, the first
// top-level object.
func ParseJSON(text string) (any, error) {
	for _, candidate := range jsonCandidates(text) {
		var out any
		if err := json.Unmarshal([]byte(candidate), &out); err == nil {
			return out, nil
		}
	}
	return nil, unparsable(text)
}

// DecodeJSON is ParseJSON into a typed target. Candidates that are valid JSON
// but do not fit the target type are skipped. Each candidate decodes into a
// fresh value, so v only ever holds one complete candidate.
func DecodeJSON(text string, v any) error {
	target := reflect.ValueOf(v)
	if target.Kind() != reflect.Pointer || target.IsNil() {
		return fmt.Errorf("decode json: target must be a non-nil pointer, got %T", v)
	}
	for _, candidate := range jsonCandidates(text) {
		fresh := reflect.New(target.Type().Elem())
		if err := json.Unmarshal([]byte(candidate), fresh.Interface()); err == nil {
			target.Elem().Set(fresh.Elem())
			return nil
		}
	}
	return unparsable(text)
}

func unparsable(text string) error {
	preview := strings.TrimSpace(text)
	if len(preview) > 80 {
		preview = preview[:80] + "..."
	}
	return fmt.Errorf("%w: %q", ErrUnparsableResponse, preview)
}

// jsonCandidates lists syntactically valid JSON snippets in stage order.
func jsonCandidates(text string) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	var out []string
	if json.Valid([]byte(trimmed)) {
		out = append(out, trimmed)
	}
	for _, m := range fencedBlock.FindAllStringSubmatch(trimmed, -1) {
		block := strings.TrimSpace(m[1])
		if block != "" && json.Valid([]byte(block)) {
			out = append(out, block)
		}
	}
	arrays, objects := topLevelSegments(trimmed)
	out = append(out, arrays...)
	out = append(out, objects...)
	return out
}

// topLevelSegments scans for balanced [...] and {...} spans that are valid
// JSON and not nested inside another valid span.
func topLevelSegments(text string) (arrays, objects []string) {
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c != '[' && c != '{' {
			continue
		}
		end := balancedEnd(text, i)
		if end < 0 {
			continue
		}
		segment := text[i : end+1]
		if !json.Valid([]byte(segment)) {
			continue
		}
		if c == '[' {
			arrays = append(arrays, segment)
		} else {
			objects = append(objects, segment)
		}
		i = end
	}
	return arrays, objects
}

// balancedEnd returns the index of the bracket closing the one at start, or
// -1. Brackets inside JSON strings are ignored.
func balancedEnd(text string, start int) int {
	stack := make([]byte, 0, 8)
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '[':
			stack = append(stack, ']')
		case '{':
			stack = append(stack, '}')
		case ']', '}':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				return -1
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i
			}
		}
	}
	return -1
}
