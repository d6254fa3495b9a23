package skill

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// sortedKeys returns the map's keys in lexicographic order, so rendered
// prompts are stable across runs.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ParseError reports model output that could not be parsed into the skill's
// result contract. Raw carries the complete model output for the trace.
type ParseError struct {
	Skill string
	Raw   string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: unparseable model output: %v", e.Skill, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// decodeJSON extracts the JSON object from raw model output and unmarshals
// it into target. Code fences and incidental prose around the payload are
// tolerated; a missing or malformed payload is a ParseError.
func decodeJSON(skillName, raw string, target any) error {
	payload, ok := extractJSONObject(raw)
	if !ok {
		return &ParseError{Skill: skillName, Raw: raw, Err: fmt.Errorf("no JSON object found")}
	}
	if err := json.Unmarshal([]byte(payload), target); err != nil {
		return &ParseError{Skill: skillName, Raw: raw, Err: err}
	}
	return nil
}

// extractJSONObject returns the first balanced top-level JSON object in the
// text, skipping code fences and surrounding prose. Brace balancing is
// string-aware so braces inside JSON strings don't truncate the payload.
func extractJSONObject(text string) (string, bool) {
	text = stripCodeFences(text)

	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

// stripCodeFences removes markdown code fence lines, keeping their content.
func stripCodeFences(text string) string {
	if !strings.Contains(text, "```") {
		return text
	}
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
