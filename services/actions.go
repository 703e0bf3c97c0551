package services

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Workers are asked to emit out-of-band instructions as
// <!--ACTION:{"type":"...", ...}--> inside their response text.
// The pattern also captures the whitespace on either side of a marker so the
// gap it leaves can be closed up.
var actionMarkerPattern = regexp.MustCompile(`(?s)(\s*)<!--\s*ACTION:(.*?)-->(\s*)`)

const actionSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["type"],
	"properties": {
		"type": {"type": "string", "minLength": 1}
	}
}`

// ActionExtractor separates action markers from user-visible text
type ActionExtractor struct {
	schema *gojsonschema.Schema
}

func NewActionExtractor() (*ActionExtractor, error) {
	return NewActionExtractorWithSchema(actionSchema)
}

// NewActionExtractorWithSchema validates marker payloads against a custom
// JSON schema instead of the default one.
func NewActionExtractorWithSchema(schemaJSON string) (*ActionExtractor, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("compiling action schema: %w", err)
	}
	return &ActionExtractor{schema: schema}, nil
}

// Extract removes every marker from text and returns the cleaned text with
// the payloads that parsed and validated. Malformed markers are removed
// but not returned. Removal repeats until no marker remains, so running
// Extract on its own output finds nothing. Only whitespace touching a
// removed marker is rewritten; the rest of the text is kept as is apart
// from trimming both ends.
func (x *ActionExtractor) Extract(text string) (string, []map[string]any) {
	actions := []map[string]any{}
	clean := text
	for actionMarkerPattern.MatchString(clean) {
		clean = actionMarkerPattern.ReplaceAllStringFunc(clean, func(marker string) string {
			m := actionMarkerPattern.FindStringSubmatch(marker)
			if action, ok := x.parse(m[2]); ok {
				actions = append(actions, action)
			}
			return markerGap(m[1], m[3])
		})
	}
	return strings.TrimSpace(clean), actions
}

// markerGap is what replaces a marker and the whitespace around it. Inline
// markers keep the surrounding spaces. A marker next to line breaks leaves
// at most one blank line and keeps the indentation of the following line.
func markerGap(before, after string) string {
	if !strings.Contains(before, "\n") && !strings.Contains(after, "\n") {
		return before + after
	}
	newlines := min(max(strings.Count(before, "\n"), strings.Count(after, "\n")), 2)
	indent := after[strings.LastIndex(after, "\n")+1:]
	return strings.Repeat("\n", newlines) + indent
}

func (x *ActionExtractor) parse(payload string) (map[string]any, bool) {
	var action map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(payload)), &action); err != nil || action == nil {
		return nil, false
	}
	result, err := x.schema.Validate(gojsonschema.NewGoLoader(action))
	if err != nil || !result.Valid() {
		return nil, false
	}
	return action, true
}
