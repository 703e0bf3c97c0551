package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"worker-proxy-server/models"
)

// EventPreviewLength bounds the text kept per event summary
const EventPreviewLength = 300

var (
	errNotAnObject = errors.New("record is not a JSON object")
	errMissingType = errors.New("record has no event type")
)

// ParseEvent decodes one frame into a RawEvent. Frames that are not JSON
// objects with a non-empty "type" are rejected; the caller skips them, so a
// bare document like {"result":"ok"} is left to the single JSON tier.
func ParseEvent(record string, receivedAt time.Time) (models.RawEvent, error) {
	var body map[string]any
	if err := json.Unmarshal([]byte(record), &body); err != nil {
		return models.RawEvent{}, fmt.Errorf("decoding frame: %w", err)
	}
	if body == nil {
		return models.RawEvent{}, errNotAnObject
	}
	eventType, _ := body["type"].(string)
	if eventType == "" {
		return models.RawEvent{}, errMissingType
	}
	return models.RawEvent{
		Type:       eventType,
		Body:       body,
		Raw:        json.RawMessage(record),
		ReceivedAt: receivedAt,
	}, nil
}

// Reduce folds the events of one execution into an ExecutionResult. The
// last "result" event wins; without one, assistant text segments are
// joined in receipt order.
func Reduce(events []models.RawEvent) models.ExecutionResult {
	result := models.ExecutionResult{
		Status:        models.StatusUnknown,
		RawEventCount: len(events),
		ParseTier:     models.TierStream,
	}

	var final *models.RawEvent
	for i := range events {
		if events[i].Type == "result" {
			final = &events[i]
		}
	}

	if final != nil {
		if text, ok := final.Body["result"].(string); ok && text != "" {
			result.ResponseText = text
		}
		result.Status = normalizeStatus(final.Subtype())
		result.Turns = intField(final.Body, "num_turns")
		result.CostUSD = costField(final.Body)
		result.Model, _ = final.Body["model"].(string)
		if id, ok := final.Body["session_id"].(string); ok && id != "" {
			result.WorkerSessionID = &id
		}
	}
	if result.ResponseText == "" {
		result.ResponseText = AssistantText(events)
	}
	if result.Model == "" {
		result.Model = modelFromEvents(events)
	}
	if result.WorkerSessionID == nil {
		result.WorkerSessionID = sessionIDFromEvents(events)
	}
	return result
}

// AssistantText joins every assistant text segment with newlines
func AssistantText(events []models.RawEvent) string {
	var parts []string
	for _, e := range events {
		if e.Type != "assistant" {
			continue
		}
		parts = append(parts, assistantSegments(e)...)
	}
	return strings.Join(parts, "\n")
}

// ParseSingleJSON treats the whole raw output as one JSON document. An
// object is read as a result event; an array is read as a list of events.
func ParseSingleJSON(raw string, receivedAt time.Time) (models.ExecutionResult, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return models.ExecutionResult{}, false
	}

	var doc any
	if err := json.Unmarshal([]byte(trimmed), &doc); err != nil {
		return models.ExecutionResult{}, false
	}

	switch v := doc.(type) {
	case map[string]any:
		eventType, _ := v["type"].(string)
		if eventType == "" {
			eventType = "result"
			v["type"] = eventType
		}
		if _, ok := v["subtype"]; !ok && eventType == "result" {
			v["subtype"] = models.StatusSuccess
		}
		event := models.RawEvent{Type: eventType, Body: v, Raw: json.RawMessage(trimmed), ReceivedAt: receivedAt}
		result := Reduce([]models.RawEvent{event})
		if eventType != "result" {
			if result.ResponseText == "" {
				result.ResponseText = firstString(v, "result", "response", "text", "content")
			}
			result.Status = models.StatusSuccess
		}
		result.RawEventCount = 0
		result.ParseTier = models.TierSingleJSON
		return result, true
	case []any:
		var events []models.RawEvent
		for _, item := range v {
			body, ok := item.(map[string]any)
			if !ok {
				continue
			}
			encoded, _ := json.Marshal(body)
			eventType, _ := body["type"].(string)
			events = append(events, models.RawEvent{Type: eventType, Body: body, Raw: encoded, ReceivedAt: receivedAt})
		}
		if len(events) == 0 {
			return models.ExecutionResult{}, false
		}
		result := Reduce(events)
		result.ParseTier = models.TierSingleJSON
		return result, true
	default:
		return models.ExecutionResult{}, false
	}
}

// PlainTextResult is the last-resort reading of worker output
func PlainTextResult(raw string) models.ExecutionResult {
	return models.ExecutionResult{
		ResponseText: strings.TrimSpace(raw),
		Status:       models.StatusSuccess,
		ParseTier:    models.TierPlainText,
	}
}

// SummarizeEvents reduces events to type, preview and size. Only the most
// recent maxEvents are kept when maxEvents > 0.
func SummarizeEvents(events []models.RawEvent, maxEvents int) []models.EventSummary {
	if maxEvents > 0 && len(events) > maxEvents {
		events = events[len(events)-maxEvents:]
	}
	summaries := make([]models.EventSummary, 0, len(events))
	for _, e := range events {
		size := len(e.Raw)
		if size == 0 && e.Body != nil {
			if encoded, err := json.Marshal(e.Body); err == nil {
				size = len(encoded)
			}
		}
		summaries = append(summaries, models.EventSummary{
			Type:       e.Type,
			Subtype:    e.Subtype(),
			Preview:    Truncate(eventText(e), EventPreviewLength),
			Bytes:      size,
			ReceivedAt: e.ReceivedAt,
		})
	}
	return summaries
}

// Truncate cuts s to at most n runes
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func normalizeStatus(subtype string) string {
	switch subtype {
	case "":
		return models.StatusUnknown
	case models.StatusSuccess, models.StatusErrorMaxTurns, models.StatusErrorToolExecution,
		models.StatusTimeout, models.StatusError, models.StatusUnknown:
		return subtype
	case "error_during_execution":
		return models.StatusErrorToolExecution
	}
	if strings.HasPrefix(subtype, "error") {
		return models.StatusError
	}
	return models.StatusUnknown
}

// assistantSegments reads both the flat {"subtype":"text","text":...} shape
// and the message.content block list.
func assistantSegments(e models.RawEvent) []string {
	if text, ok := e.Body["text"].(string); ok && text != "" {
		if st := e.Subtype(); st == "" || st == "text" {
			return []string{text}
		}
	}
	msg, ok := e.Body["message"].(map[string]any)
	if !ok {
		return nil
	}
	switch content := msg["content"].(type) {
	case string:
		if content != "" {
			return []string{content}
		}
	case []any:
		var out []string
		for _, block := range content {
			b, ok := block.(map[string]any)
			if !ok || b["type"] != "text" {
				continue
			}
			if text, ok := b["text"].(string); ok && text != "" {
				out = append(out, text)
			}
		}
		return out
	}
	return nil
}

// eventText picks the human-readable part of an event for its preview
func eventText(e models.RawEvent) string {
	switch e.Type {
	case "assistant":
		if parts := assistantSegments(e); len(parts) > 0 {
			return strings.Join(parts, "\n")
		}
		return strings.Join(toolUseNames(e), ", ")
	case "result":
		s, _ := e.Body["result"].(string)
		return s
	case "system":
		if msg, ok := e.Body["message"].(string); ok {
			return msg
		}
		return e.Subtype()
	}
	if s := firstString(e.Body, "content", "text", "result"); s != "" {
		return s
	}
	if msg, ok := e.Body["message"].(map[string]any); ok {
		return contentText(msg["content"])
	}
	return ""
}

func toolUseNames(e models.RawEvent) []string {
	if name, ok := e.Body["name"].(string); ok {
		return []string{name}
	}
	msg, _ := e.Body["message"].(map[string]any)
	blocks, _ := msg["content"].([]any)
	var names []string
	for _, block := range blocks {
		b, ok := block.(map[string]any)
		if !ok || b["type"] != "tool_use" {
			continue
		}
		if name, ok := b["name"].(string); ok {
			names = append(names, name)
		}
	}
	return names
}

// contentText flattens a content field that is either a string or a list
// of blocks, each of which may itself nest content.
func contentText(content any) string {
	switch c := content.(type) {
	case string:
		return c
	case []any:
		var parts []string
		for _, block := range c {
			b, ok := block.(map[string]any)
			if !ok {
				continue
			}
			if text, ok := b["text"].(string); ok && text != "" {
				parts = append(parts, text)
				continue
			}
			if nested := contentText(b["content"]); nested != "" {
				parts = append(parts, nested)
			}
		}
		return strings.Join(parts, "\n")
	}
	return ""
}

func firstString(body map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := body[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func modelFromEvents(events []models.RawEvent) string {
	for _, e := range events {
		if m, ok := e.Body["model"].(string); ok && m != "" {
			return m
		}
		if msg, ok := e.Body["message"].(map[string]any); ok {
			if m, ok := msg["model"].(string); ok && m != "" {
				return m
			}
		}
	}
	return ""
}

func sessionIDFromEvents(events []models.RawEvent) *string {
	for _, e := range events {
		if id, ok := e.Body["session_id"].(string); ok && id != "" {
			return &id
		}
	}
	return nil
}

func intField(body map[string]any, key string) int {
	n, ok := body[key].(float64)
	if !ok || n < 0 {
		return 0
	}
	return int(n)
}

func costField(body map[string]any) float64 {
	for _, key := range []string{"total_cost_usd", "cost_usd"} {
		if n, ok := body[key].(float64); ok {
			if n < 0 {
				return 0
			}
			return n
		}
	}
	return 0
}
