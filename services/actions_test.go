package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExtractor(t *testing.T) *ActionExtractor {
	t.Helper()
	x, err := NewActionExtractor()
	require.NoError(t, err)
	return x
}

func TestExtractActions(t *testing.T) {
	t.Parallel()

	x := newTestExtractor(t)
	text := "Here is the plan.\n\n<!--ACTION:{\"type\":\"create_task\",\"title\":\"Write docs\"}-->\n\n\n\nThanks!"

	clean, actions := x.Extract(text)
	assert.Equal(t, "Here is the plan.\n\nThanks!", clean)
	require.Len(t, actions, 1)
	assert.Equal(t, "create_task", actions[0]["type"])
	assert.Equal(t, "Write docs", actions[0]["title"])
}

func TestExtractDropsMalformedMarkers(t *testing.T) {
	t.Parallel()

	x := newTestExtractor(t)
	text := `a <!--ACTION:{not json}--> b <!--ACTION:{"title":"no type"}--> c <!--ACTION:{"type":""}--> d <!-- ACTION: {"type":"ok"} -->`

	clean, actions := x.Extract(text)
	assert.Equal(t, "a  b  c  d", clean)
	require.Len(t, actions, 1)
	assert.Equal(t, "ok", actions[0]["type"])
}

func TestExtractMultilineMarker(t *testing.T) {
	t.Parallel()

	x := newTestExtractor(t)
	clean, actions := x.Extract("before<!--ACTION:{\n  \"type\": \"notify\"\n}-->after")
	assert.Equal(t, "beforeafter", clean)
	require.Len(t, actions, 1)
}

func TestExtractIsIdempotent(t *testing.T) {
	t.Parallel()

	x := newTestExtractor(t)
	inputs := []string{
		"plain text",
		"x <!--ACTION:{\"type\":\"a\"}--> y",
		// Removing the inner marker forms a new one
		"<!--ACT<!--ACTION:{\"type\":\"inner\"}-->ION:{\"type\":\"outer\"}-->tail",
		"\n\n\n  <!--ACTION:{\"type\":\"a\"}-->  \n\n\n",
	}
	for _, input := range inputs {
		once, _ := x.Extract(input)
		twice, actions := x.Extract(once)
		assert.Equal(t, once, twice, input)
		assert.Empty(t, actions, input)
		assert.NotContains(t, once, "<!--ACTION:")
	}
}

func TestExtractLeavesUnmarkedWhitespace(t *testing.T) {
	t.Parallel()

	x := newTestExtractor(t)
	inputs := []string{
		"line1\n\n\n\nline2",
		"a\n\n\n\n\nb\n    indented",
		"tabs\t\tand  spaces\n \n \nend",
	}
	for _, input := range inputs {
		clean, actions := x.Extract(input)
		assert.Equal(t, input, clean)
		assert.Empty(t, actions)
	}

	clean, _ := x.Extract("keep\n\n\n\nthis\n<!--ACTION:{\"type\":\"a\"}-->\nnext")
	assert.Equal(t, "keep\n\n\n\nthis\nnext", clean)
}

func TestExtractMarkerOnOwnLine(t *testing.T) {
	t.Parallel()

	x := newTestExtractor(t)
	clean, actions := x.Extract("step one\n<!--ACTION:{\"type\":\"a\"}-->\n    step two")
	assert.Equal(t, "step one\n    step two", clean)
	require.Len(t, actions, 1)
}

func TestExtractWithoutMarkers(t *testing.T) {
	t.Parallel()

	x := newTestExtractor(t)
	clean, actions := x.Extract("  hello  ")
	assert.Equal(t, "hello", clean)
	assert.NotNil(t, actions)
	assert.Empty(t, actions)
}

func TestCustomActionSchema(t *testing.T) {
	t.Parallel()

	x, err := NewActionExtractorWithSchema(`{"type":"object","required":["type","priority"]}`)
	require.NoError(t, err)

	_, actions := x.Extract(`<!--ACTION:{"type":"a"}--><!--ACTION:{"type":"b","priority":1}-->`)
	require.Len(t, actions, 1)
	assert.Equal(t, "b", actions[0]["type"])

	_, err = NewActionExtractorWithSchema(`{not a schema`)
	assert.Error(t, err)
}
