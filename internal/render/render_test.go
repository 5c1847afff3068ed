package render

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fourKeys = `{"meaning": "m", "cause": "c", "fix_code": "x = 1", "prevention": "p"}`

func TestParse(t *testing.T) {
	t.Run("Structured", func(t *testing.T) {
		res := Parse(fourKeys)
		require.True(t, res.IsStructured())
		assert.Equal(t, KindStructured, res.Kind)
		assert.Equal(t, Structured{Meaning: "m", Cause: "c", FixCode: "x = 1", Prevention: "p"}, *res.Structured)
		assert.Equal(t, fourKeys, res.Raw)
	})

	t.Run("NotJSON", func(t *testing.T) {
		res := Parse("not json at all")
		assert.Equal(t, KindRaw, res.Kind)
		assert.Nil(t, res.Structured)
		assert.Equal(t, "not json at all", res.Raw)
	})

	t.Run("NonObjectJSON", func(t *testing.T) {
		for _, raw := range []string{`["a", "b"]`, `"text"`, `42`, `null`, ``} {
			res := Parse(raw)
			assert.Equal(t, KindRaw, res.Kind, "input %q", raw)
			assert.Equal(t, raw, res.Raw)
		}
	})

	t.Run("MissingAndExtraKeys", func(t *testing.T) {
		res := Parse(`{"meaning": "m", "steps": ["a", "b"], "confidence": 0.9, "cause": null}`)
		require.True(t, res.IsStructured())
		assert.Equal(t, "m", res.Structured.Meaning)
		assert.Empty(t, res.Structured.Cause)
		assert.Empty(t, res.Structured.FixCode)
		assert.Equal(t, `["a","b"]`, res.Structured.Extra["steps"])
		assert.Equal(t, "0.9", res.Structured.Extra["confidence"])
	})

	t.Run("FencedJSON", func(t *testing.T) {
		raw := "```json\n" + fourKeys + "\n```"
		res := Parse(raw)
		require.True(t, res.IsStructured())
		assert.Equal(t, "x = 1", res.Structured.FixCode)
		assert.Equal(t, raw, res.Raw)

		res = Parse("  ```\n" + fourKeys + "\n```\n")
		assert.True(t, res.IsStructured())
	})

	t.Run("TrailingProse", func(t *testing.T) {
		res := Parse(fourKeys + "\nHope this helps!")
		assert.Equal(t, KindRaw, res.Kind)
	})
}

func TestTextRenderer(t *testing.T) {
	var buf bytes.Buffer
	r := NewTextRenderer(&buf)

	require.NoError(t, r.Render(Parse(`{"meaning": "It broke", "cause": "because", "fix_code": "x = 1", "prevention": "", "tip": "read docs"}`)))
	out := buf.String()
	assert.Contains(t, out, "Meaning")
	assert.Contains(t, out, "It broke")
	assert.Contains(t, out, "Why it happened")
	assert.Contains(t, out, "x = 1")
	assert.Contains(t, out, "tip")
	assert.NotContains(t, out, "Prevention")

	buf.Reset()
	require.NoError(t, r.Render(Parse("1. Meaning: it broke")))
	assert.Contains(t, buf.String(), "Explanation")
	assert.Contains(t, buf.String(), "1. Meaning: it broke")
}

func TestJSONRenderer(t *testing.T) {
	var buf bytes.Buffer
	r, err := New("json", &buf)
	require.NoError(t, err)

	require.NoError(t, r.Render(Parse(fourKeys)))

	var decoded Result
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, KindStructured, decoded.Kind)
	assert.Equal(t, "c", decoded.Structured.Cause)

	_, err = New("yaml", &buf)
	assert.Error(t, err)
}
