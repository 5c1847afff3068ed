package prompt

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild(t *testing.T) {
	t.Run("ToneByLevel", func(t *testing.T) {
		for _, level := range Levels() {
			out, err := Build("NameError: name 'x' is not defined", level, "", FormatSections)
			require.NoError(t, err)

			tone, _ := Tone(level)
			assert.Contains(t, out, tone)
			assert.Contains(t, out, strings.ToLower(string(level))+" terms")
		}
	})

	t.Run("EmbedsErrorVerbatim", func(t *testing.T) {
		out, err := Build("call [PHONE] failed", Beginner, "", FormatJSON)
		require.NoError(t, err)
		assert.Contains(t, out, "```\ncall [PHONE] failed\n```")
	})

	t.Run("CodeBlockOnlyWhenPresent", func(t *testing.T) {
		without, err := Build("boom", Intermediate, "   ", FormatJSON)
		require.NoError(t, err)
		assert.NotContains(t, without, "Related code")

		with, err := Build("boom", Intermediate, "print(x)\n", FormatJSON)
		require.NoError(t, err)
		assert.Contains(t, with, "Related code:\n```\nprint(x)\n```")
	})

	t.Run("JSONFormatNamesKeys", func(t *testing.T) {
		out, err := Build("boom", Advanced, "", FormatJSON)
		require.NoError(t, err)
		for _, key := range []string{`"meaning"`, `"cause"`, `"fix_code"`, `"prevention"`} {
			assert.Contains(t, out, key)
		}
	})

	t.Run("SectionsFormat", func(t *testing.T) {
		out, err := Build("boom", Advanced, "", FormatSections)
		require.NoError(t, err)
		assert.Contains(t, out, "Why it happened")
		assert.NotContains(t, out, `"fix_code"`)
	})

	t.Run("UnknownLevel", func(t *testing.T) {
		_, err := Build("boom", Level("Expert"), "", FormatJSON)
		assert.True(t, errors.Is(err, ErrUnknownLevel))
	})

	t.Run("UnknownFormat", func(t *testing.T) {
		_, err := Build("boom", Beginner, "", Format("xml"))
		assert.True(t, errors.Is(err, ErrUnknownFormat))
	})
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel(" advanced ")
	require.NoError(t, err)
	assert.Equal(t, Advanced, level)

	_, err = ParseLevel("guru")
	assert.True(t, errors.Is(err, ErrUnknownLevel))
}
