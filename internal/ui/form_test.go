package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModelOptions(t *testing.T) {
	options := modelOptions(map[string]string{
		"fast":     "llama-3.1-8b-instant",
		"accurate": "openai/gpt-oss-20b",
		"custom":   "",
	}, "fast")

	require.Len(t, options, 3)
	assert.Equal(t, "accurate (openai/gpt-oss-20b)", options[0].Key)
	assert.Equal(t, "accurate", options[0].Value)
	assert.Equal(t, "custom", options[1].Key)
	assert.Equal(t, "fast", options[2].Value)
}

func TestModelOptionsKeepsLiteralModel(t *testing.T) {
	models := map[string]string{"fast": "llama-3.1-8b-instant", "accurate": "openai/gpt-oss-20b"}

	options := modelOptions(models, "mixtral-8x7b")
	require.Len(t, options, 3)
	assert.Equal(t, "mixtral-8x7b", options[0].Key)
	assert.Equal(t, "mixtral-8x7b", options[0].Value)

	assert.Len(t, modelOptions(models, ""), 2)
	assert.Len(t, modelOptions(models, "accurate"), 2)
}

func TestLevelOptions(t *testing.T) {
	options := levelOptions([]string{"Beginner", "Intermediate", "Advanced"})

	require.Len(t, options, 3)
	for _, o := range options {
		assert.Equal(t, o.Key, o.Value)
	}
}
