package genclient

import (
	"testing"

	"github.com/dmorgan81/genserve/internal/generate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptions_Request(t *testing.T) {
	req, err := Options{Prompt: "a red cube", Ratio: "16:9", Seed: -1, Language: "English"}.Request()
	require.NoError(t, err)
	assert.Equal(t, "a red cube, Ultra HD, 4K, cinematic composition.", req.Prompt)
	assert.Equal(t, " ", req.NegativePrompt)
	assert.Equal(t, 1664, req.Width)
	assert.Equal(t, 928, req.Height)
	assert.True(t, req.Seed.IsRandom())

	req, err = Options{
		Prompt:         "a red cube",
		NegativePrompt: "blurry",
		Ratio:          "16:9",
		Width:          512,
		Height:         512,
		Steps:          10,
		CFGScale:       7.5,
		Seed:           42,
		Enhancement:    ", watercolor",
	}.Request()
	require.NoError(t, err)
	assert.Equal(t, "a red cube, watercolor", req.Prompt)
	assert.Equal(t, "blurry", req.NegativePrompt)
	assert.Equal(t, 512, req.Width)
	assert.Equal(t, 10, req.NumInferenceSteps)
	assert.Equal(t, 7.5, req.TrueCFGScale)
	assert.Equal(t, generate.ExplicitSeed(42), req.Seed)
}

func TestOptions_RequestErrors(t *testing.T) {
	_, err := Options{Prompt: "  "}.Request()
	assert.ErrorIs(t, err, ErrEmptyPrompt)

	_, err = Options{Prompt: "x", Ratio: "5:4"}.Request()
	assert.ErrorContains(t, err, "unknown aspect ratio")

	_, err = Options{Prompt: "x", Language: "klingon"}.Request()
	assert.ErrorContains(t, err, "unknown language")
}
