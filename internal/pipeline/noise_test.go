package pipeline

import (
	"context"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pixels(t *testing.T, img image.Image) []uint8 {
	t.Helper()
	rgba, ok := img.(*image.RGBA)
	require.True(t, ok, "expected *image.RGBA, got %T", img)
	return rgba.Pix
}

func TestNoiseGenerator_Deterministic(t *testing.T) {
	g := &NoiseGenerator{}
	params := Params{Prompt: "a red cube", NegativePrompt: " ", Width: 64, Height: 48, Steps: 5, CFGScale: 4, Seed: 42}

	first, err := g.Generate(context.Background(), params)
	require.NoError(t, err)
	second, err := g.Generate(context.Background(), params)
	require.NoError(t, err)

	assert.Equal(t, image.Rect(0, 0, 64, 48), first.Bounds())
	assert.Equal(t, pixels(t, first), pixels(t, second))
}

func TestNoiseGenerator_InputsChangeOutput(t *testing.T) {
	g := &NoiseGenerator{}
	base := Params{Prompt: "a red cube", NegativePrompt: " ", Width: 32, Height: 32, Steps: 3, CFGScale: 4, Seed: 42}
	want, err := g.Generate(context.Background(), base)
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(p *Params)
	}{
		{"seed", func(p *Params) { p.Seed = 43 }},
		{"prompt", func(p *Params) { p.Prompt = "a blue sphere" }},
		{"negative prompt", func(p *Params) { p.NegativePrompt = "blurry" }},
		{"steps", func(p *Params) { p.Steps = 10 }},
		{"guidance", func(p *Params) { p.CFGScale = 9 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := base
			tt.mutate(&params)
			got, err := g.Generate(context.Background(), params)
			require.NoError(t, err)
			assert.NotEqual(t, pixels(t, want), pixels(t, got))
		})
	}
}

func TestNoiseGenerator_Shape(t *testing.T) {
	g := &NoiseGenerator{MaxPixels: 100 * 100}

	tests := []struct {
		name          string
		width, height int
		wantErr       string
	}{
		{name: "zero width", width: 0, height: 10, wantErr: "invalid shape 0x10"},
		{name: "negative height", width: 10, height: -1, wantErr: "invalid shape 10x-1"},
		{name: "too large", width: 101, height: 100, wantErr: "out of memory"},
		{name: "product wraps", width: 1 << 32, height: 1 << 32, wantErr: "out of memory"},
		{name: "one huge side", width: 1 << 40, height: 1, wantErr: "out of memory"},
		{name: "at limit", width: 100, height: 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := g.Generate(context.Background(), Params{Width: tt.width, Height: tt.height, Steps: 1, CFGScale: 4})
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				assert.Nil(t, img)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.width, img.Bounds().Dx())
			assert.Equal(t, tt.height, img.Bounds().Dy())
		})
	}
}

func TestNoiseGenerator_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := (&NoiseGenerator{}).Generate(ctx, Params{Width: 8, Height: 8, Steps: 2, CFGScale: 4})
	assert.ErrorIs(t, err, context.Canceled)
}
