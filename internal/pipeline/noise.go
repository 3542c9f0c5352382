package pipeline

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math/rand/v2"

	"github.com/cespare/xxhash/v2"
	"github.com/dmorgan81/genserve/internal/log"
	"github.com/samber/lo"
)

const defaultMaxPixels = 2048 * 2048

// NoiseGenerator is an in-process stand-in for a diffusion pipeline. Output is
// a pure function of Params: the seed and prompts pick the noise field and
// palette, steps smooth the field and the guidance scale sets how hard each
// step pulls towards its neighbours.
type NoiseGenerator struct {
	MaxPixels int
}

func (g *NoiseGenerator) Generate(ctx context.Context, params Params) (image.Image, error) {
	log := log.FromContextOrDiscard(ctx).WithGroup("noise").With("seed", params.Seed)
	log.Info("generating image in process")

	if params.Width <= 0 || params.Height <= 0 {
		return nil, fmt.Errorf("invalid shape %dx%d", params.Width, params.Height)
	}
	limit := lo.Ternary(g.MaxPixels > 0, g.MaxPixels, defaultMaxPixels)
	if params.Width > limit/params.Height {
		return nil, fmt.Errorf("out of memory: %dx%d exceeds %d pixels", params.Width, params.Height, limit)
	}

	digest := xxhash.New()
	_, _ = digest.WriteString(params.Prompt)
	_, _ = digest.Write([]byte{0})
	_, _ = digest.WriteString(params.NegativePrompt)
	rnd := rand.New(rand.NewPCG(uint64(params.Seed), digest.Sum64()))

	from := randomColor(rnd)
	to := randomColor(rnd)

	w, h := params.Width, params.Height
	field := make([]float32, w*h)
	for i := range field {
		field[i] = rnd.Float32()
	}

	pull := float32(min(max(params.CFGScale/10, 0.05), 0.95))
	next := make([]float32, len(field))
	for step := 0; step < params.Steps; step++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		smooth(field, next, w, h, pull)
		field, next = next, field
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, lerp(from, to, field[y*w+x]))
		}
	}
	return img, nil
}

// smooth writes one relaxation pass of src into dst, clamping at the edges.
func smooth(src, dst []float32, w, h int, pull float32) {
	for y := 0; y < h; y++ {
		up, down := max(y-1, 0), min(y+1, h-1)
		for x := 0; x < w; x++ {
			left, right := max(x-1, 0), min(x+1, w-1)
			avg := (src[up*w+x] + src[down*w+x] + src[y*w+left] + src[y*w+right]) / 4
			i := y*w + x
			dst[i] = src[i] + (avg-src[i])*pull
		}
	}
}

func randomColor(rnd *rand.Rand) color.RGBA {
	return color.RGBA{R: uint8(rnd.IntN(256)), G: uint8(rnd.IntN(256)), B: uint8(rnd.IntN(256)), A: 0xff}
}

func lerp(a, b color.RGBA, t float32) color.RGBA {
	mix := func(x, y uint8) uint8 {
		return uint8(float32(x) + (float32(y)-float32(x))*t)
	}
	return color.RGBA{R: mix(a.R, b.R), G: mix(a.G, b.G), B: mix(a.B, b.B), A: 0xff}
}
