package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/dmorgan81/genserve/internal/log"
	"github.com/samber/lo"
)

const dezgoURL = "https://api.dezgo.com"

type DezgoGenerator struct {
	Client  *http.Client
	Key     string
	Model   string
	BaseURL string
}

type dezgoRequest struct {
	Prompt         string  `json:"prompt"`
	NegativePrompt string  `json:"negative_prompt,omitempty"`
	Model          string  `json:"model,omitempty"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	Steps          int     `json:"steps"`
	Guidance       float64 `json:"guidance"`
	Seed           string  `json:"seed"`
}

func (g *DezgoGenerator) Generate(ctx context.Context, params Params) (image.Image, error) {
	log := log.FromContextOrDiscard(ctx).WithGroup("dezgo").With("model", g.Model, "seed", params.Seed)
	log.Info("generating image via api.dezgo.com")

	body, err := json.Marshal(dezgoRequest{
		Prompt:         params.Prompt,
		NegativePrompt: strings.TrimSpace(params.NegativePrompt),
		Model:          g.Model,
		Width:          params.Width,
		Height:         params.Height,
		Steps:          params.Steps,
		Guidance:       params.CFGScale,
		Seed:           strconv.FormatInt(params.Seed, 10),
	})
	if err != nil {
		return nil, err
	}

	base := lo.Ternary(g.BaseURL != "", g.BaseURL, dezgoURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(base, "/")+"/text2image", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("X-Dezgo-Key", g.Key)

	resp, err := g.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("dezgo returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	log.Info("received image via api.dezgo.com", "input_seed", resp.Header.Get("x-input-seed"))

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode dezgo image: %w", err)
	}
	return img, nil
}
