package pipeline

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dmorgan81/genserve/internal/log"
	"github.com/samber/lo"
	"github.com/tidwall/gjson"
)

// UpstreamGenerator forwards invocations to a GPU worker exposing the
// /generate and /health routes. The seed is always sent explicitly so the
// worker never draws one of its own. HealthClient, when set, serves the
// /health polls so they can time out while generations cannot.
type UpstreamGenerator struct {
	Client       *http.Client
	HealthClient *http.Client
	Endpoint     string
}

func (g *UpstreamGenerator) Generate(ctx context.Context, params Params) (image.Image, error) {
	log := log.FromContextOrDiscard(ctx).WithGroup("upstream").With("endpoint", g.Endpoint, "seed", params.Seed)
	log.Info("generating image via upstream worker")

	body, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url("/generate"), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

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
		return nil, fmt.Errorf("upstream returned %d: %s", resp.StatusCode, detail(data))
	}

	encoded := gjson.GetBytes(data, "image_base64")
	if !encoded.Exists() {
		return nil, fmt.Errorf("upstream response has no image_base64")
	}
	raw, err := base64.StdEncoding.DecodeString(encoded.String())
	if err != nil {
		return nil, fmt.Errorf("decode upstream image: %w", err)
	}
	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode upstream image: %w", err)
	}
	log.Info("received image via upstream worker", "seed_used", gjson.GetBytes(data, "seed_used").Int())
	return img, nil
}

// Loaded reports the worker's model_loaded flag.
func (g *UpstreamGenerator) Loaded(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.url("/health"), nil)
	if err != nil {
		return false, err
	}
	resp, err := lo.CoalesceOrEmpty(g.HealthClient, g.Client).Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, err
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("upstream health returned %d", resp.StatusCode)
	}
	return gjson.GetBytes(data, "model_loaded").Bool(), nil
}

// WaitLoaded polls the worker until its model is loaded or ctx ends.
func (g *UpstreamGenerator) WaitLoaded(ctx context.Context, interval time.Duration) error {
	log := log.FromContextOrDiscard(ctx).WithGroup("upstream").With("endpoint", g.Endpoint)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		loaded, err := g.Loaded(ctx)
		switch {
		case err != nil:
			log.Warn("upstream not reachable yet", "error", err)
		case loaded:
			return nil
		default:
			log.Info("upstream still loading model")
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for upstream model: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

func (g *UpstreamGenerator) url(path string) string {
	return strings.TrimRight(g.Endpoint, "/") + path
}

func detail(body []byte) string {
	if d := gjson.GetBytes(body, "detail"); d.Exists() {
		return d.String()
	}
	return strings.TrimSpace(string(body))
}
