package genclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dmorgan81/genserve/internal/capability"
	"github.com/dmorgan81/genserve/internal/generate"
	"github.com/dmorgan81/genserve/internal/httpx"
	"github.com/dmorgan81/genserve/internal/log"
	"github.com/tidwall/gjson"
)

const (
	DefaultEndpoint        = "http://localhost:8000"
	DefaultGenerateTimeout = 180 * time.Second
	DefaultHealthTimeout   = 10 * time.Second
)

// Client calls a running generation service. Every call is attempted once.
type Client struct {
	HTTP            *http.Client
	Endpoint        string
	GenerateTimeout time.Duration
	HealthTimeout   time.Duration
}

func New(endpoint string) *Client {
	return &Client{
		HTTP:            &http.Client{},
		Endpoint:        endpoint,
		GenerateTimeout: DefaultGenerateTimeout,
		HealthTimeout:   DefaultHealthTimeout,
	}
}

func (c *Client) Generate(ctx context.Context, req generate.Request) (generate.Response, error) {
	logger := log.FromContextOrDiscard(ctx).WithGroup("genclient").With("endpoint", c.Endpoint, "seed", req.Seed.String())
	logger.Info("requesting generation", "prompt", log.Truncate(req.Prompt, 100))

	body, err := json.Marshal(req)
	if err != nil {
		return generate.Response{}, err
	}

	var resp generate.Response
	if err := c.call(ctx, c.GenerateTimeout, http.MethodPost, "/generate", body, &resp); err != nil {
		return generate.Response{}, err
	}
	logger.Info("received generation", "seed_used", resp.SeedUsed)
	return resp, nil
}

func (c *Client) Health(ctx context.Context) (capability.Status, error) {
	var status capability.Status
	err := c.call(ctx, c.HealthTimeout, http.MethodGet, "/health", nil, &status)
	return status, err
}

func (c *Client) ModelInfo(ctx context.Context) (capability.Info, error) {
	var info capability.Info
	err := c.call(ctx, c.HealthTimeout, http.MethodGet, "/model-info", nil, &info)
	return info, err
}

func (c *Client) call(ctx context.Context, timeout time.Duration, method, path string, body []byte, out any) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.Endpoint, "/")+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return httpx.Classify(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return httpx.Classify(err)
	}
	if resp.StatusCode != http.StatusOK {
		return &httpx.StatusError{Code: resp.StatusCode, Body: detail(data)}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// detail pulls the error detail out of a service error body. Validation
// failures carry a list, which is kept as raw JSON.
func detail(body []byte) string {
	d := gjson.GetBytes(body, "detail")
	switch {
	case !d.Exists():
		return strings.TrimSpace(string(body))
	case d.Type == gjson.String:
		return d.String()
	default:
		return d.Raw
	}
}
