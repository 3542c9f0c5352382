package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dmorgan81/genserve/internal/httpx"
	"github.com/dmorgan81/genserve/internal/log"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/samber/lo"
	"github.com/tidwall/gjson"
)

const (
	DefaultEndpoint    = "http://localhost:8000"
	DefaultModel       = "Qwen/Qwen2.5-VL-7B-Instruct"
	DefaultMaxTokens   = 512
	DefaultTemperature = 0.7
	DefaultTopP        = 0.8
	DefaultTimeout     = 60 * time.Second
	HealthTimeout      = 5 * time.Second
)

var ErrNoChoices = errors.New("completion has no choices")

// Client talks to an OpenAI-compatible /v1/chat/completions endpoint. The
// message list is forwarded as is; failures are never retried.
type Client struct {
	HTTP        *http.Client
	Endpoint    string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	TopP        float64
}

func NewClient(endpoint string) *Client {
	return &Client{
		HTTP:        &http.Client{Timeout: DefaultTimeout},
		Endpoint:    endpoint,
		Model:       DefaultModel,
		MaxTokens:   DefaultMaxTokens,
		Temperature: DefaultTemperature,
		TopP:        DefaultTopP,
	}
}

// sdk builds the OpenAI client from the current field values, so flags may
// change them after NewClient.
func (c *Client) sdk() openai.Client {
	opts := []option.RequestOption{
		option.WithBaseURL(c.url("/v1/")),
		option.WithHTTPClient(c.client()),
		option.WithMaxRetries(0),
	}
	if c.APIKey != "" {
		opts = append(opts, option.WithAPIKey(c.APIKey))
	}
	return openai.NewClient(opts...)
}

// Complete returns the content of the first choice.
func (c *Client) Complete(ctx context.Context, messages []Message) (string, error) {
	log := log.FromContextOrDiscard(ctx).WithGroup("chat").With("endpoint", c.Endpoint, "model", c.Model)
	log.Info("requesting completion", "messages", len(messages))

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.Model),
		Messages: lo.Map(messages, func(m Message, _ int) openai.ChatCompletionMessageParamUnion {
			return m.param()
		}),
		MaxTokens:   openai.Int(int64(c.MaxTokens)),
		Temperature: openai.Float(c.Temperature),
		TopP:        openai.Float(c.TopP),
	}

	client := c.sdk()
	completion, err := client.Chat.Completions.New(ctx, params, option.WithJSONSet("stream", false))
	if err != nil {
		return "", classify(err)
	}
	if len(completion.Choices) == 0 {
		return "", ErrNoChoices
	}

	choice := completion.Choices[0]
	log.Info("received completion",
		"finish_reason", choice.FinishReason,
		"completion_tokens", completion.Usage.CompletionTokens,
	)
	return choice.Message.Content, nil
}

// Health reports whether the endpoint answers GET /health with 200.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, HealthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url("/health"), nil)
	if err != nil {
		return err
	}
	resp, err := c.client().Do(req)
	if err != nil {
		return httpx.Classify(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return httpx.Classify(err)
	}
	if resp.StatusCode/100 != 2 {
		return &httpx.StatusError{Code: resp.StatusCode, Body: errorMessage(data)}
	}
	return nil
}

// classify maps SDK failures onto the httpx taxonomy: API replies become
// StatusErrors, transport failures are classified as usual.
func classify(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &httpx.StatusError{
			Code: apiErr.StatusCode,
			Body: lo.CoalesceOrEmpty(apiErr.Message, errorMessage([]byte(apiErr.RawJSON())), http.StatusText(apiErr.StatusCode)),
		}
	}
	return httpx.Classify(err)
}

func (c *Client) client() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

func (c *Client) url(path string) string {
	return strings.TrimRight(c.Endpoint, "/") + path
}

func errorMessage(body []byte) string {
	for _, path := range []string{"error.message", "message", "detail"} {
		if v := gjson.GetBytes(body, path); v.Exists() && v.Type == gjson.String {
			return v.String()
		}
	}
	return strings.TrimSpace(string(body))
}

// Describe is a convenience for the single-turn image question.
func (c *Client) Describe(ctx context.Context, question string, imageURLs ...string) (string, error) {
	if len(imageURLs) == 0 {
		return "", fmt.Errorf("no images to describe")
	}
	return c.Complete(ctx, []Message{UserImages(question, imageURLs...)})
}
