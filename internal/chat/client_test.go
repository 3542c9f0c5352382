package chat

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmorgan81/genserve/internal/httpx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestClient_Complete(t *testing.T) {
	bodies := make(chan []byte, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		bodies <- body
		_, _ = io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"A cat on a mat."},"finish_reason":"stop"}]}`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL + "/")
	reply, err := client.Complete(context.Background(), []Message{UserImages("Describe this image in detail.", "data:image/jpeg;base64,AAA")})
	require.NoError(t, err)
	assert.Equal(t, "A cat on a mat.", reply)

	body := <-bodies

	assert.Equal(t, DefaultModel, gjson.GetBytes(body, "model").String())
	assert.EqualValues(t, 512, gjson.GetBytes(body, "max_tokens").Int())
	assert.Equal(t, 0.7, gjson.GetBytes(body, "temperature").Float())
	assert.Equal(t, 0.8, gjson.GetBytes(body, "top_p").Float())
	assert.False(t, gjson.GetBytes(body, "stream").Bool())
	assert.True(t, gjson.GetBytes(body, "stream").Exists())
	assert.Equal(t, "image_url", gjson.GetBytes(body, "messages.0.content.0.type").String())
	assert.Equal(t, "Describe this image in detail.", gjson.GetBytes(body, "messages.0.content.1.text").String())
	assert.Equal(t, "data:image/jpeg;base64,AAA", gjson.GetBytes(body, "messages.0.content.0.image_url.url").String())
}

func TestClient_CompleteSendsHistory(t *testing.T) {
	bodies := make(chan []byte, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		bodies <- body
		_, _ = io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"Paris."}}]}`)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Complete(context.Background(), []Message{
		UserText("hi"),
		AssistantText("Hello!"),
		UserText("capital of France?"),
	})
	require.NoError(t, err)

	messages := gjson.GetBytes(<-bodies, "messages").Array()
	require.Len(t, messages, 3)
	assert.Equal(t, "assistant", messages[1].Get("role").String())
	assert.Equal(t, gjson.String, messages[2].Get("content").Type)
	assert.Equal(t, "capital of France?", messages[2].Get("content").String())
}

func TestClient_CompleteSendsAPIKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":"ok"}}]}`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	client.APIKey = "secret"
	_, err := client.Complete(context.Background(), []Message{UserText("hi")})
	require.NoError(t, err)
}

func TestClient_CompleteErrors(t *testing.T) {
	t.Run("status", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "too many images"}})
		}))
		defer srv.Close()

		_, err := NewClient(srv.URL).Complete(context.Background(), []Message{UserText("hi")})
		var statusErr *httpx.StatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, http.StatusBadRequest, statusErr.Code)
		assert.NotEmpty(t, statusErr.Body)
		assert.EqualValues(t, 1, calls.Load())
	})

	t.Run("server errors are not retried", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		_, err := NewClient(srv.URL).Complete(context.Background(), []Message{UserText("hi")})
		var statusErr *httpx.StatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, http.StatusServiceUnavailable, statusErr.Code)
		assert.EqualValues(t, 1, calls.Load())
	})

	t.Run("no choices", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"choices":[]}`)
		}))
		defer srv.Close()

		_, err := NewClient(srv.URL).Complete(context.Background(), []Message{UserText("hi")})
		assert.ErrorIs(t, err, ErrNoChoices)
	})

	t.Run("unreachable", func(t *testing.T) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		addr := ln.Addr().String()
		require.NoError(t, ln.Close())

		_, err = NewClient("http://"+addr).Complete(context.Background(), []Message{UserText("hi")})
		assert.ErrorIs(t, err, httpx.ErrUnreachable)
	})

	t.Run("timeout", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(time.Second):
			}
		}))
		defer srv.Close()

		client := NewClient(srv.URL)
		client.HTTP = &http.Client{Timeout: 20 * time.Millisecond}
		_, err := client.Complete(context.Background(), []Message{UserText("hi")})
		assert.ErrorIs(t, err, httpx.ErrTimeout)
	})
}

func TestClient_Health(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusOK)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(int(status.Load()))
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	assert.NoError(t, client.Health(context.Background()))

	status.Store(http.StatusServiceUnavailable)
	var statusErr *httpx.StatusError
	require.ErrorAs(t, client.Health(context.Background()), &statusErr)
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.Code)
}

func TestClient_DescribeNeedsImages(t *testing.T) {
	_, err := NewClient("http://unused").Describe(context.Background(), "what?")
	assert.Error(t, err)
}
