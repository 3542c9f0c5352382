package httpx

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_Unreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	_, err = http.Get("http://" + addr + "/health")
	require.Error(t, err)

	classified := Classify(err)
	assert.ErrorIs(t, classified, ErrUnreachable)
	assert.NotErrorIs(t, classified, ErrTimeout)
}

func TestClassify_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	client := &http.Client{Timeout: 20 * time.Millisecond}
	_, err := client.Get(srv.URL)
	require.Error(t, err)

	classified := Classify(err)
	assert.ErrorIs(t, classified, ErrTimeout)
	assert.NotErrorIs(t, classified, ErrUnreachable)
}

func TestClassify_ContextDeadline(t *testing.T) {
	assert.ErrorIs(t, Classify(context.DeadlineExceeded), ErrTimeout)
}

func TestClassify_Passthrough(t *testing.T) {
	assert.NoError(t, Classify(nil))

	other := errors.New("boom")
	assert.Same(t, other, Classify(other))

	status := &StatusError{Code: 500, Body: "CUDA out of memory"}
	assert.Same(t, error(status), Classify(status))

	already := Classify(context.DeadlineExceeded)
	assert.Equal(t, already, Classify(already))
}

func TestStatusError(t *testing.T) {
	assert.Equal(t, "unexpected status 503", (&StatusError{Code: 503}).Error())
	assert.Equal(t, "unexpected status 500: boom", (&StatusError{Code: 500, Body: "boom"}).Error())
}
