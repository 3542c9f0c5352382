package handler

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dmorgan81/genserve/internal/accel"
	"github.com/dmorgan81/genserve/internal/capability"
	"github.com/dmorgan81/genserve/internal/feed"
	"github.com/dmorgan81/genserve/internal/gate"
	"github.com/dmorgan81/genserve/internal/generate"
	"github.com/dmorgan81/genserve/internal/pipeline"
	"github.com/dmorgan81/genserve/internal/store"
	"github.com/gin-gonic/gin"
	"github.com/samber/do"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type failingGenerator struct{ err error }

func (f failingGenerator) Generate(context.Context, pipeline.Params) (image.Image, error) {
	return nil, f.err
}

type emptyLister struct{}

func (emptyLister) List(context.Context) ([]store.Object, error) { return nil, nil }

type fixture struct {
	router *gin.Engine
	handle *capability.Handle
}

func newFixture(t *testing.T, withFeed bool) *fixture {
	t.Helper()

	i := do.New()
	handle := capability.NewHandle("Qwen/Qwen-Image")
	g := gate.New(0)
	do.ProvideValue(i, handle)
	do.ProvideValue(i, g)
	do.ProvideValue[generate.Recorder](i, generate.DiscardRecorder{})
	do.Provide(i, generate.NewService)
	do.ProvideValue(i, &capability.Reporter{
		Handle:    handle,
		Inventory: accel.Static{{Index: 0, Name: "NVIDIA H100 80GB HBM3", MemoryBytes: 85_520_809_984}},
		Gate:      g,
	})
	do.ProvideValue(i, capability.NewInfo(handle.Name()))
	if withFeed {
		do.ProvideValue[store.Lister](i, emptyLister{})
		do.ProvideNamedValue(i, "feed_title", "genserve")
		do.ProvideNamedValue(i, "base_url", "")
		do.Provide(i, feed.NewGenerator)
	}

	h, err := NewHandler(i)
	require.NoError(t, err)

	router := gin.New()
	h.Register(router)
	return &fixture{router: router, handle: handle}
}

func (f *fixture) load(t *testing.T, gen pipeline.Generator) {
	t.Helper()
	require.NoError(t, f.handle.Load(context.Background(), func(context.Context) (pipeline.Generator, error) {
		return gen, nil
	}))
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest(method, path, strings.NewReader(body)))
	return w
}

func TestGenerate(t *testing.T) {
	f := newFixture(t, false)
	f.load(t, &pipeline.NoiseGenerator{})

	body := `{"prompt":"a red cube","width":512,"height":512,"num_inference_steps":10,"seed":42}`
	w := f.do(http.MethodPost, "/generate", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.EqualValues(t, 42, gjson.Get(w.Body.String(), "seed_used").Int())
	raw, err := base64.StdEncoding.DecodeString(gjson.Get(w.Body.String(), "image_base64").String())
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 512, 512), img.Bounds())

	again := f.do(http.MethodPost, "/generate", body)
	assert.Equal(t, w.Body.String(), again.Body.String())
}

func TestGenerate_RandomSeed(t *testing.T) {
	f := newFixture(t, false)
	f.load(t, &pipeline.NoiseGenerator{})

	w := f.do(http.MethodPost, "/generate", `{"prompt":"a red cube","width":16,"height":16,"num_inference_steps":1,"seed":-1}`)
	require.Equal(t, http.StatusOK, w.Code)
	seed := gjson.Get(w.Body.String(), "seed_used")
	require.True(t, seed.Exists())
	assert.GreaterOrEqual(t, seed.Int(), int64(0))
	assert.Less(t, seed.Int(), generate.SeedLimit)
}

func TestGenerate_ValidationError(t *testing.T) {
	f := newFixture(t, false)
	f.load(t, &pipeline.NoiseGenerator{})

	w := f.do(http.MethodPost, "/generate", `{"width":512}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.JSONEq(t, `{"detail":[{"loc":["body","prompt"],"msg":"Field required","type":"missing"}]}`, w.Body.String())
}

func TestGenerate_NotReady(t *testing.T) {
	f := newFixture(t, false)

	w := f.do(http.MethodPost, "/generate", `{"prompt":"a red cube"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"detail":"Model not loaded"}`, w.Body.String())
}

func TestGenerate_InvocationFailure(t *testing.T) {
	f := newFixture(t, false)
	f.load(t, failingGenerator{err: errors.New("CUDA out of memory. Tried to allocate 20.00 GiB")})

	w := f.do(http.MethodPost, "/generate", `{"prompt":"a red cube"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"detail":"CUDA out of memory. Tried to allocate 20.00 GiB"}`, w.Body.String())
}

func TestHealth(t *testing.T) {
	f := newFixture(t, false)

	w := f.do(http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Equal(t, "healthy", gjson.Get(body, "status").String())
	assert.False(t, gjson.Get(body, "model_loaded").Bool())
	assert.Equal(t, "Qwen/Qwen-Image", gjson.Get(body, "model_name").String())
	assert.EqualValues(t, 1, gjson.Get(body, "gpu_info.gpu_count").Int())
	assert.True(t, gjson.Get(body, "gpu_info.gpu_available").Bool())
	assert.Equal(t, "85.5GB", gjson.Get(body, "gpu_info.gpu_memory.0").String())

	f.load(t, &pipeline.NoiseGenerator{})
	w = f.do(http.MethodGet, "/health", "")
	assert.True(t, gjson.Get(w.Body.String(), "model_loaded").Bool())
}

func TestModelInfo(t *testing.T) {
	f := newFixture(t, false)

	w := f.do(http.MethodGet, "/model-info", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Equal(t, "Qwen/Qwen-Image", gjson.Get(body, "model_name").String())
	assert.Equal(t, "[1664,928]", gjson.Get(body, "recommended_aspect_ratios").Map()["16:9"].Raw)
	assert.Len(t, gjson.Get(body, "recommended_aspect_ratios").Map(), 7)
}

func TestFeed(t *testing.T) {
	w := newFixture(t, false).do(http.MethodGet, "/feed.rss", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = newFixture(t, true).do(http.MethodGet, "/feed.rss", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/rss+xml")
	assert.Contains(t, w.Body.String(), "<rss")
}
