package capability

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dmorgan81/genserve/internal/log"
	"github.com/dmorgan81/genserve/internal/pipeline"
)

// Loader performs the slow, fallible startup step that yields a generator.
type Loader func(context.Context) (pipeline.Generator, error)

var errAlreadyLoaded = errors.New("capability load already started")

// Handle owns the loaded generator for the lifetime of the process. It starts
// out loading and settles exactly once, into ready or failed.
type Handle struct {
	name string

	mu   sync.RWMutex
	gen  pipeline.Generator
	err  error
	once sync.Once
	done chan struct{}
}

func NewHandle(name string) *Handle {
	return &Handle{name: name, done: make(chan struct{})}
}

func (h *Handle) Name() string {
	return h.name
}

// Load runs loader and records its outcome. Only the first call does any work.
func (h *Handle) Load(ctx context.Context, loader Loader) error {
	err := errAlreadyLoaded
	h.once.Do(func() {
		log := log.FromContextOrDiscard(ctx).WithGroup("capability").With("model", h.name)
		log.Info("loading model")
		start := time.Now()

		gen, loadErr := loader(ctx)
		if loadErr == nil && gen == nil {
			loadErr = errors.New("loader returned no generator")
		}

		h.mu.Lock()
		h.gen, h.err = gen, loadErr
		h.mu.Unlock()
		close(h.done)

		if loadErr != nil {
			log.Error("failed to load model", "error", loadErr)
		} else {
			log.Info("model loaded", "elapsed", time.Since(start).String())
		}
		err = loadErr
	})
	return err
}

// Generator returns the loaded generator, or false while loading or after a
// failed load.
func (h *Handle) Generator() (pipeline.Generator, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.err != nil || h.gen == nil {
		return nil, false
	}
	return h.gen, true
}

func (h *Handle) Ready() bool {
	_, ok := h.Generator()
	return ok
}

// Done is closed once loading has settled.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Err is the load failure, if any.
func (h *Handle) Err() error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.err
}

// Wait blocks until loading settles or ctx ends.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return h.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}
