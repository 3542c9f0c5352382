package generate

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/dmorgan81/genserve/internal/capability"
	"github.com/dmorgan81/genserve/internal/gate"
	"github.com/dmorgan81/genserve/internal/log"
	"github.com/dmorgan81/genserve/internal/pipeline"
	"github.com/google/uuid"
	"github.com/samber/do"
)

type Response struct {
	ImageBase64 string `json:"image_base64"`
	SeedUsed    int64  `json:"seed_used"`
}

// Record is everything needed to reproduce or display one generation.
type Record struct {
	ID        string
	Request   Request
	SeedUsed  int64
	Artifact  Artifact
	CreatedAt time.Time
}

type Recorder interface {
	Record(context.Context, Record) error
}

// DiscardRecorder keeps nothing.
type DiscardRecorder struct{}

func (DiscardRecorder) Record(context.Context, Record) error {
	return nil
}

// Service turns one request into exactly one capability invocation.
type Service struct {
	handle   *capability.Handle
	gate     *gate.Gate
	recorder Recorder
	draw     func() int64
	now      func() time.Time
}

func NewService(i *do.Injector) (*Service, error) {
	return &Service{
		handle:   do.MustInvoke[*capability.Handle](i),
		gate:     do.MustInvoke[*gate.Gate](i),
		recorder: do.MustInvoke[Recorder](i),
		draw:     DrawSeed,
		now:      time.Now,
	}, nil
}

func (s *Service) Generate(ctx context.Context, req Request) (Response, error) {
	logger := log.FromContextOrDiscard(ctx).WithGroup("generate")

	gen, ok := s.handle.Generator()
	if !ok {
		logger.Warn("rejecting request", "reason", ErrNotReady.Error())
		return Response{}, ErrNotReady
	}

	seed := ResolveSeed(req.Seed, s.draw)
	logger = logger.With("seed", seed)
	logger.Info("generating image",
		"prompt", log.Truncate(req.Prompt, 100),
		"negative_prompt", log.Truncate(req.NegativePrompt, 50),
		"width", req.Width,
		"height", req.Height,
		"steps", req.NumInferenceSteps,
		"true_cfg_scale", req.TrueCFGScale,
	)
	for _, warning := range req.Warnings() {
		logger.Warn("passing through unusual parameter", "warning", warning)
	}

	img, err := s.invoke(ctx, gen, req, seed)
	if err != nil {
		logger.Error("generation failed", "error", err)
		return Response{}, err
	}

	artifact, err := Encode(img)
	if err != nil {
		logger.Error("encoding failed", "error", err)
		return Response{}, &InvocationError{Err: fmt.Errorf("encode png: %w", err)}
	}
	logger.Info("image generated successfully", "bytes", len(artifact.PNG))

	record := Record{
		ID:        uuid.NewString(),
		Request:   req,
		SeedUsed:  seed,
		Artifact:  artifact,
		CreatedAt: s.now().UTC(),
	}
	if err := s.recorder.Record(context.WithoutCancel(ctx), record); err != nil {
		logger.Warn("failed to archive generation", "id", record.ID, "error", err)
	}

	return Response{ImageBase64: artifact.Base64(), SeedUsed: seed}, nil
}

// invoke holds an admission slot only for the capability call itself. Once
// admitted the call is detached from ctx and runs to completion.
func (s *Service) invoke(ctx context.Context, gen pipeline.Generator, req Request, seed int64) (image.Image, error) {
	release, err := s.gate.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("waiting for capability: %w", err)
	}
	defer release()

	img, err := gen.Generate(context.WithoutCancel(ctx), req.Params(seed))
	if err != nil {
		return nil, &InvocationError{Err: err}
	}
	return img, nil
}
