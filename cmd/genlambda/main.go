package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/dmorgan81/genserve/internal/capability"
	"github.com/dmorgan81/genserve/internal/config"
	"github.com/dmorgan81/genserve/internal/generate"
	"github.com/dmorgan81/genserve/internal/inject"
	"github.com/dmorgan81/genserve/internal/log"
	"github.com/samber/do"
)

// Handler serves direct Lambda invocations whose payload is a generation
// request.
type Handler struct {
	handle  *capability.Handle
	service *generate.Service
}

func (h *Handler) Handle(ctx context.Context, req generate.Request) (generate.Response, error) {
	logger := log.FromContextOrDiscard(ctx)
	if lc, ok := lambdacontext.FromContext(ctx); ok {
		logger = logger.With("request_id", lc.AwsRequestID)
		ctx = log.NewContext(ctx, logger)
	}

	// Cold starts load inline; the invocation waits instead of failing fast.
	if err := h.handle.Wait(ctx); err != nil {
		logger.Error("capability unavailable", "error", err)
		return generate.Response{}, generate.ErrNotReady
	}
	return h.service.Generate(ctx, req)
}

func main() {
	cfg, err := config.Load(os.Getenv("GENSERVE_CONFIG"))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger := log.New(os.Stderr, log.WithoutTime(), log.WithLevel(log.ParseLevel(cfg.Log.Level)))
	ctx := log.NewContext(context.Background(), logger)
	injector := inject.Setup(ctx, cfg)

	handle := do.MustInvoke[*capability.Handle](injector)
	go func() {
		_ = handle.Load(ctx, do.MustInvoke[capability.Loader](injector))
	}()

	h := &Handler{handle: handle, service: do.MustInvoke[*generate.Service](injector)}
	lambda.StartWithOptions(h.Handle, lambda.WithContext(ctx), lambda.WithEnableSIGTERM(func() {
		_ = injector.Shutdown()
	}))
}
