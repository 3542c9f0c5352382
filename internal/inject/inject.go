package inject

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/dmorgan81/genserve/internal/accel"
	"github.com/dmorgan81/genserve/internal/archive"
	"github.com/dmorgan81/genserve/internal/capability"
	"github.com/dmorgan81/genserve/internal/config"
	"github.com/dmorgan81/genserve/internal/feed"
	"github.com/dmorgan81/genserve/internal/gate"
	"github.com/dmorgan81/genserve/internal/generate"
	"github.com/dmorgan81/genserve/internal/handler"
	"github.com/dmorgan81/genserve/internal/log"
	"github.com/dmorgan81/genserve/internal/page"
	"github.com/dmorgan81/genserve/internal/param"
	"github.com/dmorgan81/genserve/internal/pipeline"
	"github.com/dmorgan81/genserve/internal/store"
	"github.com/samber/do"
	"github.com/samber/lo"
)

// UpstreamPollInterval is how often an upstream worker's /health is polled
// while its model loads.
var UpstreamPollInterval = 2 * time.Second

func Setup(ctx context.Context, cfg *config.Config) *do.Injector {
	log := log.FromContextOrDiscard(ctx)

	injector := do.NewWithOpts(&do.InjectorOpts{
		Logf: func(format string, args ...any) {
			log.Debug(fmt.Sprintf(format, args...))
		},
	})
	do.ProvideValue(injector, cfg)

	do.Provide[aws.Config](injector, func(i *do.Injector) (aws.Config, error) {
		return awsconfig.LoadDefaultConfig(ctx)
	})
	do.Provide[*ssm.Client](injector, func(i *do.Injector) (*ssm.Client, error) {
		return ssm.NewFromConfig(do.MustInvoke[aws.Config](i)), nil
	})
	do.Provide[*s3.Client](injector, func(i *do.Injector) (*s3.Client, error) {
		return s3.NewFromConfig(do.MustInvoke[aws.Config](i)), nil
	})
	do.Provide[*cloudfront.Client](injector, func(i *do.Injector) (*cloudfront.Client, error) {
		return cloudfront.NewFromConfig(do.MustInvoke[aws.Config](i)), nil
	})
	// The generation client carries no timeout: once admitted an invocation
	// runs as long as the capability takes.
	do.ProvideValue[*http.Client](injector, &http.Client{})
	do.ProvideNamedValue[*http.Client](injector, "health_client", &http.Client{Timeout: cfg.Capability.HealthTimeout})
	do.Provide[param.Fetcher](injector, param.NewParameterStoreFetcher)

	do.ProvideNamedValue[string](injector, "model_name", cfg.Capability.Name)
	do.ProvideNamedValue[string](injector, "bucket", cfg.Archive.Bucket)
	do.ProvideNamedValue[string](injector, "distribution", cfg.Archive.Distribution)
	do.ProvideNamedValue[string](injector, "feed_title", cfg.Archive.Title)
	do.ProvideNamedValue[string](injector, "base_url", cfg.Archive.BaseURL)

	provideCapability(ctx, injector, cfg)
	provideArchive(injector, cfg)

	do.Provide[*generate.Service](injector, generate.NewService)
	do.Provide[*handler.Handler](injector, handler.NewHandler)

	return injector
}

func provideCapability(ctx context.Context, injector *do.Injector, cfg *config.Config) {
	do.ProvideValue(injector, capability.NewHandle(cfg.Capability.Name))
	do.ProvideValue(injector, gate.New(cfg.Admission.MaxConcurrent))
	do.ProvideValue(injector, capability.NewInfo(cfg.Capability.Name))

	do.Provide[accel.Inventory](injector, func(i *do.Injector) (accel.Inventory, error) {
		switch cfg.Accelerators.Source {
		case "static":
			return accel.Static(lo.Map(cfg.Accelerators.Devices, func(d accel.Device, idx int) accel.Device {
				d.Index = idx
				return d
			})), nil
		case "nvidia-smi":
			return accel.NvidiaSMI{Path: cfg.Accelerators.NvidiaSMI}, nil
		case "upstream":
			return accel.Upstream{Client: do.MustInvokeNamed[*http.Client](i, "health_client"), Endpoint: cfg.Capability.Endpoint}, nil
		default:
			return accel.None{}, nil
		}
	})
	do.Provide[*capability.Reporter](injector, func(i *do.Injector) (*capability.Reporter, error) {
		return &capability.Reporter{
			Handle:    do.MustInvoke[*capability.Handle](i),
			Inventory: do.MustInvoke[accel.Inventory](i),
			Gate:      do.MustInvoke[*gate.Gate](i),
		}, nil
	})

	do.Provide[capability.Loader](injector, func(i *do.Injector) (capability.Loader, error) {
		client := do.MustInvoke[*http.Client](i)
		switch cfg.Capability.Backend {
		case "upstream":
			return func(ctx context.Context) (pipeline.Generator, error) {
				ctx, cancel := context.WithTimeout(ctx, cfg.Capability.LoadTimeout)
				defer cancel()
				gen := &pipeline.UpstreamGenerator{
					Client:       client,
					HealthClient: do.MustInvokeNamed[*http.Client](i, "health_client"),
					Endpoint:     cfg.Capability.Endpoint,
				}
				if err := gen.WaitLoaded(ctx, UpstreamPollInterval); err != nil {
					return nil, err
				}
				return gen, nil
			}, nil
		case "dezgo":
			return func(ctx context.Context) (pipeline.Generator, error) {
				var fetcher param.Fetcher
				if cfg.Capability.APIKey == "" {
					fetcher = do.MustInvoke[param.Fetcher](i)
				}
				key, err := param.Resolve(ctx, fetcher, cfg.Capability.APIKey, cfg.Capability.APIKeyParam)
				if err != nil {
					return nil, fmt.Errorf("resolve dezgo key: %w", err)
				}
				return &pipeline.DezgoGenerator{
					Client:  client,
					Key:     key,
					Model:   cfg.Capability.Model,
					BaseURL: cfg.Capability.Endpoint,
				}, nil
			}, nil
		default:
			return func(context.Context) (pipeline.Generator, error) {
				return &pipeline.NoiseGenerator{MaxPixels: cfg.Capability.MaxPixels}, nil
			}, nil
		}
	})
}

func provideArchive(injector *do.Injector, cfg *config.Config) {
	switch cfg.Archive.Backend {
	case "file":
		do.ProvideValue[store.Uploader](injector, &store.FileUploader{Dir: cfg.Archive.Dir})
		do.ProvideValue[store.Lister](injector, &store.FileLister{Dir: cfg.Archive.Dir})
	case "s3":
		do.Provide[store.Uploader](injector, store.NewS3Uploader)
		do.Provide[store.Lister](injector, store.NewS3Lister)
	default:
		do.ProvideValue[generate.Recorder](injector, generate.DiscardRecorder{})
		return
	}

	if cfg.Archive.Distribution != "" {
		do.Provide[store.Invalidator](injector, store.NewCloudFrontInvalidator)
	} else {
		do.ProvideValue[store.Invalidator](injector, store.NopInvalidator{})
	}
	do.ProvideValue(injector, &page.Templator{})
	do.Provide[generate.Recorder](injector, archive.NewArchiver)
	do.Provide[*feed.Generator](injector, feed.NewGenerator)
}
