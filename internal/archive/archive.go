package archive

import (
	"context"
	"strconv"
	"time"

	"github.com/dmorgan81/genserve/internal/generate"
	"github.com/dmorgan81/genserve/internal/log"
	"github.com/dmorgan81/genserve/internal/page"
	"github.com/dmorgan81/genserve/internal/store"
	"github.com/samber/do"
)

// Metadata keys stored with every archived object.
const (
	MetaID             = "id"
	MetaModel          = "model"
	MetaPrompt         = "prompt"
	MetaNegativePrompt = "negative_prompt"
	MetaSteps          = "steps"
	MetaCFGScale       = "true_cfg_scale"
	MetaWidth          = "width"
	MetaHeight         = "height"
	MetaSeed           = "seed"
	MetaCreated        = "created"
)

// Archiver keeps every generated image with a detail page and points the
// latest aliases at it.
type Archiver struct {
	model       string
	uploader    store.Uploader
	invalidator store.Invalidator
	templator   *page.Templator
}

func NewArchiver(i *do.Injector) (generate.Recorder, error) {
	return &Archiver{
		model:       do.MustInvokeNamed[string](i, "model_name"),
		uploader:    do.MustInvoke[store.Uploader](i),
		invalidator: do.MustInvoke[store.Invalidator](i),
		templator:   do.MustInvoke[*page.Templator](i),
	}, nil
}

func (a *Archiver) metadata(r generate.Record) map[string]string {
	return map[string]string{
		MetaID:             r.ID,
		MetaModel:          a.model,
		MetaPrompt:         r.Request.Prompt,
		MetaNegativePrompt: r.Request.NegativePrompt,
		MetaSteps:          strconv.Itoa(r.Request.NumInferenceSteps),
		MetaCFGScale:       strconv.FormatFloat(r.Request.TrueCFGScale, 'f', -1, 64),
		MetaWidth:          strconv.Itoa(r.Request.Width),
		MetaHeight:         strconv.Itoa(r.Request.Height),
		MetaSeed:           strconv.FormatInt(r.SeedUsed, 10),
		MetaCreated:        r.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (a *Archiver) Record(ctx context.Context, r generate.Record) error {
	log := log.FromContextOrDiscard(ctx).WithGroup("archive").With("id", r.ID)
	log.Info("archiving generation")

	html, err := a.templator.Template(ctx, page.Params{
		Image:          r.ID + ".png",
		Model:          a.model,
		Prompt:         r.Request.Prompt,
		NegativePrompt: r.Request.NegativePrompt,
		Width:          r.Request.Width,
		Height:         r.Request.Height,
		Steps:          r.Request.NumInferenceSteps,
		CFGScale:       r.Request.TrueCFGScale,
		Seed:           r.SeedUsed,
		Created:        r.CreatedAt,
	})
	if err != nil {
		return err
	}

	metadata := a.metadata(r)
	uploads := []store.UploadParams{
		{
			Name:        r.ID + ".png",
			Data:        r.Artifact.PNG,
			ContentType: "image/png",
			Metadata:    metadata,
		},
		{
			Name:        r.ID + ".html",
			Data:        html,
			ContentType: "text/html",
			Metadata:    metadata,
		},
		{
			Name:        "latest.png",
			Data:        r.Artifact.PNG,
			ContentType: "image/png",
			Metadata:    metadata,
		},
		{
			Name:        "latest.html",
			Data:        html,
			ContentType: "text/html",
			Metadata:    metadata,
		},
	}
	for _, u := range uploads {
		if err := a.uploader.Upload(ctx, u); err != nil {
			return err
		}
	}

	paths := []string{"/" + r.ID + ".png", "/" + r.ID + ".html", "/latest.png", "/latest.html"}
	return a.invalidator.Invalidate(ctx, paths)
}
