package feed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dmorgan81/genserve/internal/archive"
	"github.com/dmorgan81/genserve/internal/log"
	"github.com/dmorgan81/genserve/internal/store"
	"github.com/gorilla/feeds"
	"github.com/samber/do"
	"github.com/samber/lo"
)

type Generator struct {
	lister  store.Lister
	title   string
	baseURL string
	now     func() time.Time
}

func NewGenerator(i *do.Injector) (*Generator, error) {
	return &Generator{
		lister:  do.MustInvoke[store.Lister](i),
		title:   do.MustInvokeNamed[string](i, "feed_title"),
		baseURL: strings.TrimRight(do.MustInvokeNamed[string](i, "base_url"), "/"),
		now:     time.Now,
	}, nil
}

func (g *Generator) link(name string) string {
	return lo.Ternary(g.baseURL == "", "/"+name, g.baseURL+"/"+name)
}

// Generate renders every archived image as an RSS item, newest first.
func (g *Generator) Generate(ctx context.Context) ([]byte, error) {
	log := log.FromContextOrDiscard(ctx).WithGroup("feed")
	log.Info("generating rss feed")

	objs, err := g.lister.List(ctx)
	if err != nil {
		return nil, err
	}

	feed := feeds.Feed{
		Title:       g.title,
		Description: "Generated images",
		Link:        &feeds.Link{Href: g.link("")},
		Updated:     g.now(),
	}
	for _, obj := range objs {
		meta := obj.Metadata
		page := strings.TrimSuffix(obj.Name, ".png") + ".html"
		feed.Add(&feeds.Item{
			Id:    lo.CoalesceOrEmpty(meta[archive.MetaID], obj.Name),
			Title: fmt.Sprintf("%s:%s:%s", meta[archive.MetaPrompt], meta[archive.MetaModel], meta[archive.MetaSeed]),
			Link:  &feeds.Link{Href: g.link(page)},
			Description: fmt.Sprintf("%sx%s, %s steps, cfg %s, seed %s",
				meta[archive.MetaWidth], meta[archive.MetaHeight], meta[archive.MetaSteps],
				meta[archive.MetaCFGScale], meta[archive.MetaSeed]),
			Enclosure: &feeds.Enclosure{Url: g.link(obj.Name), Type: "image/png", Length: "0"},
			Updated:   obj.Modified,
			Created:   obj.Modified,
		})
	}
	log.Info("feed items collected", "count", len(feed.Items))

	feed.Sort(func(a, b *feeds.Item) bool {
		return a.Updated.After(b.Updated)
	})
	rss, err := feed.ToRss()
	return []byte(rss), err
}
