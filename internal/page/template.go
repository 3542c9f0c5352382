package page

import (
	"bytes"
	"context"
	_ "embed"
	"html/template"
	"strings"
	"sync"
	"time"

	"github.com/dmorgan81/genserve/internal/log"
)

//go:embed assets/entry.html
var entryTmpl string

type Params struct {
	Image          string
	Model          string
	Prompt         string
	NegativePrompt string
	Width, Height  int
	Steps          int
	CFGScale       float64
	Seed           int64
	Created        time.Time
}

// Templator renders the detail page shown next to each archived image.
type Templator struct {
	tmpl *template.Template
	once sync.Once
}

func (g *Templator) Template(ctx context.Context, params Params) ([]byte, error) {
	g.once.Do(func() {
		g.tmpl = template.Must(template.New("entry").Parse(entryTmpl))
	})

	log := log.FromContextOrDiscard(ctx).WithGroup("templator")
	log.Info("generating page", "image", params.Image)

	// A single space is the "no negative prompt" default.
	params.NegativePrompt = strings.TrimSpace(params.NegativePrompt)

	var data bytes.Buffer
	if err := g.tmpl.Execute(&data, params); err != nil {
		return nil, err
	}
	return data.Bytes(), nil
}
