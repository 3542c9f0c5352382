package genclient

import (
	"errors"
	"strings"

	"github.com/dmorgan81/genserve/internal/capability"
	"github.com/dmorgan81/genserve/internal/generate"
)

// Quality suffixes appended to a prompt, keyed by the prompt's language.
var Enhancements = map[string]string{
	"english": ", Ultra HD, 4K, cinematic composition.",
	"chinese": ", 超清，4K，电影级构图.",
	"none":    "",
}

var ErrEmptyPrompt = errors.New("please enter a prompt")

// Options is what a user chooses before asking for an image.
type Options struct {
	Prompt         string
	NegativePrompt string
	Ratio          string
	Width, Height  int
	Steps          int
	CFGScale       float64
	Seed           int64 // wire form, -1 for random
	Language       string
	Enhancement    string
}

// Request turns user options into a generation request. An explicit width
// and height win over the aspect ratio; a custom enhancement wins over the
// language suffix.
func (o Options) Request() (generate.Request, error) {
	if strings.TrimSpace(o.Prompt) == "" {
		return generate.Request{}, ErrEmptyPrompt
	}

	suffix := o.Enhancement
	if suffix == "" {
		var ok bool
		if suffix, ok = Enhancements[strings.ToLower(o.Language)]; !ok && o.Language != "" {
			return generate.Request{}, errors.New("unknown language enhancement " + o.Language)
		}
	}

	req := generate.NewRequest(o.Prompt + suffix)
	if strings.TrimSpace(o.NegativePrompt) != "" {
		req.NegativePrompt = o.NegativePrompt
	}
	if o.Ratio != "" {
		ratio, ok := capability.LookupAspectRatio(o.Ratio)
		if !ok {
			return generate.Request{}, errors.New("unknown aspect ratio " + o.Ratio)
		}
		req.Width, req.Height = ratio.Width, ratio.Height
	}
	if o.Width > 0 && o.Height > 0 {
		req.Width, req.Height = o.Width, o.Height
	}
	if o.Steps > 0 {
		req.NumInferenceSteps = o.Steps
	}
	if o.CFGScale > 0 {
		req.TrueCFGScale = o.CFGScale
	}
	req.Seed = generate.SeedFromWire(o.Seed)
	return req, nil
}
