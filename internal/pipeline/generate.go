package pipeline

import (
	"context"
	"image"
)

// Params is a fully resolved invocation: the seed is the effective one.
type Params struct {
	Prompt         string  `json:"prompt"`
	NegativePrompt string  `json:"negative_prompt"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	Steps          int     `json:"num_inference_steps"`
	CFGScale       float64 `json:"true_cfg_scale"`
	Seed           int64   `json:"seed"`
}

type Generator interface {
	Generate(context.Context, Params) (image.Image, error)
}
