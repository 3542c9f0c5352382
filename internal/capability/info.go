package capability

import (
	"github.com/samber/lo"
)

type AspectRatio struct {
	Name   string
	Width  int
	Height int
}

// AspectRatios are the canonical pixel pairs for each recommended ratio.
var AspectRatios = []AspectRatio{
	{"1:1", 1328, 1328},
	{"16:9", 1664, 928},
	{"9:16", 928, 1664},
	{"4:3", 1472, 1140},
	{"3:4", 1140, 1472},
	{"3:2", 1584, 1056},
	{"2:3", 1056, 1584},
}

func LookupAspectRatio(name string) (AspectRatio, bool) {
	return lo.Find(AspectRatios, func(r AspectRatio) bool { return r.Name == name })
}

// Info is the static /model-info payload.
type Info struct {
	ModelName               string            `json:"model_name"`
	ModelType               string            `json:"model_type"`
	Capabilities            []string          `json:"capabilities"`
	SupportedParameters     map[string]string `json:"supported_parameters"`
	RecommendedAspectRatios map[string][2]int `json:"recommended_aspect_ratios"`
}

func NewInfo(modelName string) Info {
	return Info{
		ModelName: modelName,
		ModelType: "Text-to-Image Diffusion Model",
		Capabilities: []string{
			"High-quality image generation",
			"Complex text rendering (English & Chinese)",
			"Multiple aspect ratios",
			"Precise image editing",
			"Style transfer",
		},
		SupportedParameters: map[string]string{
			"prompt":              "Text description of the image to generate",
			"negative_prompt":     "Text description of what to avoid in the image",
			"num_inference_steps": "Number of denoising steps (10-100, default: 50)",
			"width":               "Image width in pixels",
			"height":              "Image height in pixels",
			"true_cfg_scale":      "Classifier-free guidance scale (1.0-10.0, default: 4.0)",
			"seed":                "Random seed for reproducible results (-1 for random)",
		},
		RecommendedAspectRatios: lo.SliceToMap(AspectRatios, func(r AspectRatio) (string, [2]int) {
			return r.Name, [2]int{r.Width, r.Height}
		}),
	}
}
