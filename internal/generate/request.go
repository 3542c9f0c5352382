package generate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dmorgan81/genserve/internal/pipeline"
)

const (
	DefaultNegativePrompt = " "
	DefaultSteps          = 50
	DefaultWidth          = 1328
	DefaultHeight         = 1328
	DefaultCFGScale       = 4.0
)

// Request is a fully populated generation request.
type Request struct {
	Prompt            string  `json:"prompt"`
	NegativePrompt    string  `json:"negative_prompt"`
	NumInferenceSteps int     `json:"num_inference_steps"`
	Width             int     `json:"width"`
	Height            int     `json:"height"`
	TrueCFGScale      float64 `json:"true_cfg_scale"`
	Seed              Seed    `json:"seed"`
}

// NewRequest returns a request for prompt with every other field defaulted.
func NewRequest(prompt string) Request {
	return Request{
		Prompt:            prompt,
		NegativePrompt:    DefaultNegativePrompt,
		NumInferenceSteps: DefaultSteps,
		Width:             DefaultWidth,
		Height:            DefaultHeight,
		TrueCFGScale:      DefaultCFGScale,
		Seed:              RandomSeed(),
	}
}

// Issue is one field-level validation failure.
type Issue struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		msgs = append(msgs, fmt.Sprintf("%s: %s", strings.Join(issue.Loc, "."), issue.Msg))
	}
	return "invalid generation request: " + strings.Join(msgs, "; ")
}

// Decode builds a Request from a JSON object, applying defaults for absent or
// null optional fields. Only type errors and a missing prompt are rejected;
// values outside the recommended ranges pass through untouched.
func Decode(data []byte) (Request, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		return Request{}, &ValidationError{Issues: []Issue{{
			Loc:  []string{"body"},
			Msg:  "Input should be a valid JSON object",
			Type: "model_attributes_type",
		}}}
	}

	req := NewRequest("")
	var issues []Issue
	field := func(name string, dst any, typ, msg string) {
		raw, ok := fields[name]
		if !ok || isNull(raw) {
			return
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			issues = append(issues, integerIssue(name, err, typ, msg))
		}
	}
	intField := func(name string, dst *int) {
		raw, ok := fields[name]
		if !ok || isNull(raw) {
			return
		}
		v, err := wholeNumber(raw)
		if err == nil && v != int64(int(v)) {
			err = fmt.Errorf("%d overflows int", v)
		}
		if err != nil {
			issues = append(issues, integerIssue(name, err, "int_type", "Input should be a valid integer"))
			return
		}
		*dst = int(v)
	}

	if raw, ok := fields["prompt"]; !ok || isNull(raw) {
		issues = append(issues, Issue{Loc: []string{"body", "prompt"}, Msg: "Field required", Type: "missing"})
	} else {
		field("prompt", &req.Prompt, "string_type", "Input should be a valid string")
	}
	field("negative_prompt", &req.NegativePrompt, "string_type", "Input should be a valid string")
	intField("num_inference_steps", &req.NumInferenceSteps)
	intField("width", &req.Width)
	intField("height", &req.Height)
	field("true_cfg_scale", &req.TrueCFGScale, "float_type", "Input should be a valid number")
	field("seed", &req.Seed, "int_type", "Input should be a valid integer")

	if len(issues) > 0 {
		return Request{}, &ValidationError{Issues: issues}
	}
	return req, nil
}

func (r *Request) UnmarshalJSON(data []byte) error {
	req, err := Decode(data)
	if err != nil {
		return err
	}
	*r = req
	return nil
}

// Warnings lists values outside the recommended ranges. They are advisory only.
func (r Request) Warnings() []string {
	var warnings []string
	if strings.TrimSpace(r.Prompt) == "" {
		warnings = append(warnings, "prompt is empty")
	}
	if r.NumInferenceSteps < 10 || r.NumInferenceSteps > 100 {
		warnings = append(warnings, fmt.Sprintf("num_inference_steps %d outside recommended range 10-100", r.NumInferenceSteps))
	}
	if r.TrueCFGScale < 1 || r.TrueCFGScale > 10 {
		warnings = append(warnings, fmt.Sprintf("true_cfg_scale %g outside recommended range 1.0-10.0", r.TrueCFGScale))
	}
	if r.Width <= 0 || r.Height <= 0 {
		warnings = append(warnings, fmt.Sprintf("dimensions %dx%d are not positive", r.Width, r.Height))
	}
	return warnings
}

// Params binds the request to an effective seed.
func (r Request) Params(seed int64) pipeline.Params {
	return pipeline.Params{
		Prompt:         r.Prompt,
		NegativePrompt: r.NegativePrompt,
		Width:          r.Width,
		Height:         r.Height,
		Steps:          r.NumInferenceSteps,
		CFGScale:       r.TrueCFGScale,
		Seed:           seed,
	}
}

// integerIssue reports a whole-number field that arrived with a fractional
// part distinctly from any other type error.
func integerIssue(name string, err error, typ, msg string) Issue {
	if errors.Is(err, errFractional) {
		return Issue{
			Loc:  []string{"body", name},
			Msg:  "Input should be a valid integer, got a number with a fractional part",
			Type: "int_from_float",
		}
	}
	return Issue{Loc: []string{"body", name}, Msg: msg, Type: typ}
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
