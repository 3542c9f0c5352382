package generate

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/png"
)

// Artifact is a generated image in its transport form, decoupled from the
// capability's in-memory representation.
type Artifact struct {
	PNG []byte
}

func (a Artifact) Base64() string {
	return base64.StdEncoding.EncodeToString(a.PNG)
}

// Encode serialises img losslessly as PNG.
func Encode(img image.Image) (Artifact, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return Artifact{}, err
	}
	return Artifact{PNG: buf.Bytes()}, nil
}
