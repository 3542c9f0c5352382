package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dmorgan81/genserve/internal/log"
)

type UploadParams struct {
	Name        string
	Data        []byte
	ContentType string
	Metadata    map[string]string
}

type Uploader interface {
	Upload(context.Context, UploadParams) error
}

// sidecar is what FileUploader keeps next to every object so a FileLister
// can recover the metadata S3 would otherwise hold.
type sidecar struct {
	ContentType string            `json:"content_type"`
	Metadata    map[string]string `json:"metadata"`
}

const sidecarExt = ".meta.json"

// FileUploader writes objects into Dir.
type FileUploader struct {
	Dir string
}

func (u *FileUploader) Upload(ctx context.Context, params UploadParams) error {
	path := filepath.Join(u.Dir, filepath.Base(params.Name))
	log := log.FromContextOrDiscard(ctx).WithGroup("file").With("file", path)
	log.Info("writing")

	if err := os.MkdirAll(u.Dir, 0o755); err != nil {
		return err
	}
	if err := writeAtomic(path, params.Data); err != nil {
		return err
	}

	meta, err := json.Marshal(sidecar{ContentType: params.ContentType, Metadata: params.Metadata})
	if err != nil {
		return err
	}
	return writeAtomic(path+sidecarExt, meta)
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
