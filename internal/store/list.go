package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dmorgan81/genserve/internal/log"
)

// Object is an archived image and the metadata it was uploaded with.
type Object struct {
	Name     string
	Metadata map[string]string
	Modified time.Time
}

type Lister interface {
	List(context.Context) ([]Object, error)
}

// archived reports whether name is a generated image rather than an alias.
func archived(name string) bool {
	return strings.HasSuffix(name, ".png") && !strings.HasPrefix(name, "latest")
}

type FileLister struct {
	Dir string
}

func (l *FileLister) List(ctx context.Context) ([]Object, error) {
	log := log.FromContextOrDiscard(ctx).WithGroup("file").With("dir", l.Dir)
	log.Info("listing archive")

	entries, err := os.ReadDir(l.Dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var objs []Object
	for _, e := range entries {
		if e.IsDir() || !archived(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, err
		}

		obj := Object{Name: e.Name(), Modified: info.ModTime(), Metadata: map[string]string{}}
		data, err := os.ReadFile(filepath.Join(l.Dir, e.Name()+sidecarExt))
		switch {
		case err == nil:
			var meta sidecar
			if err := json.Unmarshal(data, &meta); err != nil {
				log.Warn("skipping unreadable metadata", "file", e.Name(), "error", err)
			} else if meta.Metadata != nil {
				obj.Metadata = meta.Metadata
			}
		case !os.IsNotExist(err):
			return nil, err
		}
		objs = append(objs, obj)
	}

	sort.Slice(objs, func(i, j int) bool { return objs[i].Modified.Before(objs[j].Modified) })
	return objs, nil
}
