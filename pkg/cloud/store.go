// Package cloud mirrors save files to a remote storage.
package cloud

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/retrohost/retrohost/pkg/compression/zip"
	"github.com/retrohost/retrohost/pkg/config"
	"github.com/retrohost/retrohost/pkg/logger"
	"github.com/retrohost/retrohost/pkg/os"
)

type Storage interface {
	Save(ctx context.Context, name string, data []byte, tags map[string]string) error
	Load(ctx context.Context, name string) ([]byte, error)
	Has(ctx context.Context, name string) bool
}

// Store makes the storage of the config, nil when there is none.
func Store(ctx context.Context, conf config.Storage, log *logger.Logger) (Storage, error) {
	var st Storage
	switch conf.Provider {
	case "s3":
		s3, err := NewS3Client(ctx, conf.S3Endpoint, conf.S3BucketName, conf.S3AccessKeyId, conf.S3SecretAccessKey, conf.S3Insecure, log)
		if err != nil {
			return nil, err
		}
		st = s3
	case "dir":
		dir, err := NewDir(conf.Dir)
		if err != nil {
			return nil, err
		}
		st = dir
	case "":
	default:
		return nil, fmt.Errorf("unknown storage provider %q", conf.Provider)
	}
	if st != nil && conf.Compress {
		st = &Zip{Storage: st}
	}
	return st, nil
}

// Zip keeps every file zipped in the wrapped storage under name.zip.
type Zip struct{ Storage }

func (z *Zip) Save(ctx context.Context, name string, data []byte, tags map[string]string) error {
	base := path.Base(name)
	if base == "" || base == "." || base == "/" {
		return zip.ErrorInvalidName
	}
	compressed, err := zip.Compress(data, strings.TrimSuffix(base, zip.Ext))
	if err != nil {
		return err
	}
	return z.Storage.Save(ctx, name+zip.Ext, compressed, tags)
}

func (z *Zip) Load(ctx context.Context, name string) ([]byte, error) {
	data, err := z.Storage.Load(ctx, name+zip.Ext)
	if err != nil {
		return nil, err
	}
	d, _, err := zip.Read(data)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (z *Zip) Has(ctx context.Context, name string) bool { return z.Storage.Has(ctx, name+zip.Ext) }

// Dir is a storage in a local folder, e.g. a mounted network drive.
type Dir struct{ root string }

func NewDir(root string) (*Dir, error) {
	if root == "" {
		return nil, fmt.Errorf("no storage dir")
	}
	if err := os.CheckCreateDir(root); err != nil {
		return nil, err
	}
	return &Dir{root: root}, nil
}

func (d *Dir) path(name string) string { return filepath.Join(d.root, filepath.FromSlash(name)) }

func (d *Dir) Save(_ context.Context, name string, data []byte, _ map[string]string) error {
	return os.WriteFileAtomic(d.path(name), data, 0644)
}

func (d *Dir) Load(_ context.Context, name string) ([]byte, error) { return os.ReadFile(d.path(name)) }
func (d *Dir) Has(_ context.Context, name string) bool             { return os.Exists(d.path(name)) }
