package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/Tomlord1122/todo-app/internal/domain"
)

// AssetStore persists uploaded files under a namespace and returns their key.
type AssetStore interface {
	Store(ctx context.Context, r io.Reader, namespace, ext string) (string, error)
	// Delete removes the asset at key. It returns domain.ErrAssetNotFound
	// when nothing is stored there.
	Delete(ctx context.Context, key string) error
}

// Disk stores assets as files below a root directory. Keys are slash
// separated paths relative to that root, e.g. "covers/<uuid>.png".
type Disk struct {
	root string
}

func NewDisk(root string) (*Disk, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &Disk{root: root}, nil
}

// Root is the directory assets are served from.
func (d *Disk) Root() string {
	return d.root
}

func (d *Disk) Store(ctx context.Context, r io.Reader, namespace, ext string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	namespace = strings.Trim(path.Clean("/"+namespace), "/")
	dir := filepath.Join(d.root, filepath.FromSlash(namespace))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create namespace dir: %w", err)
	}

	key := path.Join(namespace, uuid.NewString()+ext)
	full := filepath.Join(d.root, filepath.FromSlash(key))

	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create asset: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(full)
		return "", fmt.Errorf("write asset: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(full)
		return "", fmt.Errorf("close asset: %w", err)
	}
	return key, nil
}

func (d *Disk) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	full, err := d.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.ErrAssetNotFound
		}
		return fmt.Errorf("remove asset: %w", err)
	}
	return nil
}

// resolve maps key to a file path, rejecting keys that escape the root.
func (d *Disk) resolve(key string) (string, error) {
	clean := path.Clean("/" + key)
	if clean == "/" {
		return "", domain.ErrAssetNotFound
	}
	return filepath.Join(d.root, filepath.FromSlash(strings.TrimPrefix(clean, "/"))), nil
}
