// Package blob keeps uploaded file content on local disk. Nodes only hold the
// models.BlobRef it hands out.
package blob

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ARDEV04/Personal-file-manager/internal/models"
	"github.com/google/uuid"
)

var ErrNotFound = errors.New("blob not found")

// Disk stores blobs as flat files under Dir. URLs are BaseURL + "/" + key.
type Disk struct {
	Dir     string
	BaseURL string
}

// NewDisk creates dir if needed.
func NewDisk(dir, baseURL string) (*Disk, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Disk{Dir: dir, BaseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

// Put copies r into a new blob. The key keeps the extension of name so the file is
// recognisable on disk.
func (d *Disk) Put(r io.Reader, name string) (*models.BlobRef, int64, error) {
	key := uuid.NewString() + strings.ToLower(filepath.Ext(filepath.Base(name)))

	f, err := os.OpenFile(filepath.Join(d.Dir, key), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, 0, fmt.Errorf("create blob: %w", err)
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(f.Name())
		return nil, 0, fmt.Errorf("write blob: %w", err)
	}
	return &models.BlobRef{Key: key, URL: d.BaseURL + "/" + key}, n, nil
}

// Open returns the content stored under key.
func (d *Disk) Open(key string) (io.ReadSeekCloser, error) {
	p, err := d.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

// Remove deletes the blob. Missing blobs are not an error.
func (d *Disk) Remove(key string) error {
	p, err := d.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (d *Disk) path(key string) (string, error) {
	if key == "" || key != filepath.Base(key) || key == "." || key == ".." {
		return "", fmt.Errorf("%w: invalid key %q", ErrNotFound, key)
	}
	return filepath.Join(d.Dir, key), nil
}
