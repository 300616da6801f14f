package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var ErrInvalidRef = errors.New("invalid file reference")

// FileStore keeps uploaded binaries such as bill images and QR codes. A ref
// returned by Save is opaque to callers and is what gets stored on records.
type FileStore interface {
	Save(ctx context.Context, folder, filename string, r io.Reader) (ref string, err error)
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
	Delete(ctx context.Context, ref string) error
}

// LocalFileStore writes files below a root directory. Refs have the form
// "<folder>/<uuid><ext>".
type LocalFileStore struct {
	root string
}

func NewLocalFileStore(root string) (*LocalFileStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}
	return &LocalFileStore{root: root}, nil
}

func (s *LocalFileStore) Root() string {
	return s.root
}

func (s *LocalFileStore) Save(ctx context.Context, folder, filename string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	folder = filepath.Base(filepath.Clean("/" + folder))
	if folder == "/" || folder == "." {
		return "", fmt.Errorf("%w: empty folder", ErrInvalidRef)
	}

	dir := filepath.Join(s.root, folder)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create folder %s: %w", folder, err)
	}

	ref := folder + "/" + uuid.NewString() + strings.ToLower(filepath.Ext(filename))
	path := filepath.Join(s.root, filepath.FromSlash(ref))

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("write file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close file: %w", err)
	}
	return ref, nil
}

func (s *LocalFileStore) resolve(ref string) (string, error) {
	if ref == "" || strings.Contains(ref, "..") || strings.HasPrefix(ref, "/") || strings.Contains(ref, `\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}
	return filepath.Join(s.root, filepath.FromSlash(ref)), nil
}

func (s *LocalFileStore) Open(_ context.Context, ref string) (io.ReadCloser, error) {
	path, err := s.resolve(ref)
	if err != nil {
		return nil, err
	}
	return os.Open(path)
}

// Delete removes the file behind ref. Missing files return an error wrapping
// os.ErrNotExist.
func (s *LocalFileStore) Delete(_ context.Context, ref string) error {
	path, err := s.resolve(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("delete %s: %w", ref, err)
	}
	return nil
}
