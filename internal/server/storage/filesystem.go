package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Kind selects which asset directory a file lives in. Cover images and
// script JSON payloads are kept apart, each with its own filename prefix.
type Kind string

const (
	KindImage Kind = "images"
	KindJSON  Kind = "json"
)

func (k Kind) prefix() string {
	if k == KindImage {
		return "script-img-"
	}
	return "script-json-"
}

// Store defines the interface for asset storage backends.
// This allows swapping filesystem for S3 or other backends later.
type Store interface {
	Save(kind Kind, ext string, data io.Reader) (string, int64, error)
	Path(kind Kind, filename string) (string, error)
	Delete(kind Kind, filename string) error
	EnsureDirs() error
}

// FileSystemStore keeps uploaded assets on the local filesystem under
// <basePath>/images and <basePath>/json.
type FileSystemStore struct {
	basePath string
}

// NewFileSystemStore creates a new filesystem storage backend.
func NewFileSystemStore(basePath string) *FileSystemStore {
	return &FileSystemStore{basePath: basePath}
}

// Root returns the base directory, for static file serving.
func (fs *FileSystemStore) Root() string {
	return fs.basePath
}

// EnsureDirs creates the asset directories if they don't exist.
func (fs *FileSystemStore) EnsureDirs() error {
	for _, kind := range []Kind{KindImage, KindJSON} {
		dir := filepath.Join(fs.basePath, string(kind))
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create storage directory %s: %w", dir, err)
		}
	}
	return nil
}

// Save writes data to a freshly named file and returns the generated
// filename and the number of bytes written. Names combine a millisecond
// timestamp with a random suffix so concurrent uploads cannot collide.
func (fs *FileSystemStore) Save(kind Kind, ext string, data io.Reader) (string, int64, error) {
	filename := fmt.Sprintf("%s%d-%s%s", kind.prefix(), time.Now().UnixMilli(), uuid.NewString(), ext)
	filePath := filepath.Join(fs.basePath, string(kind), filename)

	file, err := os.Create(filePath)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create file %s: %w", filePath, err)
	}
	defer file.Close()

	n, err := io.Copy(file, data)
	if err != nil {
		// Clean up partial file on error
		os.Remove(filePath)
		return "", 0, fmt.Errorf("failed to write file: %w", err)
	}

	return filename, n, nil
}

// Path returns the absolute path to a stored asset.
// Returns an error if the file does not exist.
func (fs *FileSystemStore) Path(kind Kind, filename string) (string, error) {
	filePath := filepath.Join(fs.basePath, string(kind), filepath.Base(filename))

	if _, err := os.Stat(filePath); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("asset %s not found", filename)
		}
		return "", fmt.Errorf("failed to stat file: %w", err)
	}

	return filePath, nil
}

// Delete removes a stored asset. A missing file is not an error.
func (fs *FileSystemStore) Delete(kind Kind, filename string) error {
	filePath := filepath.Join(fs.basePath, string(kind), filepath.Base(filename))
	if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file %s: %w", filePath, err)
	}
	return nil
}
