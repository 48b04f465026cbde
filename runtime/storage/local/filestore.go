// Package local provides a filesystem-backed recording store.
package local

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/AltairaLabs/InterviewKit/runtime/logger"
	"github.com/AltairaLabs/InterviewKit/runtime/storage"
)

const metaSuffix = ".meta"

// FileStoreConfig configures the local filesystem storage backend.
type FileStoreConfig struct {
	// BaseDir is the root directory for recordings
	BaseDir string

	// BaseURL prefixes the key in returned URLs. When empty a file:// URL
	// is returned instead.
	BaseURL string
}

// Metadata is written next to every stored object.
type Metadata struct {
	Key         string    `json:"key"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	StoredAt    time.Time `json:"stored_at"`
}

// FileStore implements storage.ObjectStore on the local filesystem.
type FileStore struct {
	config FileStoreConfig
}

var _ storage.ObjectStore = (*FileStore)(nil)

// NewFileStore creates a new local filesystem storage backend.
func NewFileStore(config FileStoreConfig) (*FileStore, error) {
	if config.BaseDir == "" {
		return nil, fmt.Errorf("base directory is required")
	}
	if err := os.MkdirAll(config.BaseDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	config.BaseURL = strings.TrimSuffix(config.BaseURL, "/")
	return &FileStore{config: config}, nil
}

// Upload writes data under key, replacing any previous object.
func (fs *FileStore) Upload(ctx context.Context, key, contentType string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	filePath, err := fs.resolve(key)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0750); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	if err := writeFileAtomic(filePath, data); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	meta := Metadata{
		Key:         key,
		ContentType: contentType,
		SizeBytes:   int64(len(data)),
		StoredAt:    time.Now().UTC(),
	}
	if err := storeMetadata(filePath, &meta); err != nil {
		logger.Warn("Failed to store metadata", "path", filePath, "error", err)
	}

	return fs.url(key, filePath)
}

// Delete removes the object and its metadata. Missing objects return
// storage.ErrNotFound.
func (fs *FileStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	filePath, err := fs.resolve(key)
	if err != nil {
		return err
	}

	_ = os.Remove(filePath + metaSuffix)
	if err := os.Remove(filePath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", storage.ErrNotFound, key)
		}
		return fmt.Errorf("failed to delete recording: %w", err)
	}

	fs.cleanupEmptyDirs(filepath.Dir(filePath))
	return nil
}

// Stat returns the metadata stored alongside key.
func (fs *FileStore) Stat(key string) (*Metadata, error) {
	filePath, err := fs.resolve(key)
	if err != nil {
		return nil, err
	}
	meta, err := loadMetadata(filePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, key)
	}
	return meta, err
}

// Handler serves stored objects over HTTP, keyed by the request path. It
// is meant to be mounted under the prefix used for BaseURL.
func (fs *FileStore) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		key := strings.TrimPrefix(r.URL.Path, "/")
		if strings.HasSuffix(key, metaSuffix) {
			http.NotFound(w, r)
			return
		}
		filePath, err := fs.resolve(key)
		if err != nil {
			http.Error(w, "invalid key", http.StatusBadRequest)
			return
		}
		meta, err := loadMetadata(filePath)
		if err == nil && meta.ContentType != "" {
			w.Header().Set("Content-Type", meta.ContentType)
		}
		f, err := os.Open(filePath) //nolint:gosec // path validated by resolve
		if err != nil {
			http.NotFound(w, r)
			return
		}
		defer f.Close()
		info, err := f.Stat()
		if err != nil || info.IsDir() {
			http.NotFound(w, r)
			return
		}
		http.ServeContent(w, r, filepath.Base(filePath), info.ModTime(), f)
	})
}

func (fs *FileStore) resolve(key string) (string, error) {
	if err := storage.ValidateKey(key); err != nil {
		return "", err
	}
	filePath := filepath.Join(fs.config.BaseDir, filepath.FromSlash(key))
	if err := fs.validatePath(filePath); err != nil {
		return "", fmt.Errorf("%w: %v", storage.ErrInvalidKey, err)
	}
	return filePath, nil
}

func (fs *FileStore) url(key, filePath string) (string, error) {
	if fs.config.BaseURL != "" {
		escaped := strings.Split(key, "/")
		for i, seg := range escaped {
			escaped[i] = url.PathEscape(seg)
		}
		return fs.config.BaseURL + "/" + strings.Join(escaped, "/"), nil
	}
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}
	return "file://" + filepath.ToSlash(absPath), nil
}

// validatePath checks that path stays within the base directory, including
// after symlink resolution.
func (fs *FileStore) validatePath(path string) error {
	absBase, err := filepath.Abs(fs.config.BaseDir)
	if err != nil {
		return fmt.Errorf("failed to resolve base directory: %w", err)
	}
	absBase = filepath.Clean(absBase)

	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}
	absPath = filepath.Clean(absPath)

	if !within(absPath, absBase) {
		return fmt.Errorf("path %q is outside base directory %q", path, fs.config.BaseDir)
	}

	if _, err := os.Lstat(absPath); err == nil {
		realBase, err := filepath.EvalSymlinks(absBase)
		if err != nil {
			realBase = absBase
		}
		realPath, err := filepath.EvalSymlinks(absPath)
		if err != nil {
			return fmt.Errorf("failed to resolve symlinks: %w", err)
		}
		if !within(realPath, realBase) {
			return fmt.Errorf("path %q resolves outside base directory (symlink attack)", path)
		}
	}
	return nil
}

func within(path, base string) bool {
	sep := string(filepath.Separator)
	return path == base || strings.HasPrefix(path+sep, base+sep)
}

func (fs *FileStore) cleanupEmptyDirs(dir string) {
	base := filepath.Clean(fs.config.BaseDir)
	dir = filepath.Clean(dir)
	if dir == base || !within(dir, base) {
		return
	}

	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) > 0 {
		return
	}
	_ = os.Remove(dir)
	fs.cleanupEmptyDirs(filepath.Dir(dir))
}

func writeFileAtomic(path string, data []byte) error {
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return err
	}
	// Rename is atomic on POSIX systems.
	return os.Rename(tempPath, path)
}

func storeMetadata(filePath string, meta *Metadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filePath+metaSuffix, data, 0600)
}

func loadMetadata(filePath string) (*Metadata, error) {
	data, err := os.ReadFile(filePath + metaSuffix) //nolint:gosec // path validated by caller
	if err != nil {
		return nil, err
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}
