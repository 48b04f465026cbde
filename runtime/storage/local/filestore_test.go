package local_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AltairaLabs/InterviewKit/runtime/storage"
	"github.com/AltairaLabs/InterviewKit/runtime/storage/local"
)

func newStore(t *testing.T, baseURL string) (*local.FileStore, string) {
	t.Helper()
	dir := t.TempDir()
	fs, err := local.NewFileStore(local.FileStoreConfig{BaseDir: dir, BaseURL: baseURL})
	require.NoError(t, err)
	return fs, dir
}

func TestNewFileStore(t *testing.T) {
	t.Run("creates base directory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "recordings")
		fs, err := local.NewFileStore(local.FileStoreConfig{BaseDir: dir})
		require.NoError(t, err)
		require.NotNil(t, fs)
		assert.DirExists(t, dir)
	})

	t.Run("fails without base directory", func(t *testing.T) {
		fs, err := local.NewFileStore(local.FileStoreConfig{})
		assert.Nil(t, fs)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "base directory is required")
	})
}

func TestFileStore_Upload(t *testing.T) {
	ctx := context.Background()

	t.Run("writes data and metadata", func(t *testing.T) {
		fs, dir := newStore(t, "")
		u, err := fs.Upload(ctx, "recordings/s1.tar", "application/x-tar", []byte("bundle"))
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(u, "file://"))
		assert.True(t, strings.HasSuffix(u, "/recordings/s1.tar"))

		data, err := os.ReadFile(filepath.Join(dir, "recordings", "s1.tar"))
		require.NoError(t, err)
		assert.Equal(t, "bundle", string(data))

		meta, err := fs.Stat("recordings/s1.tar")
		require.NoError(t, err)
		assert.Equal(t, "application/x-tar", meta.ContentType)
		assert.Equal(t, int64(6), meta.SizeBytes)
		assert.NoFileExists(t, filepath.Join(dir, "recordings", "s1.tar.tmp"))
	})

	t.Run("uses base URL when configured", func(t *testing.T) {
		fs, _ := newStore(t, "https://cdn.example.com/media/")
		u, err := fs.Upload(ctx, "recordings/a b.tar", "application/x-tar", []byte("x"))
		require.NoError(t, err)
		assert.Equal(t, "https://cdn.example.com/media/recordings/a%20b.tar", u)
	})

	t.Run("overwrites existing key", func(t *testing.T) {
		fs, dir := newStore(t, "")
		_, err := fs.Upload(ctx, "s1.tar", "application/x-tar", []byte("first"))
		require.NoError(t, err)
		_, err = fs.Upload(ctx, "s1.tar", "application/x-tar", []byte("second"))
		require.NoError(t, err)

		data, err := os.ReadFile(filepath.Join(dir, "s1.tar"))
		require.NoError(t, err)
		assert.Equal(t, "second", string(data))
	})

	t.Run("rejects traversal", func(t *testing.T) {
		fs, _ := newStore(t, "")
		_, err := fs.Upload(ctx, "../escape.tar", "application/x-tar", []byte("x"))
		assert.ErrorIs(t, err, storage.ErrInvalidKey)
	})

	t.Run("rejects symlink escape", func(t *testing.T) {
		fs, dir := newStore(t, "")
		outside := t.TempDir()
		require.NoError(t, os.Symlink(outside, filepath.Join(dir, "link")))
		target := filepath.Join(outside, "victim.tar")
		require.NoError(t, os.WriteFile(target, []byte("keep"), 0600))

		_, err := fs.Upload(ctx, "link/victim.tar", "application/x-tar", []byte("x"))
		assert.ErrorIs(t, err, storage.ErrInvalidKey)

		data, err := os.ReadFile(target)
		require.NoError(t, err)
		assert.Equal(t, "keep", string(data))
	})

	t.Run("honours cancelled context", func(t *testing.T) {
		fs, _ := newStore(t, "")
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := fs.Upload(cctx, "s1.tar", "application/x-tar", []byte("x"))
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestFileStore_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("removes file metadata and empty dirs", func(t *testing.T) {
		fs, dir := newStore(t, "")
		_, err := fs.Upload(ctx, "recordings/2026/s1.tar", "application/x-tar", []byte("x"))
		require.NoError(t, err)

		require.NoError(t, fs.Delete(ctx, "recordings/2026/s1.tar"))
		assert.NoFileExists(t, filepath.Join(dir, "recordings", "2026", "s1.tar"))
		assert.NoFileExists(t, filepath.Join(dir, "recordings", "2026", "s1.tar.meta"))
		assert.NoDirExists(t, filepath.Join(dir, "recordings"))
		assert.DirExists(t, dir)
	})

	t.Run("keeps non-empty dirs", func(t *testing.T) {
		fs, dir := newStore(t, "")
		_, err := fs.Upload(ctx, "recordings/a.tar", "application/x-tar", []byte("a"))
		require.NoError(t, err)
		_, err = fs.Upload(ctx, "recordings/b.tar", "application/x-tar", []byte("b"))
		require.NoError(t, err)

		require.NoError(t, fs.Delete(ctx, "recordings/a.tar"))
		assert.FileExists(t, filepath.Join(dir, "recordings", "b.tar"))
	})

	t.Run("missing object", func(t *testing.T) {
		fs, _ := newStore(t, "")
		err := fs.Delete(ctx, "nope.tar")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestFileStore_Stat_Missing(t *testing.T) {
	fs, _ := newStore(t, "")
	_, err := fs.Stat("missing.tar")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestFileStore_Handler(t *testing.T) {
	fs, _ := newStore(t, "")
	_, err := fs.Upload(context.Background(), "recordings/s1.tar", "application/x-tar", []byte("bundle"))
	require.NoError(t, err)

	srv := httptest.NewServer(fs.Handler())
	defer srv.Close()

	get := func(path string) (*http.Response, string) {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp, string(body)
	}

	resp, body := get("/recordings/s1.tar")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/x-tar", resp.Header.Get("Content-Type"))
	assert.Equal(t, "bundle", body)

	resp, _ = get("/recordings/s1.tar.meta")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = get("/recordings/missing.tar")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = get("/recordings")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	post, err := http.Post(srv.URL+"/recordings/s1.tar", "text/plain", strings.NewReader("x"))
	require.NoError(t, err)
	post.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, post.StatusCode)
}
