// Package supabase stores recordings in a Supabase Storage bucket.
package supabase

import (
	"bytes"
	"context"
	"fmt"
	"io"

	storage_go "github.com/supabase-community/storage-go"
	"github.com/supabase-community/supabase-go"

	"github.com/AltairaLabs/InterviewKit/runtime/storage"
)

// Config holds the project credentials and target bucket.
type Config struct {
	URL            string
	ServiceRoleKey string
	Bucket         string
}

// bucketAPI is the subset of the storage client the store uses.
type bucketAPI interface {
	UploadFile(bucketID, relativePath string, data io.Reader, fileOptions ...storage_go.FileOptions) (storage_go.FileUploadResponse, error)
	GetPublicUrl(bucketID, filePath string, urlOptions ...storage_go.UrlOptions) storage_go.SignedUrlResponse
	RemoveFile(bucketID string, paths []string) ([]storage_go.FileUploadResponse, error)
}

// Store implements storage.ObjectStore against Supabase Storage.
type Store struct {
	client bucketAPI
	bucket string
}

var _ storage.ObjectStore = (*Store)(nil)

// New creates a store from project credentials.
func New(cfg Config) (*Store, error) {
	if cfg.URL == "" || cfg.ServiceRoleKey == "" {
		return nil, fmt.Errorf("supabase url and service role key are required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("supabase bucket is required")
	}
	client, err := supabase.NewClient(cfg.URL, cfg.ServiceRoleKey, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to create Supabase client: %w", err)
	}
	return &Store{client: client.Storage, bucket: cfg.Bucket}, nil
}

// Upload stores data under key, overwriting any previous object, and returns
// the object's public URL.
func (s *Store) Upload(ctx context.Context, key, contentType string, data []byte) (string, error) {
	if err := storage.ValidateKey(key); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	upsert := true
	opts := storage_go.FileOptions{ContentType: &contentType, Upsert: &upsert}
	if _, err := s.client.UploadFile(s.bucket, key, bytes.NewReader(data), opts); err != nil {
		return "", fmt.Errorf("failed to upload to Supabase: %w", err)
	}
	return s.client.GetPublicUrl(s.bucket, key).SignedURL, nil
}

// Delete removes the object stored under key.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := storage.ValidateKey(key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.client.RemoveFile(s.bucket, []string{key}); err != nil {
		return fmt.Errorf("failed to delete from Supabase: %w", err)
	}
	return nil
}
