// Package gcs implements scraper.Storage backed by Google Cloud Storage.
package gcs

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/storage"

	"github.com/giorgikuloshvili-boop/Web-Scraper/internal/hash/sha256"
	"github.com/giorgikuloshvili-boop/Web-Scraper/internal/scraper"
)

// Config captures the parameters required to write to GCS.
type Config struct {
	Bucket string `mapstructure:"bucket"`
	Prefix string `mapstructure:"prefix"`
}

// Store uploads one Markdown object per page. Object names follow
// {prefix}/{jobID}/{sha256(url)}.md, matching the filesystem layout.
type Store struct {
	client *storage.Client
	bucket string
	prefix string
	hasher *sha256.Hasher
}

// New creates a GCS-backed store.
func New(client *storage.Client, cfg Config) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &Store{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		hasher: sha256.New(),
	}, nil
}

// Store uploads the Markdown output for pageURL to the configured bucket.
func (s *Store) Store(ctx context.Context, jobID string, pageURL string, markdown string) error {
	if strings.TrimSpace(jobID) == "" {
		return &scraper.StorageError{URL: pageURL, Err: fmt.Errorf("job id is required")}
	}

	name := s.hasher.Hash([]byte(pageURL)) + ".md"
	object := jobID + "/" + name
	if s.prefix != "" {
		object = s.prefix + "/" + object
	}

	writer := s.client.Bucket(s.bucket).Object(object).NewWriter(ctx)
	writer.ContentType = "text/markdown; charset=utf-8"
	if _, err := writer.Write([]byte(markdown)); err != nil {
		if closeErr := writer.Close(); closeErr != nil {
			return &scraper.StorageError{URL: pageURL, Err: fmt.Errorf("write object: %w (close writer: %v)", err, closeErr)}
		}
		return &scraper.StorageError{URL: pageURL, Err: fmt.Errorf("write object: %w", err)}
	}
	if err := writer.Close(); err != nil {
		return &scraper.StorageError{URL: pageURL, Err: fmt.Errorf("close writer: %w", err)}
	}
	return nil
}
