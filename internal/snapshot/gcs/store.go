// Package gcs provides a snapshot store backed by Google Cloud Storage.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/camilorv/aeropolicy/internal/policy"
)

// Config captures the parameters required to connect to GCS.
type Config struct {
	Bucket string `mapstructure:"bucket" yaml:"bucket"`
	// Prefix namespaces snapshot objects inside a shared bucket.
	Prefix string `mapstructure:"prefix" yaml:"prefix"`
}

// Store writes snapshots as bucket objects named
// {prefix}/{code}/{timestamp}_{hash}.html.
type Store struct {
	client *storage.Client
	bucket string
	prefix string
}

// New creates a GCS-backed snapshot store.
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
	}, nil
}

// Save uploads the snapshot payload.
func (s *Store) Save(ctx context.Context, snap policy.Snapshot) error {
	if snap.SourceCode == "" {
		return fmt.Errorf("source code is required")
	}
	name := fmt.Sprintf("%s_%s.html", snap.CapturedAt.UTC().Format("20060102T150405"), snap.Hash)
	object := s.objectPath(snap.SourceCode, name)

	writer := s.client.Bucket(s.bucket).Object(object).NewWriter(ctx)
	writer.ContentType = "text/html; charset=utf-8"
	if _, err := writer.Write(snap.Payload); err != nil {
		if closeErr := writer.Close(); closeErr != nil {
			return fmt.Errorf("write object: %w (close writer: %v)", err, closeErr)
		}
		return fmt.Errorf("write object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close writer: %w", err)
	}
	return nil
}

// LatestHash lists the source's objects and returns the hash embedded in the
// lexicographically last name.
func (s *Store) LatestHash(ctx context.Context, sourceCode string) (string, bool, error) {
	prefix := s.objectPath(sourceCode, "") + "/"
	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{Prefix: prefix})

	var names []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return "", false, fmt.Errorf("list snapshots: %w", err)
		}
		if strings.HasSuffix(attrs.Name, ".html") {
			names = append(names, attrs.Name)
		}
	}
	if len(names) == 0 {
		return "", false, nil
	}
	sort.Strings(names)

	base := names[len(names)-1]
	if i := strings.LastIndexByte(base, '/'); i >= 0 {
		base = base[i+1:]
	}
	hash := strings.TrimSuffix(base, ".html")
	if i := strings.IndexByte(hash, '_'); i >= 0 {
		hash = hash[i+1:]
	}
	if hash == "" {
		return "", false, nil
	}
	return hash, true, nil
}

func (s *Store) objectPath(sourceCode, name string) string {
	parts := []string{sourceCode}
	if s.prefix != "" {
		parts = append([]string{s.prefix}, parts...)
	}
	if name != "" {
		parts = append(parts, name)
	}
	return strings.Join(parts, "/")
}
