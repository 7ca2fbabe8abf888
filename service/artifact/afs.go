package artifact

import (
	"bytes"
	"context"
	"fmt"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"
)

// FileStore writes artifacts through viant/afs under a base URL
// (file://, mem://, gs://, s3://).
type FileStore struct {
	baseURL string
	fs      afs.Service
}

// NewFileStore creates an afs backed store; nil fs uses afs.New().
func NewFileStore(baseURL string, fs afs.Service) *FileStore {
	if fs == nil {
		fs = afs.New()
	}
	return &FileStore{baseURL: url.Normalize(baseURL, file.Scheme), fs: fs}
}

// Put uploads data and returns its URL.
func (s *FileStore) Put(ctx context.Context, path string, data []byte) (string, error) {
	location := url.Join(s.baseURL, path)
	if err := s.fs.Upload(ctx, location, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("failed to upload artifact %s: %w", location, err)
	}
	return location, nil
}

// Get downloads the artifact at path.
func (s *FileStore) Get(ctx context.Context, path string) ([]byte, error) {
	location := url.Join(s.baseURL, path)
	exists, err := s.fs.Exists(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("failed to check if %s exists: %w", location, err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, location)
	}
	data, err := s.fs.DownloadWithURL(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("failed to download artifact %s: %w", location, err)
	}
	return data, nil
}
