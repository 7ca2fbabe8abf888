package rubric

import (
	"context"
	"fmt"

	"github.com/viant/afs"
	"gopkg.in/yaml.v3"
)

// Decode parses a YAML (or JSON) rubric document and validates it.
func Decode(data []byte) (*Rubric, error) {
	def := &Definition{}
	if err := yaml.Unmarshal(data, def); err != nil {
		return nil, &ConfigurationError{Problems: []string{fmt.Sprintf("failed to decode rubric: %v", err)}}
	}
	return New(def)
}

// Load reads a rubric from any afs supported location (file://, mem://, gs://, s3://).
func Load(ctx context.Context, fs afs.Service, URL string) (*Rubric, error) {
	if fs == nil {
		fs = afs.New()
	}
	data, err := fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to load rubric %v: %w", URL, err)
	}
	ret, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("rubric %v: %w", URL, err)
	}
	return ret, nil
}
