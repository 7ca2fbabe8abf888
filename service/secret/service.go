// Package secret loads credentials and signing material through viant/scy.
package secret

import (
	"context"
	"fmt"
	"reflect"

	"github.com/viant/scy"
	"github.com/viant/scy/cred"
)

// Service reveals secrets stored at scy resource URLs.
type Service struct {
	scyService *scy.Service
}

// New creates a secret service.
func New() *Service {
	return &Service{scyService: scy.New()}
}

// Reveal loads a raw secret. Key is the scy encryption key, e.g. blowfish://default;
// empty means the resource is stored in plain text.
func (s *Service) Reveal(ctx context.Context, URL, key string) (string, error) {
	resource := scy.NewResource(nil, URL, key)
	secret, err := s.scyService.Load(ctx, resource)
	if err != nil {
		return "", fmt.Errorf("failed to load secret from %s: %w", URL, err)
	}
	return secret.String(), nil
}

// Basic loads a username/password credential.
func (s *Service) Basic(ctx context.Context, URL, key string) (*cred.Basic, error) {
	resource := scy.NewResource(reflect.TypeOf(cred.Basic{}), URL, key)
	secret, err := s.scyService.Load(ctx, resource)
	if err != nil {
		return nil, fmt.Errorf("failed to load credentials from %s: %w", URL, err)
	}
	switch actual := secret.Target.(type) {
	case *cred.Basic:
		return actual, nil
	case cred.Basic:
		return &actual, nil
	}
	return nil, fmt.Errorf("unexpected credential type %T at %s", secret.Target, URL)
}
