// Package fs provides a dao.Store persisted as JSON documents through viant/afs.
//
// Any afs scheme works (file://, mem://, gs://, s3://). Compare-and-swap is
// guarded by an in-process mutex, so a store must be owned by one process.
package fs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"
	"github.com/viant/intake/model/submission"
	"github.com/viant/intake/model/workflow"
	"github.com/viant/intake/service/dao"
	"github.com/viant/intake/service/dao/criteria"
	"github.com/viant/intake/service/identity"
)

const (
	submissionsDir = "submissions"
	instancesDir   = "instances"
	identitiesDir  = "identities"
	tokensDir      = "tokens"
)

// Service implements dao.Store on top of afs.
type Service struct {
	baseURL string
	fs      afs.Service
	mu      sync.RWMutex
	logger  *slog.Logger
}

var _ dao.Store = (*Service)(nil)

// New creates a filesystem store rooted at baseURL.
func New(ctx context.Context, baseURL string, fs afs.Service) (*Service, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}
	if fs == nil {
		fs = afs.New()
	}
	baseURL = url.Normalize(baseURL, file.Scheme)
	for _, dir := range []string{submissionsDir, instancesDir, identitiesDir, tokensDir} {
		location := url.Join(baseURL, dir)
		exists, _ := fs.Exists(ctx, location)
		if exists {
			continue
		}
		if err := fs.Create(ctx, location, file.DefaultDirOsMode, true); err != nil {
			return nil, fmt.Errorf("failed to create %v: %w", location, err)
		}
	}
	return &Service{baseURL: baseURL, fs: fs, logger: slog.Default().With("component", "dao.fs")}, nil
}

// PutIfAbsent stores s unless identity is already present.
func (s *Service) PutIfAbsent(ctx context.Context, id identity.Identity, sub *submission.Submission) (bool, error) {
	if !id.Valid() {
		return false, dao.ErrInvalidID
	}
	if sub == nil {
		return false, dao.ErrNilEntity
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	location := s.path(submissionsDir, string(id)+".json")
	if exists, err := s.fs.Exists(ctx, location); err != nil {
		return false, fmt.Errorf("failed to check submission %v: %w", id.Short(), err)
	} else if exists {
		return false, nil
	}
	if err := s.putJSON(ctx, location, sub); err != nil {
		return false, err
	}
	return true, nil
}

// LoadSubmission returns the submission stored under id.
func (s *Service) LoadSubmission(ctx context.Context, id identity.Identity) (*submission.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ret := &submission.Submission{}
	if err := s.getJSON(ctx, s.path(submissionsDir, string(id)+".json"), ret); err != nil {
		return nil, err
	}
	return ret, nil
}

// Create persists a new instance.
func (s *Service) Create(ctx context.Context, instance *workflow.Instance) error {
	if instance == nil {
		return dao.ErrNilEntity
	}
	if instance.ID == "" {
		return dao.ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, location := range []string{s.instancePath(instance.ID), s.path(identitiesDir, string(instance.Identity))} {
		exists, err := s.fs.Exists(ctx, location)
		if err != nil {
			return fmt.Errorf("failed to check %v: %w", location, err)
		}
		if exists {
			return dao.ErrDuplicate
		}
	}
	if err := s.putJSON(ctx, s.instancePath(instance.ID), instance); err != nil {
		return err
	}
	return s.put(ctx, s.path(identitiesDir, string(instance.Identity)), []byte(instance.ID))
}

// Load returns the instance.
func (s *Service) Load(ctx context.Context, id string) (*workflow.Instance, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.load(ctx, id)
}

func (s *Service) load(ctx context.Context, id string) (*workflow.Instance, error) {
	ret := &workflow.Instance{}
	if err := s.getJSON(ctx, s.instancePath(id), ret); err != nil {
		return nil, err
	}
	return ret, nil
}

// LoadByIdentity returns the instance created for identity.
func (s *Service) LoadByIdentity(ctx context.Context, id identity.Identity) (*workflow.Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, err := s.get(ctx, s.path(identitiesDir, string(id)))
	if err != nil {
		return nil, err
	}
	return s.load(ctx, string(data))
}

// List returns matching instances ordered by creation time.
func (s *Service) List(ctx context.Context, parameters ...*dao.Parameter) ([]*workflow.Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	objects, err := s.fs.List(ctx, s.path(instancesDir))
	if err != nil {
		return nil, fmt.Errorf("failed to list instance files: %w", err)
	}
	var ret []*workflow.Instance
	for _, object := range objects {
		if object.IsDir() || !strings.HasSuffix(object.Name(), ".json") {
			continue
		}
		data, err := s.fs.Download(ctx, object)
		if err != nil {
			s.logger.Warn("failed to read instance file", "url", object.URL(), "error", err)
			continue
		}
		instance := &workflow.Instance{}
		if err := json.Unmarshal(data, instance); err != nil {
			s.logger.Warn("failed to decode instance file", "url", object.URL(), "error", err)
			continue
		}
		if !criteria.Match(instance, parameters) {
			continue
		}
		ret = append(ret, instance)
	}
	dao.SortInstances(ret)
	return ret, nil
}

// Transition is the compare-and-swap on a single instance.
func (s *Service) Transition(ctx context.Context, id string, expect dao.Expectation, mutate dao.Mutation) (*workflow.Instance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	next, err := dao.Apply(current, expect, mutate)
	if err != nil {
		return nil, err
	}
	if err := s.putJSON(ctx, s.instancePath(id), next); err != nil {
		return nil, err
	}
	return next, nil
}

// BindToken maps tokenHash to instanceID.
func (s *Service) BindToken(ctx context.Context, tokenHash, instanceID string) error {
	if tokenHash == "" || instanceID == "" {
		return dao.ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.put(ctx, s.path(tokensDir, tokenHash), []byte(instanceID))
}

// ResolveToken returns the instance id bound to tokenHash.
func (s *Service) ResolveToken(ctx context.Context, tokenHash string) (string, error) {
	if tokenHash == "" {
		return "", dao.ErrInvalidID
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, err := s.get(ctx, s.path(tokensDir, tokenHash))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// RevokeToken removes tokenHash; revoking an unknown hash is a no-op.
func (s *Service) RevokeToken(ctx context.Context, tokenHash string) error {
	if tokenHash == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	location := s.path(tokensDir, tokenHash)
	exists, err := s.fs.Exists(ctx, location)
	if err != nil || !exists {
		return err
	}
	if err := s.fs.Delete(ctx, location); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// Close is a no-op.
func (s *Service) Close() error { return nil }

func (s *Service) path(elements ...string) string {
	return url.Join(s.baseURL, elements...)
}

func (s *Service) instancePath(id string) string {
	return s.path(instancesDir, id+".json")
}

func (s *Service) putJSON(ctx context.Context, location string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %v: %w", location, err)
	}
	return s.put(ctx, location, data)
}

func (s *Service) put(ctx context.Context, location string, data []byte) error {
	if err := s.fs.Upload(ctx, location, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to save %s: %w", location, err)
	}
	return nil
}

func (s *Service) get(ctx context.Context, location string) ([]byte, error) {
	exists, err := s.fs.Exists(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("failed to check %v: %w", location, err)
	}
	if !exists {
		return nil, dao.ErrNotFound
	}
	data, err := s.fs.DownloadWithURL(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("failed to read %v: %w", location, err)
	}
	return data, nil
}

func (s *Service) getJSON(ctx context.Context, location string, v interface{}) error {
	data, err := s.get(ctx, location)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal %v: %w", location, err)
	}
	return nil
}
