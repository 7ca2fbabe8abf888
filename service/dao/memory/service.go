// Package memory provides an in-process dao.Store.
package memory

import (
	"context"
	"sync"

	"github.com/viant/intake/model/submission"
	"github.com/viant/intake/model/workflow"
	"github.com/viant/intake/service/dao"
	"github.com/viant/intake/service/dao/criteria"
	"github.com/viant/intake/service/dao/store"
	"github.com/viant/intake/service/identity"
)

type submissionRecord struct {
	Identity   identity.Identity
	Submission *submission.Submission
}

type reference struct {
	Key string
	ID  string
}

// Service implements dao.Store with mutex guarded maps.
type Service struct {
	createMu    sync.Mutex
	submissions *store.MemoryStore[identity.Identity, submissionRecord]
	instances   *store.MemoryStore[string, workflow.Instance]
	identities  *store.MemoryStore[string, reference]
	tokens      *store.MemoryStore[string, reference]
}

var _ dao.Store = (*Service)(nil)

// New creates an empty memory store.
func New() *Service {
	byKey := func(r *reference) string { return r.Key }
	return &Service{
		submissions: store.NewMemoryStore(func(r *submissionRecord) identity.Identity { return r.Identity }),
		instances:   store.NewMemoryStore(func(i *workflow.Instance) string { return i.ID }),
		identities:  store.NewMemoryStore(byKey),
		tokens:      store.NewMemoryStore(byKey),
	}
}

// PutIfAbsent stores s unless identity is already present.
func (s *Service) PutIfAbsent(ctx context.Context, id identity.Identity, sub *submission.Submission) (bool, error) {
	if !id.Valid() {
		return false, dao.ErrInvalidID
	}
	if sub == nil {
		return false, dao.ErrNilEntity
	}
	return s.submissions.Insert(ctx, &submissionRecord{Identity: id, Submission: sub})
}

// LoadSubmission returns the submission stored under id.
func (s *Service) LoadSubmission(ctx context.Context, id identity.Identity) (*submission.Submission, error) {
	record, err := s.submissions.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, dao.ErrNotFound
	}
	return record.Submission, nil
}

// Create persists a new instance.
func (s *Service) Create(ctx context.Context, instance *workflow.Instance) error {
	if instance == nil {
		return dao.ErrNilEntity
	}
	if instance.ID == "" {
		return dao.ErrInvalidID
	}
	s.createMu.Lock()
	defer s.createMu.Unlock()
	if existing, _ := s.instances.Load(ctx, instance.ID); existing != nil {
		return dao.ErrDuplicate
	}
	ok, err := s.identities.Insert(ctx, &reference{Key: string(instance.Identity), ID: instance.ID})
	if err != nil {
		return err
	}
	if !ok {
		return dao.ErrDuplicate
	}
	return s.instances.Save(ctx, instance.Clone())
}

// Load returns a copy of the instance.
func (s *Service) Load(ctx context.Context, id string) (*workflow.Instance, error) {
	instance, err := s.instances.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if instance == nil {
		return nil, dao.ErrNotFound
	}
	return instance.Clone(), nil
}

// LoadByIdentity returns the instance created for identity.
func (s *Service) LoadByIdentity(ctx context.Context, id identity.Identity) (*workflow.Instance, error) {
	ref, err := s.identities.Load(ctx, string(id))
	if err != nil {
		return nil, err
	}
	if ref == nil {
		return nil, dao.ErrNotFound
	}
	return s.Load(ctx, ref.ID)
}

// List returns matching instances ordered by creation time.
func (s *Service) List(ctx context.Context, parameters ...*dao.Parameter) ([]*workflow.Instance, error) {
	instances, err := s.instances.List(ctx, func(i *workflow.Instance) bool {
		return criteria.Match(i, parameters)
	})
	if err != nil {
		return nil, err
	}
	ret := make([]*workflow.Instance, 0, len(instances))
	for _, instance := range instances {
		ret = append(ret, instance.Clone())
	}
	dao.SortInstances(ret)
	return ret, nil
}

// Transition is the compare-and-swap on a single instance.
func (s *Service) Transition(ctx context.Context, id string, expect dao.Expectation, mutate dao.Mutation) (*workflow.Instance, error) {
	next, err := s.instances.Update(ctx, id, func(current *workflow.Instance) (*workflow.Instance, error) {
		return dao.Apply(current, expect, mutate)
	})
	if err != nil {
		return nil, err
	}
	return next.Clone(), nil
}

// BindToken maps tokenHash to instanceID.
func (s *Service) BindToken(ctx context.Context, tokenHash, instanceID string) error {
	if tokenHash == "" || instanceID == "" {
		return dao.ErrInvalidID
	}
	return s.tokens.Save(ctx, &reference{Key: tokenHash, ID: instanceID})
}

// ResolveToken returns the instance id bound to tokenHash.
func (s *Service) ResolveToken(ctx context.Context, tokenHash string) (string, error) {
	ref, err := s.tokens.Load(ctx, tokenHash)
	if err != nil {
		return "", err
	}
	if ref == nil {
		return "", dao.ErrNotFound
	}
	return ref.ID, nil
}

// RevokeToken removes tokenHash; revoking an unknown hash is a no-op.
func (s *Service) RevokeToken(ctx context.Context, tokenHash string) error {
	return s.tokens.Delete(ctx, tokenHash)
}

// Close is a no-op.
func (s *Service) Close() error { return nil }
