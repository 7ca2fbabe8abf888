// Package dao defines durable storage for submissions, instances and the
// continuation token index.
//
// Every backend implements Store. Instance updates go through Transition, a
// compare-and-swap that is the only mutual exclusion in the system.
package dao

import (
	"context"
	"io"

	"github.com/viant/intake/model/submission"
	"github.com/viant/intake/model/workflow"
	"github.com/viant/intake/service/identity"
)

// SubmissionStore keeps normalized submissions keyed by identity.
type SubmissionStore interface {
	// PutIfAbsent stores s unless identity is already present.
	PutIfAbsent(ctx context.Context, id identity.Identity, s *submission.Submission) (bool, error)

	LoadSubmission(ctx context.Context, id identity.Identity) (*submission.Submission, error)
}

// InstanceStore keeps workflow instances. Instances are never deleted.
type InstanceStore interface {
	// Create persists a new instance; ErrDuplicate when its id or identity exists.
	Create(ctx context.Context, instance *workflow.Instance) error

	Load(ctx context.Context, id string) (*workflow.Instance, error)

	LoadByIdentity(ctx context.Context, id identity.Identity) (*workflow.Instance, error)

	List(ctx context.Context, parameters ...*Parameter) ([]*workflow.Instance, error)

	// Transition applies mutate when the stored instance satisfies expect and
	// bumps its revision; otherwise it returns a ConflictError.
	Transition(ctx context.Context, id string, expect Expectation, mutate Mutation) (*workflow.Instance, error)
}

// TokenIndex maps token hashes to instance ids.
type TokenIndex interface {
	BindToken(ctx context.Context, tokenHash, instanceID string) error

	ResolveToken(ctx context.Context, tokenHash string) (string, error)

	RevokeToken(ctx context.Context, tokenHash string) error
}

// Store is implemented by every backend.
type Store interface {
	SubmissionStore
	InstanceStore
	TokenIndex
	io.Closer
}

// Mutation changes an instance copy inside Transition.
type Mutation func(instance *workflow.Instance) error
