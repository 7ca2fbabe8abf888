package dao

import "github.com/viant/intake/model/workflow"

// Expectation guards a Transition.
type Expectation struct {
	// States lists acceptable current states; empty accepts any.
	States []workflow.State
	// TokenHash, when set, must equal the stored token hash.
	TokenHash string
}

// Expect builds an expectation for states.
func Expect(states ...workflow.State) Expectation {
	return Expectation{States: states}
}

// WithToken adds a token hash guard.
func (e Expectation) WithToken(hash string) Expectation {
	e.TokenHash = hash
	return e
}

// Check returns a ConflictError when instance does not satisfy e.
func (e Expectation) Check(instance *workflow.Instance) error {
	if len(e.States) > 0 {
		matched := false
		for _, s := range e.States {
			if instance.State == s {
				matched = true
				break
			}
		}
		if !matched {
			return &ConflictError{ID: instance.ID, Actual: instance.State, Expected: e.States}
		}
	}
	if e.TokenHash != "" && instance.TokenHash != e.TokenHash {
		return &ConflictError{ID: instance.ID, Actual: instance.State, Expected: e.States, Token: true}
	}
	return nil
}

// Apply checks the expectation against current, runs mutate on a copy and
// bumps its revision. Backends call it while holding their CAS guard.
func Apply(current *workflow.Instance, expect Expectation, mutate Mutation) (*workflow.Instance, error) {
	if current == nil {
		return nil, ErrNotFound
	}
	if err := expect.Check(current); err != nil {
		return nil, err
	}
	next := current.Clone()
	if mutate != nil {
		if err := mutate(next); err != nil {
			return nil, err
		}
	}
	next.ID = current.ID
	next.Identity = current.Identity
	next.Revision = current.Revision + 1
	return next, nil
}
