package idgen

import "github.com/google/uuid"

// NewFunc produces a random UUID string.
var NewFunc = func() string { return uuid.New().String() }

// New returns an id for an instance or a token.
func New() string { return NewFunc() }
