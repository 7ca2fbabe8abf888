// Package identity derives content-addressed submission identifiers.
//
// The identity is the SHA-256 digest of the RFC 8785 (JCS) canonical JSON
// encoding of the normalized fields, so key order and whitespace never matter
// and the result is reproducible on any machine.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gowebpki/jcs"
	"github.com/viant/intake/model/submission"
)

// Size is the length of an identity in hex characters.
const Size = sha256.Size * 2

// Identity is a hex encoded content digest.
type Identity string

// String returns the identity text.
func (i Identity) String() string { return string(i) }

// Short returns an abbreviated form for logs.
func (i Identity) Short() string {
	if len(i) <= 12 {
		return string(i)
	}
	return string(i[:12])
}

// Valid reports whether i looks like an identity.
func (i Identity) Valid() bool {
	if len(i) != Size {
		return false
	}
	_, err := hex.DecodeString(string(i))
	return err == nil
}

// Canonical returns the canonical byte encoding of the submission fields.
func Canonical(s *submission.Submission) ([]byte, error) {
	if s == nil {
		return nil, errors.New("identity: nil submission")
	}
	data, err := json.Marshal(s.Fields())
	if err != nil {
		return nil, fmt.Errorf("identity: failed to encode fields: %w", err)
	}
	canonical, err := jcs.Transform(data)
	if err != nil {
		return nil, fmt.Errorf("identity: failed to canonicalize fields: %w", err)
	}
	return canonical, nil
}

// Of computes the identity of s.
func Of(s *submission.Submission) (Identity, error) {
	canonical, err := Canonical(s)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return Identity(hex.EncodeToString(sum[:])), nil
}
