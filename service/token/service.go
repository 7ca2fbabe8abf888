// Package token mints and verifies single-use continuation tokens.
//
// A token is an HS256 JWT whose subject is the instance id and whose jti is
// random. Only the SHA-256 of the jti is persisted, so a leaked store does not
// leak redeemable tokens. Single use is enforced by the store, not here.
package token

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/viant/intake/internal/clock"
	"github.com/viant/intake/internal/idgen"
	"github.com/viant/intake/service/secret"
	"golang.org/x/crypto/hkdf"
)

// Issuer is the iss claim of every token.
const Issuer = "intake"

const keyInfo = "intake-continuation-token"

// MinSecretSize is the minimum accepted master secret length.
const MinSecretSize = 16

// Token is a minted continuation token.
type Token struct {
	Value     string
	ID        string
	Hash      string
	ExpiresAt time.Time
}

// Claims are the verified token claims.
type Claims struct {
	InstanceID string
	ID         string
	Hash       string
	ExpiresAt  time.Time
}

// Service signs and verifies tokens.
type Service struct {
	key []byte
}

// New derives the signing key from a master secret.
func New(master []byte) (*Service, error) {
	if len(master) < MinSecretSize {
		return nil, fmt.Errorf("token secret too short: %d bytes, expected at least %d", len(master), MinSecretSize)
	}
	reader := hkdf.New(sha256.New, master, []byte(Issuer), []byte(keyInfo))
	key := make([]byte, 32)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("token key derivation failed: %w", err)
	}
	return &Service{key: key}, nil
}

// NewFromSecret loads the master secret through scy and derives the signing key.
func NewFromSecret(ctx context.Context, secrets *secret.Service, URL, key string) (*Service, error) {
	master, err := secrets.Reveal(ctx, URL, key)
	if err != nil {
		return nil, err
	}
	return New([]byte(master))
}

// Hash returns the persisted form of a token id.
func Hash(id string) string {
	sum := sha256.Sum256([]byte(id))
	return hex.EncodeToString(sum[:])
}

// Mint creates a token for instanceID that expires at deadline.
func (s *Service) Mint(instanceID string, deadline time.Time) (*Token, error) {
	id := idgen.New()
	now := clock.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    Issuer,
		Subject:   instanceID,
		ID:        id,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(deadline),
	}
	value, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return &Token{Value: value, ID: id, Hash: Hash(id), ExpiresAt: claims.ExpiresAt.Time}, nil
}

// Verify checks signature, issuer and expiry.
func (s *Service) Verify(value string) (*Claims, error) {
	if value == "" {
		return nil, NewError(KindMissing, nil)
	}
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(value, claims, func(t *jwt.Token) (any, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(clock.Now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, NewError(KindExpired, err)
		}
		return nil, NewError(KindInvalid, err)
	}
	if !parsed.Valid || claims.Subject == "" || claims.ID == "" {
		return nil, NewError(KindInvalid, jwt.ErrTokenInvalidClaims)
	}
	return &Claims{
		InstanceID: claims.Subject,
		ID:         claims.ID,
		Hash:       Hash(claims.ID),
		ExpiresAt:  claims.ExpiresAt.Time,
	}, nil
}
