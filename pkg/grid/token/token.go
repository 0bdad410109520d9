// Package token signs the context of a grid job, so that a worker runs
// exactly what the dispatcher has taken from the queue.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pombredanne/facereclib/pkg/domain"
	xe "github.com/pombredanne/facereclib/pkg/errors"
	"github.com/pombredanne/facereclib/pkg/grid"
)

const issuer = "faceverify-dispatcher"

// Claims of a job token.
type Claims struct {
	jwt.RegisteredClaims

	Context domain.StageContext `json:"ctx"`
}

// Key signs and verifies job tokens with HS256.
type Key struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

type Option func(*Key) *Key

// WithClock replaces the clock used to issue and verify tokens.
func WithClock(now func() time.Time) Option {
	return func(k *Key) *Key {
		k.now = now
		return k
	}
}

// New builds a Key. Tokens expire after ttl; ttl <= 0 means no expiration.
func New(secret []byte, ttl time.Duration, options ...Option) (*Key, error) {
	if len(secret) == 0 {
		return nil, xe.Configuration("signing key is empty")
	}
	k := &Key{secret: append([]byte{}, secret...), ttl: ttl, now: time.Now}
	for _, opt := range options {
		k = opt(k)
	}
	return k, nil
}

// Sign issues a token for the job.
func (k *Key) Sign(id grid.JobID, sc domain.StageContext) (string, error) {
	now := k.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   issuer,
			Subject:  string(id),
			IssuedAt: jwt.NewNumericDate(now),
		},
		Context: sc,
	}
	if 0 < k.ttl {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(k.ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(k.secret)
}

// Verify reads a token issued by Sign with the same secret.
//
// Malformed, expired or forged tokens are xe.ErrBadToken.
func (k *Key) Verify(token string) (grid.JobID, domain.StageContext, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(
		token, claims,
		func(*jwt.Token) (any, error) { return k.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(k.now),
	)
	if err != nil {
		return "", domain.StageContext{}, errors.Join(xe.ErrBadToken, err)
	}
	if claims.Subject == "" {
		return "", domain.StageContext{}, fmt.Errorf("%w: no job id", xe.ErrBadToken)
	}
	if _, err := domain.AsStageID(string(claims.Context.Stage)); err != nil {
		return "", domain.StageContext{}, errors.Join(xe.ErrBadToken, err)
	}
	if r := claims.Context.Range; r != nil {
		if err := r.Validate(); err != nil {
			return "", domain.StageContext{}, errors.Join(xe.ErrBadToken, err)
		}
	}
	return grid.JobID(claims.Subject), claims.Context, nil
}
