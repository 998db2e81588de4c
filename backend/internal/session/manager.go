// Package session hands a looked-up record from the lookup form to the
// detail view. The browser only ever holds a signed token; the record
// snapshot itself stays in a server-side cache.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"classrecord/backend/internal/grading"
	"classrecord/backend/internal/shared"
)

const issuer = "classrecord"

// Claims identify one cached snapshot.
type Claims struct {
	Template string `json:"tpl"`
	jwtv5.RegisteredClaims
}

// Snapshot is what a lookup hands to the detail view.
type Snapshot struct {
	Template string                `json:"template"`
	Record   grading.StudentRecord `json:"record"`
}

// Manager issues and resolves session tokens.
type Manager struct {
	cache  Cache
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewManager creates a manager signing with secret; snapshots live for ttl.
func NewManager(cache Cache, secret string, ttl time.Duration) *Manager {
	return &Manager{cache: cache, secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Create caches rec and returns a token referencing it.
func (m *Manager) Create(ctx context.Context, template string, rec grading.StudentRecord) (string, error) {
	payload, err := json.Marshal(Snapshot{Template: template, Record: rec})
	if err != nil {
		return "", fmt.Errorf("failed to encode session snapshot: %w", err)
	}

	key := uuid.New().String()
	if err := m.cache.Set(ctx, key, payload, m.ttl); err != nil {
		return "", shared.Unavailable("session set", err)
	}

	now := m.now()
	claims := Claims{
		Template: template,
		RegisteredClaims: jwtv5.RegisteredClaims{
			ID:        key,
			Subject:   rec.IDNumber,
			Issuer:    issuer,
			IssuedAt:  jwtv5.NewNumericDate(now),
			ExpiresAt: jwtv5.NewNumericDate(now.Add(m.ttl)),
		},
	}
	token, err := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return token, nil
}

// Parse verifies the token signature, issuer and expiry.
func (m *Manager) Parse(token string) (*Claims, error) {
	parsed, err := jwtv5.ParseWithClaims(token, &Claims{}, func(t *jwtv5.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtv5.SigningMethodHMAC); !ok {
			return nil, shared.ErrInvalidToken
		}
		return m.secret, nil
	}, jwtv5.WithIssuer(issuer), jwtv5.WithTimeFunc(m.now))
	if err != nil {
		return nil, shared.ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.ID == "" {
		return nil, shared.ErrInvalidToken
	}
	return claims, nil
}

// Load resolves a token to its snapshot. An evicted snapshot is ErrNotFound.
func (m *Manager) Load(ctx context.Context, token string) (*Snapshot, error) {
	claims, err := m.Parse(token)
	if err != nil {
		return nil, err
	}

	payload, err := m.cache.Get(ctx, claims.ID)
	if errors.Is(err, ErrCacheMiss) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, shared.Unavailable("session get", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode session snapshot: %w", err)
	}
	return &snap, nil
}

// End removes the snapshot behind token.
func (m *Manager) End(ctx context.Context, token string) error {
	claims, err := m.Parse(token)
	if err != nil {
		return err
	}
	if err := m.cache.Delete(ctx, claims.ID); err != nil {
		return shared.Unavailable("session delete", err)
	}
	return nil
}

// Ping reports whether the session cache is reachable.
func (m *Manager) Ping(ctx context.Context) error {
	return m.cache.Ping(ctx)
}
