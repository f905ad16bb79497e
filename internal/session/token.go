package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type Claims struct {
	StudentID string `json:"sid"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	UserID    int64  `json:"uid"`
	jwt.RegisteredClaims
}

// TokenStore signs the whole session into the cookie value. Logged-out tokens
// are remembered by jti until they would have expired anyway.
type TokenStore struct {
	secret []byte
	issuer string
	ttl    time.Duration

	mu      sync.Mutex
	revoked map[string]time.Time
}

func NewTokenStore(secret, issuer string, ttl time.Duration) *TokenStore {
	return &TokenStore{
		secret:  []byte(secret),
		issuer:  issuer,
		ttl:     ttl,
		revoked: map[string]time.Time{},
	}
}

func (s *TokenStore) Get(_ context.Context, id string) (Session, error) {
	claims, err := s.parse(id)
	if err != nil {
		return Session{}, ErrNoSession
	}
	if s.isRevoked(claims.ID) {
		return Session{}, ErrNoSession
	}
	sess := Session{
		UserID:    claims.UserID,
		StudentID: claims.StudentID,
		Name:      claims.Name,
		Email:     claims.Email,
		Role:      claims.Role,
		LoggedIn:  true,
	}
	if claims.IssuedAt != nil {
		sess.IssuedAt = claims.IssuedAt.Time
	}
	return sess, nil
}

func (s *TokenStore) Set(_ context.Context, sess Session) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		StudentID: sess.StudentID,
		Name:      sess.Name,
		Email:     sess.Email,
		Role:      sess.Role,
		UserID:    sess.UserID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Destroy revokes the token. Tokens that no longer verify are already unusable.
func (s *TokenStore) Destroy(_ context.Context, id string) error {
	claims, err := s.parse(id)
	if err != nil || claims.ID == "" {
		return nil
	}
	expires := time.Now().Add(s.ttl)
	if claims.ExpiresAt != nil {
		expires = claims.ExpiresAt.Time
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for jti, until := range s.revoked {
		if now.After(until) {
			delete(s.revoked, jti)
		}
	}
	s.revoked[claims.ID] = expires
	return nil
}

func (s *TokenStore) parse(id string) (*Claims, error) {
	if id == "" {
		return nil, ErrNoSession
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(id, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	}, jwt.WithIssuer(s.issuer))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, ErrNoSession
	}
	return claims, nil
}

func (s *TokenStore) isRevoked(jti string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.revoked[jti]
	return ok
}
