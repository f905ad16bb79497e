package session

import (
	"context"
	"errors"
	"time"
)

var ErrNoSession = errors.New("session not found")

type Session struct {
	UserID    int64     `json:"user_id"`
	StudentID string    `json:"student_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	LoggedIn  bool      `json:"logged_in"`
	IssuedAt  time.Time `json:"issued_at"`
}

// Store persists sessions behind an opaque cookie value.
type Store interface {
	Get(ctx context.Context, id string) (Session, error)
	// Set stores the session and returns the cookie value that identifies it.
	Set(ctx context.Context, s Session) (string, error)
	Destroy(ctx context.Context, id string) error
}
