package auth

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/go-playground/validator/v10"

	"schoolportal/internal/crypto"
	"schoolportal/internal/resource"
)

const (
	RoleAdmin   = "admin"
	RoleStudent = "student"

	minPasswordLength = 8
)

var (
	ErrMissingCredentials = errors.New("email and password are required")
	ErrInvalidEmail       = errors.New("invalid email format")
	ErrPasswordTooShort   = errors.New("password too short")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrMissingFields      = errors.New("missing fields")
	ErrStudentNotFound    = errors.New("student not found")
	ErrWrongPassword      = errors.New("current password is incorrect")
	ErrForbidden          = errors.New("not allowed")
)

type Account struct {
	ID           int64
	StudentID    string
	Name         string
	Email        string
	PasswordHash string
	IsAdmin      bool
}

func (a Account) Role() string {
	if a.IsAdmin {
		return RoleAdmin
	}
	return RoleStudent
}

// Accounts reads and writes the users table. Lookups return resource.ErrNotFound when nothing matches.
type Accounts interface {
	AccountByEmail(ctx context.Context, email string) (Account, error)
	AccountByStudentID(ctx context.Context, studentID string) (Account, error)
	SetPasswordHash(ctx context.Context, id int64, hash string) error
	CreateAccount(ctx context.Context, account Account) (Account, error)
}

// Actor is the logged-in user performing a request.
type Actor struct {
	StudentID string
	Admin     bool
}

type Service struct {
	accounts Accounts
	validate *validator.Validate
}

func NewService(accounts Accounts) *Service {
	return &Service{accounts: accounts, validate: validator.New()}
}

func (s *Service) Login(ctx context.Context, email, password string) (Account, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return Account{}, ErrMissingCredentials
	}
	if s.validate.Var(email, "email") != nil {
		return Account{}, ErrInvalidEmail
	}
	if len(password) < minPasswordLength {
		return Account{}, ErrPasswordTooShort
	}

	account, err := s.accounts.AccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, resource.ErrNotFound) {
			return Account{}, ErrInvalidCredentials
		}
		return Account{}, err
	}
	if err := crypto.CheckPassword(account.PasswordHash, password); err != nil {
		return Account{}, ErrInvalidCredentials
	}
	return account, nil
}

func (s *Service) ChangePassword(ctx context.Context, actor Actor, studentID, current, next string) error {
	studentID = strings.TrimSpace(studentID)
	if studentID == "" || current == "" || next == "" {
		return ErrMissingFields
	}
	if len(next) < minPasswordLength {
		return ErrPasswordTooShort
	}
	if !actor.Admin && actor.StudentID != studentID {
		return ErrForbidden
	}

	account, err := s.accounts.AccountByStudentID(ctx, studentID)
	if err != nil {
		if errors.Is(err, resource.ErrNotFound) {
			return ErrStudentNotFound
		}
		return err
	}
	if account.IsAdmin && !actor.Admin {
		return ErrStudentNotFound
	}
	if err := crypto.CheckPassword(account.PasswordHash, current); err != nil {
		return ErrWrongPassword
	}

	hash, err := crypto.HashPassword(next)
	if err != nil {
		return err
	}
	return s.accounts.SetPasswordHash(ctx, account.ID, hash)
}

// EnsureAdmin creates the bootstrap administrator unless an account with that email exists.
func (s *Service) EnsureAdmin(ctx context.Context, name, email, password string) error {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil
	}
	if len(password) < minPasswordLength {
		return ErrPasswordTooShort
	}
	existing, err := s.accounts.AccountByEmail(ctx, email)
	if err == nil {
		if !existing.IsAdmin {
			log.Printf("admin bootstrap: %s exists without admin rights", email)
		}
		return nil
	}
	if !errors.Is(err, resource.ErrNotFound) {
		return err
	}

	hash, err := crypto.HashPassword(password)
	if err != nil {
		return err
	}
	_, err = s.accounts.CreateAccount(ctx, Account{
		StudentID:    AdminStudentID(email),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		IsAdmin:      true,
	})
	return err
}

// AdminStudentID is the student_id stored for the bootstrap admin. The colon cannot
// appear in a validated email local part, so it never clashes with a derived student id.
func AdminStudentID(email string) string {
	return "admin:" + EmailLocalPart(email)
}

// EmailLocalPart returns the part of an email address before the last '@'.
func EmailLocalPart(email string) string {
	email = strings.TrimSpace(email)
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return ""
	}
	return email[:at]
}
