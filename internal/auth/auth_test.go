package auth_test

import (
	"context"
	"errors"
	"testing"

	"schoolportal/internal/auth"
	"schoolportal/internal/crypto"
	"schoolportal/internal/resource"
	"schoolportal/internal/resource/resourcetest"
)

func seedAccount(t *testing.T, store *resourcetest.MemoryStore, email, password string, admin bool) auth.Account {
	t.Helper()
	hash, err := crypto.HashPassword(password)
	if err != nil {
		t.Fatalf("hash error: %v", err)
	}
	account, err := store.CreateAccount(context.Background(), auth.Account{
		StudentID:    auth.EmailLocalPart(email),
		Name:         "Test",
		Email:        email,
		PasswordHash: hash,
		IsAdmin:      admin,
	})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	return account
}

func TestLoginValidation(t *testing.T) {
	store := resourcetest.NewMemoryStore()
	seedAccount(t, store, "ann123@uni.edu", "longpass1", false)
	svc := auth.NewService(store)
	ctx := context.Background()

	cases := []struct {
		email    string
		password string
		want     error
	}{
		{"", "longpass1", auth.ErrMissingCredentials},
		{"ann123@uni.edu", "", auth.ErrMissingCredentials},
		{"not-an-email", "longpass1", auth.ErrInvalidEmail},
		{"ann123@uni.edu", "short", auth.ErrPasswordTooShort},
		{"ann123@uni.edu", "wrongpass1", auth.ErrInvalidCredentials},
		{"nobody@uni.edu", "longpass1", auth.ErrInvalidCredentials},
	}
	for _, tc := range cases {
		if _, err := svc.Login(ctx, tc.email, tc.password); !errors.Is(err, tc.want) {
			t.Fatalf("login(%q) expected %v, got %v", tc.email, tc.want, err)
		}
	}

	account, err := svc.Login(ctx, " ann123@uni.edu ", "longpass1")
	if err != nil {
		t.Fatalf("login error: %v", err)
	}
	if account.StudentID != "ann123" || account.Role() != auth.RoleStudent {
		t.Fatalf("unexpected account %+v", account)
	}
}

func TestChangePassword(t *testing.T) {
	store := resourcetest.NewMemoryStore()
	seedAccount(t, store, "ann123@uni.edu", "longpass1", false)
	svc := auth.NewService(store)
	ctx := context.Background()
	self := auth.Actor{StudentID: "ann123"}

	if err := svc.ChangePassword(ctx, self, "ann123", "", "newpass12"); !errors.Is(err, auth.ErrMissingFields) {
		t.Fatalf("expected missing fields, got %v", err)
	}
	if err := svc.ChangePassword(ctx, self, "ann123", "longpass1", "short"); !errors.Is(err, auth.ErrPasswordTooShort) {
		t.Fatalf("expected too short, got %v", err)
	}
	if err := svc.ChangePassword(ctx, self, "bob", "longpass1", "newpass12"); !errors.Is(err, auth.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if err := svc.ChangePassword(ctx, auth.Actor{Admin: true}, "ghost", "longpass1", "newpass12"); !errors.Is(err, auth.ErrStudentNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := svc.ChangePassword(ctx, self, "ann123", "wrongpass1", "newpass12"); !errors.Is(err, auth.ErrWrongPassword) {
		t.Fatalf("expected wrong password, got %v", err)
	}
	if _, err := svc.Login(ctx, "ann123@uni.edu", "longpass1"); err != nil {
		t.Fatalf("expected old password to survive failed change: %v", err)
	}

	if err := svc.ChangePassword(ctx, self, "ann123", "longpass1", "newpass12"); err != nil {
		t.Fatalf("change password error: %v", err)
	}
	if _, err := svc.Login(ctx, "ann123@uni.edu", "newpass12"); err != nil {
		t.Fatalf("expected new password to work: %v", err)
	}
}

func TestEnsureAdmin(t *testing.T) {
	store := resourcetest.NewMemoryStore()
	svc := auth.NewService(store)
	ctx := context.Background()

	if err := svc.EnsureAdmin(ctx, "Root", "root@uni.edu", "adminpass"); err != nil {
		t.Fatalf("ensure admin: %v", err)
	}
	if err := svc.EnsureAdmin(ctx, "Root", "root@uni.edu", "adminpass"); err != nil {
		t.Fatalf("ensure admin twice: %v", err)
	}
	if store.Count("users") != 1 {
		t.Fatalf("expected one admin, got %d users", store.Count("users"))
	}
	account, err := svc.Login(ctx, "root@uni.edu", "adminpass")
	if err != nil {
		t.Fatalf("admin login: %v", err)
	}
	if account.Role() != auth.RoleAdmin {
		t.Fatalf("expected admin role, got %s", account.Role())
	}
	if account.StudentID != "admin:root" {
		t.Fatalf("expected reserved admin student id, got %q", account.StudentID)
	}
	if _, err := store.AccountByStudentID(ctx, "root"); !errors.Is(err, resource.ErrNotFound) {
		t.Fatalf("admin must not occupy a derivable student id, got %v", err)
	}
}

func TestEmailLocalPart(t *testing.T) {
	cases := map[string]string{
		"ann123@uni.edu":  "ann123",
		" bob@school.io ": "bob",
		"@uni.edu":        "",
		"plain":           "",
	}
	for input, expect := range cases {
		if got := auth.EmailLocalPart(input); got != expect {
			t.Fatalf("local part of %q: expected %q got %q", input, expect, got)
		}
	}
}
