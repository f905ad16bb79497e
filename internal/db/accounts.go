package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"schoolportal/internal/auth"
	"schoolportal/internal/resource"
)

func (s *Store) AccountByEmail(ctx context.Context, email string) (auth.Account, error) {
	row := s.Pool.QueryRow(ctx, `
    SELECT id, student_id, name, email, password_hash, is_admin
    FROM users
    WHERE email = $1
  `, email)
	return scanAccount(row)
}

func (s *Store) AccountByStudentID(ctx context.Context, studentID string) (auth.Account, error) {
	row := s.Pool.QueryRow(ctx, `
    SELECT id, student_id, name, email, password_hash, is_admin
    FROM users
    WHERE student_id = $1
  `, studentID)
	return scanAccount(row)
}

func (s *Store) SetPasswordHash(ctx context.Context, id int64, hash string) error {
	tag, err := s.Pool.Exec(ctx, `UPDATE users SET password_hash = $2 WHERE id = $1`, id, hash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return resource.ErrNotFound
	}
	return nil
}

func (s *Store) CreateAccount(ctx context.Context, account auth.Account) (auth.Account, error) {
	row := s.Pool.QueryRow(ctx, `
    INSERT INTO users (student_id, name, email, password_hash, is_admin)
    VALUES ($1, $2, $3, $4, $5)
    RETURNING id
  `, account.StudentID, account.Name, account.Email, account.PasswordHash, account.IsAdmin)
	if err := row.Scan(&account.ID); err != nil {
		return auth.Account{}, mapError(err)
	}
	return account, nil
}

func scanAccount(row pgx.Row) (auth.Account, error) {
	var account auth.Account
	err := row.Scan(
		&account.ID,
		&account.StudentID,
		&account.Name,
		&account.Email,
		&account.PasswordHash,
		&account.IsAdmin,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return auth.Account{}, resource.ErrNotFound
	}
	return account, err
}
