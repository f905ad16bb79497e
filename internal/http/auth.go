package http

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"schoolportal/internal/auth"
	"schoolportal/internal/session"
)

func (s *Server) handleLogin(ctx context.Context, req *apiRequest) (reply, error) {
	account, err := s.auth.Login(ctx, bodyString(req.Body, "email"), bodyString(req.Body, "password"))
	if err != nil {
		return reply{}, err
	}

	if req.Cookie != "" {
		if err := s.sessions.Destroy(ctx, req.Cookie); err != nil {
			log.Printf("previous session cleanup failed: %v", err)
		}
	}
	now := time.Now().UTC()
	sess := session.Session{
		UserID:    account.ID,
		StudentID: account.StudentID,
		Name:      account.Name,
		Email:     account.Email,
		Role:      account.Role(),
		LoggedIn:  true,
		IssuedAt:  now,
	}
	id, err := s.sessions.Set(ctx, sess)
	if err != nil {
		return reply{}, err
	}
	return reply{
		status: http.StatusOK,
		body:   envelope{"message": "Login successful", "user": userSummary(sess)},
		cookie: s.sessionCookie(id, now.Add(s.cfg.SessionTTL)),
	}, nil
}

func (s *Server) handleLogout(ctx context.Context, req *apiRequest) (reply, error) {
	if req.Cookie != "" {
		if err := s.sessions.Destroy(ctx, req.Cookie); err != nil {
			log.Printf("session destroy failed: %v", err)
		}
	}
	return reply{
		status: http.StatusOK,
		body:   envelope{"message": "Logged out successfully"},
		cookie: s.sessionCookie("", time.Unix(0, 0)),
	}, nil
}

func (s *Server) handleSession(_ context.Context, req *apiRequest) (reply, error) {
	return reply{status: http.StatusOK, body: envelope{"user": userSummary(*req.Session)}}, nil
}

func (s *Server) handleChangePassword(ctx context.Context, req *apiRequest) (reply, error) {
	actor := auth.Actor{
		StudentID: req.Session.StudentID,
		Admin:     req.Session.Role == auth.RoleAdmin,
	}
	err := s.auth.ChangePassword(ctx, actor,
		bodyString(req.Body, "student_id"),
		bodyString(req.Body, "current_password"),
		bodyString(req.Body, "new_password"),
	)
	if err != nil {
		return reply{}, err
	}
	return reply{status: http.StatusOK, body: envelope{"message": "Password changed successfully"}}, nil
}

func userSummary(sess session.Session) envelope {
	return envelope{
		"id":         sess.UserID,
		"student_id": sess.StudentID,
		"name":       sess.Name,
		"email":      sess.Email,
		"role":       sess.Role,
	}
}

func bodyString(body map[string]any, key string) string {
	switch v := body[key].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		return ""
	}
}
