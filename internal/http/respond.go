package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"schoolportal/internal/auth"
)

const maxBodyBytes = 1 << 20

type envelope map[string]any

type mappedError struct {
	status  int
	code    string
	message string
}

var authErrors = map[error]mappedError{
	auth.ErrMissingCredentials: {http.StatusBadRequest, "missing_credentials", "Email and password are required"},
	auth.ErrInvalidEmail:       {http.StatusBadRequest, "invalid_email", "Invalid email format"},
	auth.ErrPasswordTooShort:   {http.StatusBadRequest, "weak_password", "Password must be at least 8 characters"},
	auth.ErrInvalidCredentials: {http.StatusOK, "invalid_credentials", "Invalid email or password"},
	auth.ErrMissingFields:      {http.StatusBadRequest, "missing_fields", "Student ID, current password and new password are required"},
	auth.ErrStudentNotFound:    {http.StatusNotFound, "not_found", "Student not found"},
	auth.ErrWrongPassword:      {http.StatusUnauthorized, "invalid_credentials", "Current password is incorrect"},
	auth.ErrForbidden:          {http.StatusForbidden, "forbidden", "Access denied: insufficient permissions"},
}

// parseBody decodes a JSON object body, keeping numbers as json.Number. An empty body yields an empty map.
func parseBody(r *http.Request) (map[string]any, error) {
	body := map[string]any{}
	if r.Body == nil {
		return body, nil
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return body, nil
	}
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	if err := decoder.Decode(&body); err != nil {
		return nil, err
	}
	if body == nil {
		return nil, errors.New("body must be a JSON object")
	}
	return body, nil
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func failureBody(code, message string, missing []string) envelope {
	body := envelope{"success": false, "error": code, "message": message}
	if len(missing) > 0 {
		body["missing"] = missing
	}
	return body
}

func writeFailure(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, failureBody(code, message, nil))
}
