package http

import (
	"context"
	"errors"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"schoolportal/internal/auth"
	"schoolportal/internal/config"
	"schoolportal/internal/crypto"
	"schoolportal/internal/portal"
	"schoolportal/internal/resource"
	"schoolportal/internal/session"
)

// Store is what the server needs from persistence: entity rows and user accounts.
type Store interface {
	resource.Store
	auth.Accounts
}

type Server struct {
	cfg       config.Config
	sessions  session.Store
	auth      *auth.Service
	catalog   *portal.Catalog
	endpoints []endpoint
}

func NewServer(cfg config.Config, store Store, sessions session.Store) *Server {
	s := &Server{
		cfg:      cfg,
		sessions: sessions,
		auth:     auth.NewService(store),
		catalog:  portal.NewCatalog(store, crypto.HashPassword),
	}
	s.endpoints = s.buildEndpoints()
	return s
}

// Auth exposes the account service for startup tasks such as the admin bootstrap.
func (s *Server) Auth() *auth.Service {
	return s.auth
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(s.corsMiddleware)
	r.Use(metricsMiddleware)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	for _, ep := range s.endpoints {
		r.HandleFunc(ep.path, s.dispatch(ep))
	}
	return r
}

// role requirements recorded on each route.
const (
	rolePublic   = "public"
	roleLoggedIn = ""
)

type handlerFunc func(ctx context.Context, req *apiRequest) (reply, error)

type reply struct {
	status int
	body   envelope
	cookie *http.Cookie
}

type route struct {
	handle handlerFunc
	role   string
}

type endpoint struct {
	path      string
	resolve   func(query url.Values) string
	resources map[string]map[string]route
}

// apiRequest is the explicit per-request context handed to every handler.
type apiRequest struct {
	Method  string
	Query   url.Values
	Body    map[string]any
	Session *session.Session
	Cookie  string
}

func (s *Server) dispatch(ep endpoint) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		name := ep.resolve(query)
		methods, ok := ep.resources[name]
		if !ok {
			writeFailure(w, http.StatusBadRequest, "invalid_resource", "Invalid resource")
			return
		}
		rt, ok := methods[r.Method]
		if !ok {
			writeFailure(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method "+r.Method+" not allowed for "+name)
			return
		}

		req := &apiRequest{Method: r.Method, Query: query}
		if cookie, err := r.Cookie(s.cfg.SessionCookie); err == nil {
			req.Cookie = cookie.Value
		}
		if rt.role != rolePublic {
			sess, status, message := s.guard(r.Context(), req.Cookie, rt.role)
			if sess == nil {
				writeFailure(w, status, "unauthorized", message)
				return
			}
			req.Session = sess
		}

		body, err := parseBody(r)
		if err != nil {
			writeFailure(w, http.StatusBadRequest, "invalid_json", "Invalid JSON body")
			return
		}
		req.Body = body

		out, err := rt.handle(r.Context(), req)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if out.cookie != nil {
			http.SetCookie(w, out.cookie)
		}
		if out.body == nil {
			out.body = envelope{}
		}
		out.body["success"] = true
		writeJSON(w, out.status, out.body)
	}
}

// guard loads the session and checks the role; on failure the session is nil.
func (s *Server) guard(ctx context.Context, cookie, role string) (*session.Session, int, string) {
	sess, err := s.sessions.Get(ctx, cookie)
	if err != nil {
		if !errors.Is(err, session.ErrNoSession) {
			log.Printf("session lookup failed: %v", err)
		}
		return nil, http.StatusUnauthorized, "Not logged in"
	}
	if !sess.LoggedIn {
		return nil, http.StatusUnauthorized, "Not logged in"
	}
	if role != roleLoggedIn && sess.Role != role {
		return nil, http.StatusForbidden, "Access denied: insufficient permissions"
	}
	return &sess, 0, ""
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := s.cfg.CORSOrigin
		header := w.Header()
		header.Set("Access-Control-Allow-Origin", origin)
		header.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
		if origin != "*" {
			header.Set("Access-Control-Allow-Credentials", "true")
			header.Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) sessionCookie(value string, expires time.Time) *http.Cookie {
	cookie := &http.Cookie{
		Name:     s.cfg.SessionCookie,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
		Expires:  expires,
	}
	if value == "" {
		cookie.MaxAge = -1
	}
	return cookie
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var rerr *resource.Error
	if errors.As(err, &rerr) {
		if rerr.Status >= http.StatusInternalServerError {
			log.Printf("[%s] %s %s: %s", middleware.GetReqID(r.Context()), r.Method, r.URL.Path, rerr.Message)
		}
		writeJSON(w, rerr.Status, failureBody(rerr.Code, rerr.Message, rerr.Missing))
		return
	}
	for target, mapped := range authErrors {
		if errors.Is(err, target) {
			writeFailure(w, mapped.status, mapped.code, mapped.message)
			return
		}
	}
	log.Printf("[%s] %s %s: %v", middleware.GetReqID(r.Context()), r.Method, r.URL.Path, err)
	writeFailure(w, http.StatusInternalServerError, "server_error", "Database error occurred")
}

func actionOrDefault(query url.Values, param, fallback string) string {
	value := strings.TrimSpace(query.Get(param))
	if value == "" {
		return fallback
	}
	return value
}
