package http

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/EmaRG1/user-manager/internal/auth"
	"github.com/EmaRG1/user-manager/internal/config"
	"github.com/EmaRG1/user-manager/internal/guard"
	"github.com/EmaRG1/user-manager/internal/model"
	"github.com/EmaRG1/user-manager/internal/service"
)

type Server struct {
	cfg      config.Config
	services *service.Services
	codec    *auth.Codec
	guard    *guard.Guard
	log      zerolog.Logger
	metrics  *metrics
	limiter  *ipLimiter
	tabs     map[string]tabHandler
}

func NewServer(cfg config.Config, services *service.Services, codec *auth.Codec, log zerolog.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		services: services,
		codec:    codec,
		guard:    guard.New(codec),
		log:      log.With().Str("component", "http").Logger(),
		metrics:  newMetrics(),
		limiter:  newIPLimiter(cfg.LoginRatePerMinute, cfg.LoginRateBurst),
	}
	s.tabs = s.profileTabs()
	return s
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	if s.cfg.TrustProxyHeaders {
		r.Use(middleware.RealIP)
	}
	r.Use(s.requestLogger)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", s.metrics.handler())

	authed := s.require(guard.Requirement{})
	adminOnly := s.require(guard.Requirement{AdminOnly: true})

	r.With(s.rateLimitLogin).Post("/auth/login", s.handleLogin)
	r.With(authed).Post("/auth/logout", s.handleLogout)
	r.With(authed).Get("/auth/me", s.handleGetMe)

	r.Route("/users", func(r chi.Router) {
		r.With(adminOnly).Get("/", s.handleListUsers)
		r.With(adminOnly).Post("/", s.handleCreateUser)
		r.With(authed).Get("/{userID}", s.handleGetUser)
		r.With(authed).Patch("/{userID}", s.handleUpdateUser)
		r.With(adminOnly).Delete("/{userID}", s.handleDeleteUser)
		r.With(authed).Get("/{userID}/studies", s.handleListUserStudies)
		r.With(authed).Get("/{userID}/addresses", s.handleListUserAddresses)
		r.With(authed).Get("/{userID}/tabs/{tab}", s.handleProfileTab)
	})

	r.Route("/studies", func(r chi.Router) {
		r.Use(authed)
		r.Post("/", s.handleCreateStudy)
		r.Get("/{studyID}", s.handleGetStudy)
		r.Patch("/{studyID}", s.handleUpdateStudy)
		r.Delete("/{studyID}", s.handleDeleteStudy)
	})

	r.Route("/addresses", func(r chi.Router) {
		r.Use(authed)
		r.Post("/", s.handleCreateAddress)
		r.Get("/{addressID}", s.handleGetAddress)
		r.Patch("/{addressID}", s.handleUpdateAddress)
		r.Delete("/{addressID}", s.handleDeleteAddress)
	})

	r.With(adminOnly).Get("/stats", s.handleStats)

	return cors.New(cors.Options{
		AllowedOrigins:   s.cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler(r)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	res, err := s.services.Auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.metrics.logins.WithLabelValues("failure").Inc()
		s.writeServiceError(w, r, err)
		return
	}
	s.metrics.logins.WithLabelValues("success").Inc()
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.services.Auth.Logout(r.Context()); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

func (s *Server) handleGetMe(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	profile, err := s.services.Users.GetByID(r.Context(), claims.UserID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	counts, err := s.services.Dashboard.Stats(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

// require authenticates the bearer token and runs the guard against req.
func (s *Server) require(req guard.Requirement) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r.Header.Get("Authorization"))
			if token == "" {
				writeError(w, http.StatusUnauthorized, "missing_token")
				return
			}
			claims, err := s.codec.Parse(token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid_token")
				return
			}

			state := sessionState(token, claims)
			switch s.guard.Check(state, req) {
			case guard.RedirectLogin:
				writeError(w, http.StatusUnauthorized, "invalid_token")
				return
			case guard.RedirectDashboard:
				writeError(w, http.StatusForbidden, "forbidden")
				return
			}

			ctx := auth.WithClaims(auth.WithToken(r.Context(), token), claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (s *Server) rateLimitLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.allow(clientIP(r)) {
			s.metrics.logins.WithLabelValues("rate_limited").Inc()
			writeError(w, http.StatusTooManyRequests, "rate_limited")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeServiceError maps service errors onto status codes.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrMissingToken):
		writeError(w, http.StatusUnauthorized, "missing_token")
	case errors.Is(err, service.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, "invalid_token")
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid_credentials")
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found")
	case errors.Is(err, service.ErrDuplicateEmail):
		writeError(w, http.StatusConflict, "duplicate_email")
	case errors.Is(err, service.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_request")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "request_cancelled")
	default:
		s.log.Error().Err(err).Str("path", r.URL.Path).Msg("unexpected service error")
		writeError(w, http.StatusInternalServerError, "server_error")
	}
}

func isAdmin(claims *auth.Claims) bool {
	return claims != nil && claims.Role == model.RoleAdmin
}

// canAccessUser reports whether the caller may read or edit userID.
func canAccessUser(claims *auth.Claims, userID int) bool {
	return isAdmin(claims) || (claims != nil && claims.UserID == userID)
}

func pathID(r *http.Request, name string) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

// clientIP is the peer address of the connection. Forwarded headers only
// count once middleware.RealIP has rewritten RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
