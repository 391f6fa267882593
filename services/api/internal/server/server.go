package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"pillid/internal/ratelimit"
	"pillid/internal/util"
	"pillid/pkg/domain"
	"pillid/services/api/internal/app"
)

const (
	serviceName     = "pillid-api"
	maxJSONBytes    = 1 << 20
	defaultMaxImage = 10 << 20
	maxListLimit    = 100
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App                    *app.App
	Redis                  redis.UniversalClient
	AuthRateLimitPerMinute int
	ScanRateLimitPerMinute int
	MaxImageBytes          int64
	CORSOrigins            []string
	TrustedProxies         *util.TrustedProxies
}

// Server exposes the HTTP API.
type Server struct {
	app            *app.App
	mux            *http.ServeMux
	maxImageBytes  int64
	corsOrigins    []string
	trustedProxies *util.TrustedProxies
	authLimiter    *ratelimit.FixedWindowLimiter
	scanLimiter    *ratelimit.FixedWindowLimiter
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("server: app required")
	}
	authLimit := cfg.AuthRateLimitPerMinute
	if authLimit <= 0 {
		authLimit = 10
	}
	scanLimit := cfg.ScanRateLimitPerMinute
	if scanLimit <= 0 {
		scanLimit = 30
	}
	newLimiter := func(name string, limit int) (*ratelimit.FixedWindowLimiter, error) {
		limiter, err := ratelimit.NewFixedWindowLimiter(cfg.Redis, "pillid:ratelimit:"+name, limit, time.Minute)
		if err != nil {
			return nil, fmt.Errorf("init %s limiter: %w", name, err)
		}
		return limiter, nil
	}
	authLimiter, err := newLimiter("auth", authLimit)
	if err != nil {
		return nil, err
	}
	scanLimiter, err := newLimiter("scan", scanLimit)
	if err != nil {
		return nil, err
	}
	maxImage := cfg.MaxImageBytes
	if maxImage <= 0 {
		maxImage = defaultMaxImage
	}
	s := &Server{
		app:            cfg.App,
		mux:            http.NewServeMux(),
		maxImageBytes:  maxImage,
		corsOrigins:    cfg.CORSOrigins,
		trustedProxies: cfg.TrustedProxies,
		authLimiter:    authLimiter,
		scanLimiter:    scanLimiter,
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	var h http.Handler = s.mux
	h = util.WithCORS(s.corsOrigins, h)
	h = util.WithSecurityHeaders(h)
	h = util.WithRequestLog(serviceName, h)
	return util.WithRequestID(h)
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	// auth
	s.mux.HandleFunc("POST /api/auth/signup", s.handleSignup)
	s.mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	s.mux.Handle("POST /api/auth/logout", s.authenticated(s.handleLogout))
	s.mux.Handle("GET /api/auth/session", s.authenticated(s.handleSession))
	s.mux.Handle("GET /api/users/me", s.authenticated(s.handleMe))
	s.mux.Handle("PATCH /api/users/me", s.authenticated(s.handleUpdateMe))

	// scans
	s.mux.Handle("POST /api/scans/barcode", s.authenticated(s.handleBarcodeScan))
	s.mux.Handle("POST /api/scans/pill", s.authenticated(s.imageScan(domain.ScanPill)))
	s.mux.Handle("POST /api/scans/imprint", s.authenticated(s.imageScan(domain.ScanImprint)))
	s.mux.Handle("GET /api/scans", s.authenticated(s.handleListScans))

	// lookup & catalog
	s.mux.Handle("GET /api/lookup", s.authenticated(s.handleLookup))
	s.mux.Handle("GET /api/medications", s.authenticated(s.handleSearchMedications))
	s.mux.Handle("POST /api/medications", s.authenticated(s.handleCreateMedication))
	s.mux.Handle("GET /api/medications/{id}", s.authenticated(s.handleGetMedication))
	s.mux.Handle("PATCH /api/medications/{id}", s.authenticated(s.handleUpdateMedication))
	s.mux.Handle("DELETE /api/medications/{id}", s.authenticated(s.handleDeleteMedication))
	s.mux.Handle("GET /api/medications/{id}/image", s.authenticated(s.handleMedicationImage))

	// saved medications
	s.mux.Handle("GET /api/saved", s.authenticated(s.handleListSaved))
	s.mux.Handle("POST /api/saved", s.authenticated(s.handleSave))
	s.mux.Handle("DELETE /api/saved/{id}", s.authenticated(s.handleRemoveSaved))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type authHandler func(http.ResponseWriter, *http.Request, domain.User)

func (s *Server) authenticated(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			s.audit(r, "api.authorize", "fail", "reason", "missing_token")
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		user, err := s.app.CurrentUser(token)
		if err != nil {
			s.audit(r, "api.authorize", "fail", "reason", "invalid_token")
			writeAppError(w, r, err)
			return
		}
		next(w, r, user)
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBytes)).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func parseLimit(r *http.Request) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, errors.New("limit must be a positive integer")
	}
	return min(n, maxListLimit), nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeAppError maps application errors to status codes. Unexpected errors
// are logged and reported without detail.
func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, app.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrEmailExists):
		writeError(w, http.StatusConflict, "email already exists")
	case errors.Is(err, app.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, app.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, app.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, app.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, app.ErrNoImage):
		writeError(w, http.StatusNotFound, "no image stored")
	default:
		util.LoggerFromContext(r.Context()).Error("request failed", "path", r.URL.Path, "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", util.ClientIP(r, s.trustedProxies),
	}
	logAttrs = append(logAttrs, attrs...)
	logger := util.LoggerFromContext(r.Context())
	if outcome == "success" {
		logger.Info("security_event", logAttrs...)
		return
	}
	logger.Warn("security_event", logAttrs...)
}

// allowRate spends one request of the caller's budget. When Redis cannot be
// reached the request is refused.
func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter *ratelimit.FixedWindowLimiter, msg string) bool {
	key := r.URL.Path + "|" + util.ClientIP(r, s.trustedProxies)
	d, err := limiter.Allow(r.Context(), key)
	if err != nil {
		util.LoggerFromContext(r.Context()).Error("rate limiter unavailable", "err", err)
		writeError(w, http.StatusServiceUnavailable, "rate limiter unavailable")
		return false
	}
	if d.Allowed {
		return true
	}
	w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(d.RetryAfter.Seconds()))))
	writeError(w, http.StatusTooManyRequests, msg)
	return false
}
