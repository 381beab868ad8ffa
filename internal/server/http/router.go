// Package httpserver exposes the account API over HTTP/JSON.
package httpserver

import (
	"context"
	"net/http"
	"net/netip"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/account-keeper/internal/metrics"
	"github.com/and161185/account-keeper/internal/service"
)

// TokenParser verifies an access token and returns its user ID.
// Implemented by *token.Manager.
type TokenParser interface {
	Parse(raw string) (uuid.UUID, error)
}

// Handler binds the services to HTTP routes.
type Handler struct {
	auth    service.AuthService
	users   service.UserService
	tokens  TokenParser
	log     *zap.Logger
	metrics *metrics.Metrics
	ready   func(context.Context) error
	proxies []netip.Prefix
}

// Option customizes a Handler.
type Option func(*Handler)

// WithMetrics counts errors and requests and serves /metrics.
func WithMetrics(m *metrics.Metrics) Option { return func(h *Handler) { h.metrics = m } }

// WithReadiness makes /healthz report the result of check.
func WithReadiness(check func(context.Context) error) Option {
	return func(h *Handler) { h.ready = check }
}

// WithTrustedProxies makes forwarding headers count when the peer is in one of
// the prefixes. Without it the peer address is the client address.
func WithTrustedProxies(prefixes ...netip.Prefix) Option {
	return func(h *Handler) { h.proxies = append(h.proxies[:0:0], prefixes...) }
}

// NewHandler constructs a Handler.
func NewHandler(auth service.AuthService, users service.UserService, tokens TokenParser, log *zap.Logger, opts ...Option) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	h := &Handler{auth: auth, users: users, tokens: tokens, log: log}
	for _, o := range opts {
		o(h)
	}
	return h
}

// NewRouter registers routes and the middleware stack.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(h.recoverer)
	r.Use(h.logging)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		h.writeError(w, r, errRouteNotFound())
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		h.writeError(w, r, errMethodNotAllowed())
	})

	r.Get("/healthz", h.healthz)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/auth/register", h.register)
		r.Post("/auth/login", h.login)

		r.Group(func(r chi.Router) {
			r.Use(h.authenticate)
			r.Get("/users/me", h.getMe)
			r.Patch("/users/me", h.updateMe)
			r.Delete("/users/me", h.deleteMe)
			r.Post("/users/me/restore", h.restoreMe)
		})
	})
	return r
}
