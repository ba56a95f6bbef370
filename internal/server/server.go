/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package server exposes the funnel over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"time"

	"iamblessed-funnel-go/internal/api"
	"iamblessed-funnel-go/internal/metrics"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

type Config struct {
	Service        *api.FunnelService
	Auth           AuthConfig
	AllowedOrigin  string
	RateLimitRPS   int
	RateLimitBurst int
	TrustedProxies []netip.Prefix
	SystemPrompt   string
}

type Server struct {
	svc          *api.FunnelService
	auth         *authenticator
	limiter      *rateLimiter
	validate     *validator.Validate
	origin       string
	proxies      []netip.Prefix
	systemPrompt string
}

func New(cfg Config) *Server {
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 10
	}
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 2 * cfg.RateLimitRPS
	}
	if cfg.AllowedOrigin == "" {
		cfg.AllowedOrigin = "*"
	}
	return &Server{
		svc:          cfg.Service,
		auth:         newAuthenticator(cfg.Auth),
		limiter:      newRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
		validate:     newValidator(),
		origin:       cfg.AllowedOrigin,
		proxies:      cfg.TrustedProxies,
		systemPrompt: cfg.SystemPrompt,
	}
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(s.rateLimit, recordMetrics)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/participants", s.handleSignup).Methods(http.MethodPost)
	r.HandleFunc("/r/{slug}", s.handleRedirect).Methods(http.MethodGet)
	r.HandleFunc("/webhooks/stripe", s.handleStripeWebhook).Methods(http.MethodPost)
	r.HandleFunc("/assistant/chat", s.handleChat).Methods(http.MethodPost)

	me := r.NewRoute().Subrouter()
	me.Use(s.requireAuth)
	me.HandleFunc("/me/wallet", s.handleWallet).Methods(http.MethodGet)
	me.HandleFunc("/me/wallet/history", s.handleHistory).Methods(http.MethodGet)
	me.HandleFunc("/me/wallet/redeem", s.handleRedeem).Methods(http.MethodPost)
	me.HandleFunc("/me/joy-keys", s.handleJoyKeys).Methods(http.MethodGet)
	me.HandleFunc("/me/share", s.handleShare).Methods(http.MethodPost)
	me.HandleFunc("/me/clips", s.handleMyClips).Methods(http.MethodGet)
	me.HandleFunc("/me/tiers", s.handleTiers).Methods(http.MethodGet)
	me.HandleFunc("/me/opt-out", s.handleOptOut).Methods(http.MethodPost)
	me.HandleFunc("/links", s.handleCreateLink).Methods(http.MethodPost)
	me.HandleFunc("/blessings", s.handleBlessing).Methods(http.MethodPost)
	me.HandleFunc("/nominations", s.handleNomination).Methods(http.MethodPost)
	me.HandleFunc("/clips", s.handleSubmitClip).Methods(http.MethodPost)
	me.HandleFunc("/checkout", s.handleCheckout).Methods(http.MethodPost)

	admin := r.PathPrefix("/admin").Subrouter()
	admin.Use(s.requireAuth, s.requireAdmin)
	admin.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	admin.HandleFunc("/messages", s.handleMessages).Methods(http.MethodGet)
	admin.HandleFunc("/campaigns/{key}/enroll", s.handleEnroll).Methods(http.MethodPost)
	admin.HandleFunc("/clips/{id}/review", s.handleReviewClip).Methods(http.MethodPost)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "no such route")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, r.Method+" is not allowed here")
	})

	// preflight requests never match a route, so CORS wraps the router
	return s.logRequests(s.cors(r))
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, port int, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("HTTP server listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	zap.L().Info("Shutting down HTTP server", zap.Duration("timeout", shutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
