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

package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"iamblessed-funnel-go/internal/assistant"
	"iamblessed-funnel-go/internal/models"
	"iamblessed-funnel-go/internal/payments"
	"iamblessed-funnel-go/internal/store"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const maxWebhookBytes = 64 << 10

var errAssistantDisabled = errors.New("assistant is not configured")

type shareRequest struct {
	TargetURL string `json:"target_url" validate:"omitempty,url"`
}

type optOutRequest struct {
	OptedOut *bool `json:"opted_out"`
}

// participant resolves the authenticated caller to a funnel participant.
func (s *Server) participant(ctx context.Context) (*models.Participant, error) {
	user := userFrom(ctx)
	if user == nil {
		return nil, errUnauthorized
	}
	p, err := s.svc.ResolveParticipant(ctx, user.ID, user.Email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("no participant for this account, sign up first: %w", store.ErrNotFound)
	}
	return p, err
}

func intQuery(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", errBadRequest, key)
	}
	return n, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.HealthCheck(r.Context()); err != nil {
		zap.L().Error("Health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleSignup accepts anonymous landing page signups. A valid bearer token
// makes the auth user id the participant id.
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	id := ""
	if token := bearerToken(r); token != "" {
		user, err := s.auth.authenticate(r.Context(), token)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		id = user.ID
	}

	var req models.SignupRequest
	if err := s.decode(w, r, &req, false); err != nil {
		s.fail(w, r, err)
		return
	}
	resp, err := s.svc.Signup(r.Context(), id, req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleRedirect(w http.ResponseWriter, r *http.Request) {
	slug := mux.Vars(r)["slug"]
	link, err := s.svc.Referrals().Resolve(r.Context(), slug)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.svc.Referrals().RecordClick(r.Context(), slug, s.clientIP(r), r.UserAgent()); err != nil {
		zap.L().Warn("Failed to record link click", zap.String("slug", slug), zap.Error(err))
	}
	http.Redirect(w, r, link.TargetURL, http.StatusFound)
}

func (s *Server) handleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	if s.svc.Payments() == nil {
		s.fail(w, r, payments.ErrNotConfigured)
		return
	}
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		s.fail(w, r, fmt.Errorf("%w: unreadable body: %v", errBadRequest, err))
		return
	}
	eventType, err := s.svc.Payments().HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"received": true, "type": eventType})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	provider := s.svc.Assistant()
	if provider == nil {
		s.fail(w, r, errAssistantDisabled)
		return
	}
	var req models.ChatRequest
	if err := s.decode(w, r, &req, false); err != nil {
		s.fail(w, r, err)
		return
	}
	system := s.systemPrompt
	if system == "" {
		system = assistant.DefaultSystemPrompt
	}
	if err := assistant.Relay(w, r, provider, system, assistant.FromChat(req.Messages)); err != nil {
		zap.L().Warn("Chat relay failed", zap.String("provider", provider.Name()), zap.Error(err))
		s.fail(w, r, err)
	}
}

func (s *Server) handleWallet(w http.ResponseWriter, r *http.Request) {
	p, err := s.participant(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	wallet, err := s.svc.Wallet(r.Context(), p.Id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wallet)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	p, err := s.participant(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	limit, err := intQuery(r, "limit", 50)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	offset, err := intQuery(r, "offset", 0)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	history, err := s.svc.History(r.Context(), p.Id, r.URL.Query().Get("currency"), limit, offset)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if history == nil {
		history = []models.TransactionRecord{}
	}
	writeJSON(w, http.StatusOK, history)
}

func (s *Server) handleRedeem(w http.ResponseWriter, r *http.Request) {
	p, err := s.participant(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req models.RedeemRequest
	if err := s.decode(w, r, &req, false); err != nil {
		s.fail(w, r, err)
		return
	}
	balance, err := s.svc.Redeem(r.Context(), p.Id, req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"coins": balance})
}

func (s *Server) handleJoyKeys(w http.ResponseWriter, r *http.Request) {
	p, err := s.participant(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	keys, err := s.svc.JoyKeys(r.Context(), p.Id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, keys)
}

func (s *Server) handleShare(w http.ResponseWriter, r *http.Request) {
	p, err := s.participant(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req shareRequest
	if err := s.decode(w, r, &req, true); err != nil {
		s.fail(w, r, err)
		return
	}
	resp, err := s.svc.Share(r.Context(), *p, req.TargetURL)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleMyClips(w http.ResponseWriter, r *http.Request) {
	p, err := s.participant(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	clips, err := s.svc.Clips(r.Context(), p.Id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if clips == nil {
		clips = []models.Clip{}
	}
	writeJSON(w, http.StatusOK, clips)
}

func (s *Server) handleTiers(w http.ResponseWriter, r *http.Request) {
	p, err := s.participant(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	progress, err := s.svc.Tiers(r.Context(), p.Id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

func (s *Server) handleOptOut(w http.ResponseWriter, r *http.Request) {
	p, err := s.participant(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req optOutRequest
	if err := s.decode(w, r, &req, true); err != nil {
		s.fail(w, r, err)
		return
	}
	optedOut := req.OptedOut == nil || *req.OptedOut
	if err := s.svc.OptOut(r.Context(), p.Id, optedOut); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"opted_out": optedOut})
}

func (s *Server) handleCreateLink(w http.ResponseWriter, r *http.Request) {
	p, err := s.participant(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req models.CreateLinkRequest
	if err := s.decode(w, r, &req, false); err != nil {
		s.fail(w, r, err)
		return
	}
	resp, err := s.svc.CreateLink(r.Context(), *p, req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleBlessing(w http.ResponseWriter, r *http.Request) {
	p, err := s.participant(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req models.BlessingRequest
	if err := s.decode(w, r, &req, false); err != nil {
		s.fail(w, r, err)
		return
	}
	blessing, err := s.svc.SendBlessing(r.Context(), *p, req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, blessing)
}

func (s *Server) handleNomination(w http.ResponseWriter, r *http.Request) {
	p, err := s.participant(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req models.NominationRequest
	if err := s.decode(w, r, &req, false); err != nil {
		s.fail(w, r, err)
		return
	}
	nomination, err := s.svc.Nominate(r.Context(), *p, req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, nomination)
}

func (s *Server) handleSubmitClip(w http.ResponseWriter, r *http.Request) {
	p, err := s.participant(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req models.ClipRequest
	if err := s.decode(w, r, &req, false); err != nil {
		s.fail(w, r, err)
		return
	}
	clip, err := s.svc.SubmitClip(r.Context(), *p, req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, clip)
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	p, err := s.participant(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req models.CheckoutRequest
	if err := s.decode(w, r, &req, true); err != nil {
		s.fail(w, r, err)
		return
	}
	resp, err := s.svc.Checkout(r.Context(), *p, req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// Admin

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	var since time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			s.fail(w, r, fmt.Errorf("%w: since must be RFC 3339", errBadRequest))
			return
		}
		since = t
	}
	stats, err := s.svc.Stats(r.Context(), since)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	limit, err := intQuery(r, "limit", 100)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	messages, err := s.svc.Messages(r.Context(), r.URL.Query().Get("status"), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

func (s *Server) handleEnroll(w http.ResponseWriter, r *http.Request) {
	var req models.EnrollRequest
	if err := s.decode(w, r, &req, false); err != nil {
		s.fail(w, r, err)
		return
	}
	var start time.Time
	if req.StartAt != nil {
		start = *req.StartAt
	}
	result, err := s.svc.EnrollParticipants(r.Context(), mux.Vars(r)["key"], req.ParticipantIds, start)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleReviewClip(w http.ResponseWriter, r *http.Request) {
	var req models.ClipReviewRequest
	if err := s.decode(w, r, &req, false); err != nil {
		s.fail(w, r, err)
		return
	}
	clip, err := s.svc.ReviewClip(r.Context(), mux.Vars(r)["id"], req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, clip)
}
