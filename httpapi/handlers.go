package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/xraph/accredit"
	"github.com/xraph/accredit/claim"
	"github.com/xraph/accredit/processor"
	"github.com/xraph/accredit/types"
)

// Health pings the store.
func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	if err := a.engine.Store().Ping(r.Context()); err != nil {
		a.errorStatus(w, r, http.StatusServiceUnavailable, err)
		return
	}
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}

type answerRequest struct {
	Question  string `json:"question"`
	Category  string `json:"category"`
	IsCorrect bool   `json:"is_correct"`
}

// RecordAnswer handles POST /v1/users/{userID}/answers.
func (a *API) RecordAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := decode(r, &req); err != nil {
		a.error(w, r, err)
		return
	}

	res, err := a.engine.RecordAnswer(r.Context(), accredit.AnswerInput{
		UserID:    chi.URLParam(r, "userID"),
		Question:  req.Question,
		Category:  req.Category,
		IsCorrect: req.IsCorrect,
	})
	if err != nil {
		a.error(w, r, err)
		return
	}
	a.json(w, http.StatusOK, res)
}

type claimRequest struct {
	Amount   types.Credits  `json:"amount"`
	Metadata map[string]any `json:"metadata"`
}

type claimResponse struct {
	Success          bool          `json:"success"`
	ClaimReference   string        `json:"claim_reference"`
	CreditsAvailable types.Credits `json:"credits_available"`
}

// ClaimCredits handles POST /v1/users/{userID}/claims.
func (a *API) ClaimCredits(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if err := decode(r, &req); err != nil {
		a.error(w, r, err)
		return
	}

	res, err := a.engine.ClaimCredits(r.Context(), accredit.ClaimInput{
		UserID:   chi.URLParam(r, "userID"),
		Amount:   req.Amount,
		Metadata: req.Metadata,
	})
	if err != nil {
		a.error(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, claimResponse{
		Success:          res.Success,
		ClaimReference:   res.ClaimReference,
		CreditsAvailable: res.CreditsAvailable,
	})
}

// ListClaims handles GET /v1/users/{userID}/claims.
func (a *API) ListClaims(w http.ResponseWriter, r *http.Request) {
	opts := claim.ListOpts{
		Limit:  queryInt(r, "limit"),
		Offset: queryInt(r, "offset"),
	}

	claims, err := a.engine.Claims(r.Context(), chi.URLParam(r, "userID"), opts)
	if err != nil {
		a.error(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"items": claims})
}

// Entitlement handles GET /v1/users/{userID}/entitlement.
func (a *API) Entitlement(w http.ResponseWriter, r *http.Request) {
	acct, err := a.engine.Account(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		a.error(w, r, err)
		return
	}
	a.json(w, http.StatusOK, acct)
}

// ActiveWindow handles GET /v1/windows/active.
func (a *API) ActiveWindow(w http.ResponseWriter, r *http.Request) {
	win, err := a.engine.ActiveWindow(r.Context())
	if errors.Is(err, accredit.ErrNoActiveWindow) {
		a.errorStatus(w, r, http.StatusNotFound, err)
		return
	}
	if err != nil {
		a.error(w, r, err)
		return
	}
	a.json(w, http.StatusOK, win)
}

// Webhook handles POST /v1/webhooks/processor. Only authentication, payload
// and transient failures are reported to the processor; anything else is
// acknowledged so the delivery is not retried forever.
func (a *API) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		a.errorStatus(w, r, http.StatusBadRequest, fmt.Errorf("%w: %w", accredit.ErrInvalidInput, err))
		return
	}

	res, err := a.engine.HandleWebhook(r.Context(), payload, r.Header.Get(processor.SignatureHeader))
	if err != nil {
		switch accredit.KindOf(err) {
		case accredit.KindValidation:
			a.errorStatus(w, r, http.StatusBadRequest, err)
			return
		case accredit.KindTransient:
			a.errorStatus(w, r, http.StatusServiceUnavailable, err)
			return
		}
		a.logger.Warn("webhook acknowledged with error",
			"request_id", middleware.GetReqID(r.Context()),
			"error", err,
		)
	}

	body := map[string]any{"received": true}
	if res != nil {
		body["outcome"] = res.Outcome
	}
	a.json(w, http.StatusOK, body)
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %w", accredit.ErrInvalidInput, err)
	}
	return nil
}

func queryInt(r *http.Request, key string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
