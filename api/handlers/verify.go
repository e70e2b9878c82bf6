package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/linesmerrill/donation-checkin-api/api"
	"github.com/linesmerrill/donation-checkin-api/config"
	"github.com/linesmerrill/donation-checkin-api/ledger"
	"github.com/linesmerrill/donation-checkin-api/models"
	"github.com/linesmerrill/donation-checkin-api/verification"
)

// Verify exported for testing purposes
type Verify struct {
	Engine  *verification.Engine
	Limiter api.RateLimiter
	Hub     *Hub
	Metrics *api.MetricsCollector
}

// VerifyTokenHandler performs the check-in for a scanned or typed token
func (v Verify) VerifyTokenHandler(w http.ResponseWriter, r *http.Request) {
	op, ok := api.OperatorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, models.CodeUnauthorized, "unauthorized")
		return
	}

	if v.Limiter != nil {
		allowed, err := v.Limiter.Allow(r.Context(), op.ID)
		if err != nil {
			zap.S().Warnw("rate limiter unavailable, allowing request", "operator", op.ID, "error", err)
		}
		if !allowed {
			v.record("rate_limited")
			writeError(w, http.StatusTooManyRequests, models.CodeRateLimited, "too many verification attempts, slow down")
			return
		}
	}

	var req models.VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, models.CodeValidation, "failed to decode request")
		return
	}
	if err := validate.Struct(req); err != nil {
		v.record(string(ledger.StatusMalformed))
		writeError(w, http.StatusBadRequest, models.CodeMalformedToken, validationMessage(err))
		return
	}

	res, err := v.Engine.Verify(r.Context(), req.Token, op, verification.Options{RegistrationID: req.RegistrationID})
	if err != nil {
		v.writeVerifyError(w, err)
		return
	}

	if res.NewlyVerified {
		v.record(string(ledger.StatusVerified))
	} else {
		v.record(string(ledger.StatusAlreadyVerified))
	}
	if v.Hub != nil {
		v.Hub.Publish(r.Context(), NewVerificationEvent(res, op.ID))
	}
	writeJSON(w, http.StatusOK, res)
}

// LookupTokenHandler previews the registration for a token without checking it in
func (v Verify) LookupTokenHandler(w http.ResponseWriter, r *http.Request) {
	op, ok := api.OperatorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, models.CodeUnauthorized, "unauthorized")
		return
	}

	registration, err := v.Engine.Lookup(r.Context(), mux.Vars(r)["token"], op)
	if err != nil {
		v.writeVerifyError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, registration)
}

// writeVerifyError maps engine errors to responses
func (v Verify) writeVerifyError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, verification.ErrMalformedToken):
		v.record(string(ledger.StatusMalformed))
		writeError(w, http.StatusBadRequest, models.CodeMalformedToken, err.Error())
	case errors.Is(err, verification.ErrTokenNotFound):
		v.record(string(ledger.StatusNotFound))
		writeError(w, http.StatusNotFound, models.CodeTokenNotFound, err.Error())
	case errors.Is(err, verification.ErrStoreUnavailable):
		v.record(string(ledger.StatusError))
		zap.S().Errorw("verification store failure", "error", err)
		writeError(w, http.StatusServiceUnavailable, models.CodeStoreUnavailable, "registration store unavailable, retry the scan")
	case errors.Is(err, verification.ErrMissingOperator):
		writeError(w, http.StatusUnauthorized, models.CodeUnauthorized, err.Error())
	default:
		v.record(string(ledger.StatusError))
		config.ErrorStatus("failed to verify token", http.StatusInternalServerError, w, err)
	}
}

func (v Verify) record(outcome string) {
	if v.Metrics != nil {
		v.Metrics.RecordOutcome(outcome)
	}
}
