package scan

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linesmerrill/donation-checkin-api/models"
	"github.com/linesmerrill/donation-checkin-api/verification"
)

func newTestAPI(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/auth/token", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "admin@example.com" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"token": "bearer-1"})
	})
	mux.HandleFunc("/api/v1/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/api/v1/verify", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer bearer-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var req models.VerifyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		switch req.Token {
		case "AB12CD":
			_ = json.NewEncoder(w).Encode(models.VerificationResult{
				Status:        models.StatusVerified,
				NewlyVerified: true,
				Registration:  models.Registration{Name: "Ada", Token: "AB12CD", Verified: true},
			})
		case "ZZ9999":
			writeAPIError(w, http.StatusNotFound, models.CodeTokenNotFound, false)
		case "BUSY00":
			writeAPIError(w, http.StatusServiceUnavailable, models.CodeStoreUnavailable, true)
		case "SLOW00":
			writeAPIError(w, http.StatusTooManyRequests, models.CodeRateLimited, false)
		default:
			writeAPIError(w, http.StatusBadRequest, models.CodeMalformedToken, false)
		}
	})
	mux.HandleFunc("/api/v1/verify/AB12CD", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(models.Registration{Name: "Ada", Token: "AB12CD"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func writeAPIError(w http.ResponseWriter, status int, code string, retryable bool) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(models.ErrorResponse{Error: code, Code: code, Retryable: retryable})
}

func TestClientLoginAndVerify(t *testing.T) {
	srv := newTestAPI(t)
	c := NewClient(srv.URL + "/")
	ctx := context.Background()

	_, err := c.Verify(ctx, "AB12CD")
	assert.ErrorIs(t, err, ErrUnauthorized)

	require.NoError(t, c.Login(ctx, "admin@example.com", "secret"))

	res, err := c.Verify(ctx, "AB12CD")
	require.NoError(t, err)
	assert.Equal(t, models.StatusVerified, res.Status)
	assert.True(t, res.NewlyVerified)
	assert.Equal(t, "Ada", res.Registration.Name)

	require.NoError(t, c.Logout(ctx))
	_, err = c.Verify(ctx, "AB12CD")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestClientLoginRejected(t *testing.T) {
	srv := newTestAPI(t)
	err := NewClient(srv.URL).Login(context.Background(), "admin@example.com", "wrong")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestClientVerifyErrors(t *testing.T) {
	srv := newTestAPI(t)
	c := NewClient(srv.URL)
	require.NoError(t, c.Login(context.Background(), "admin@example.com", "secret"))

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"unknown token", "ZZ9999", verification.ErrTokenNotFound},
		{"store down", "BUSY00", verification.ErrStoreUnavailable},
		{"rate limited", "SLOW00", ErrRateLimited},
		{"malformed", "bad", verification.ErrMalformedToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Verify(context.Background(), tt.token)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestClientLookup(t *testing.T) {
	srv := newTestAPI(t)
	c := NewClient(srv.URL)

	r, err := c.Lookup(context.Background(), "AB12CD")
	require.NoError(t, err)
	assert.Equal(t, "Ada", r.Name)

	_, err = c.Lookup(context.Background(), "QQ1111")
	assert.ErrorIs(t, err, verification.ErrTokenNotFound)
}

func TestClientNetworkFailureIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(url).Verify(context.Background(), "AB12CD")
	assert.True(t, errors.Is(err, verification.ErrStoreUnavailable))
}

func TestErrorFor(t *testing.T) {
	assert.ErrorIs(t, errorFor(http.StatusRequestTimeout, models.ErrorResponse{}), verification.ErrStoreUnavailable)
	assert.ErrorIs(t, errorFor(http.StatusBadGateway, models.ErrorResponse{}), verification.ErrStoreUnavailable)
	assert.ErrorIs(t, errorFor(http.StatusTooManyRequests, models.ErrorResponse{}), ErrRateLimited)
	assert.EqualError(t, errorFor(http.StatusConflict, models.ErrorResponse{Error: "nope"}), "request failed with status 409: nope")
}
