package api

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shaj13/go-guardian/auth"
	"github.com/shaj13/go-guardian/auth/strategies/basic"
	"github.com/shaj13/go-guardian/auth/strategies/bearer"
	"github.com/shaj13/go-guardian/store"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/linesmerrill/donation-checkin-api/databases"
	"github.com/linesmerrill/donation-checkin-api/verification"
)

// TokenTTL is how long an issued bearer token stays valid, one event day
const TokenTTL = 12 * time.Hour

// MiddlewareDB authenticates operators against the operators collection
type MiddlewareDB struct {
	DB databases.OperatorDatabase

	authenticator auth.Authenticator
	cache         store.Cache
}

// SetupGoGuardian enables basic auth for login and cached bearer tokens for everything else
func (m *MiddlewareDB) SetupGoGuardian() {
	m.authenticator = auth.New()
	m.cache = store.NewFIFO(context.Background(), TokenTTL)
	basicStrategy := basic.New(m.ValidateUser, m.cache)
	tokenStrategy := bearer.New(bearer.NoOpAuthenticate, m.cache)

	m.authenticator.EnableStrategy(basic.StrategyKey, basicStrategy)
	m.authenticator.EnableStrategy(bearer.CachedStrategyKey, tokenStrategy)
}

// Middleware rejects unauthenticated requests and puts the operator in the request context
func (m *MiddlewareDB) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		user, err := m.authenticator.Authenticate(r)
		if err != nil {
			zap.S().Errorw("unauthorized",
				"url", r.URL)
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"success": false, "error": "unauthorized", "code": "UNAUTHORIZED"}`))
			return
		}
		zap.S().Debugw("operator authenticated", "operator", user.UserName())
		ctx := WithOperator(r.Context(), verification.Operator{ID: user.ID(), Events: user.Groups()}, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// CreateToken issues a bearer token for an operator that passed basic auth
func (m *MiddlewareDB) CreateToken(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	info, ok := infoFromContext(r.Context())
	if !ok {
		http.Error(w, "basic auth failed", http.StatusUnauthorized)
		return
	}

	token := uuid.New().String()
	tokenStrategy := m.authenticator.Strategy(bearer.CachedStrategyKey)
	if err := auth.Append(tokenStrategy, token, info, r); err != nil {
		zap.S().Errorw("failed to store bearer token", "error", err)
		http.Error(w, "failed to create token", http.StatusInternalServerError)
		return
	}

	response := map[string]string{
		"token": token,
		"_id":   info.ID(),
	}

	responseBody, err := json.Marshal(response)
	if err != nil {
		http.Error(w, "failed to marshal response", http.StatusInternalServerError)
		return
	}

	w.Write(responseBody)
}

// ValidateUser checks operator credentials. The returned info carries the
// operator id and its event scope as groups.
func (m *MiddlewareDB) ValidateUser(ctx context.Context, r *http.Request, email, password string) (auth.Info, error) {
	usernameHash := sha256.Sum256([]byte(email))

	operator, err := m.DB.FindOne(ctx, bson.M{"email": email, "active": true})
	if err != nil {
		if databases.IsNotFound(err) {
			return nil, fmt.Errorf("no matching operator found")
		}
		return nil, fmt.Errorf("failed to get operator by email: %w", err)
	}

	expectedUsernameHash := sha256.Sum256([]byte(operator.Email))
	usernameMatch := subtle.ConstantTimeCompare(usernameHash[:], expectedUsernameHash[:]) == 1

	err = bcrypt.CompareHashAndPassword([]byte(operator.Password), []byte(password))
	if err != nil {
		return nil, fmt.Errorf("failed to compare password")
	}

	if usernameMatch {
		return auth.NewDefaultUser(email, operator.ID.Hex(), operator.Events, nil), nil
	}
	return nil, fmt.Errorf("invalid credentials")
}

// RevokeToken revokes the bearer token on the request
func (m *MiddlewareDB) RevokeToken(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	reqToken := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
	if reqToken == "" {
		http.Error(w, "missing bearer token", http.StatusBadRequest)
		return
	}

	tokenStrategy := m.authenticator.Strategy(bearer.CachedStrategyKey)
	if err := auth.Revoke(tokenStrategy, reqToken, r); err != nil {
		zap.S().Warnw("failed to revoke token", "error", err)
	}
	body := fmt.Sprintf(`{"revoked token": "%s"}`, reqToken)
	w.Write([]byte(body))
}
