// Package verification owns the single transition of a registration from
// unverified to verified.
package verification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/linesmerrill/donation-checkin-api/databases"
	"github.com/linesmerrill/donation-checkin-api/models"
	"github.com/linesmerrill/donation-checkin-api/tokens"
)

// DefaultTimeout bounds a single verify or lookup round trip
const DefaultTimeout = 5 * time.Second

var (
	// ErrMalformedToken is returned before any store access for badly shaped input
	ErrMalformedToken = tokens.ErrMalformedToken
	// ErrTokenNotFound is returned when no registration in the operator's scope has the token
	ErrTokenNotFound = errors.New("token not found")
	// ErrStoreUnavailable wraps transient store failures, retrying is always safe
	ErrStoreUnavailable = errors.New("registration store unavailable")
	// ErrMissingOperator is returned when no operator identity is supplied
	ErrMissingOperator = errors.New("operator identity required")
)

// Operator is the authenticated identity performing a scan and the events it may manage
type Operator struct {
	ID     string
	Events []string
}

func (o Operator) allEvents() bool {
	for _, e := range o.Events {
		if e == models.AllEvents {
			return true
		}
	}
	return false
}

// Options narrows a verify call
type Options struct {
	// RegistrationID, when set, must match the registration holding the token
	RegistrationID string
}

// Engine verifies tokens against the registration store
type Engine struct {
	DB      databases.RegistrationDatabase
	Timeout time.Duration
	now     func() time.Time
}

// NewEngine returns an Engine with the given per call timeout
func NewEngine(db databases.RegistrationDatabase, timeout time.Duration) *Engine {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Engine{DB: db, Timeout: timeout, now: time.Now}
}

// Verify marks the registration holding rawToken as verified by op. A second
// call for the same token returns StatusAlreadyVerified with the original
// verifier and time, never a second transition.
func (e *Engine) Verify(ctx context.Context, rawToken string, op Operator, opts Options) (*models.VerificationResult, error) {
	token := tokens.Normalize(rawToken)
	if err := tokens.Validate(token); err != nil {
		return nil, err
	}
	if op.ID == "" {
		return nil, ErrMissingOperator
	}
	scope, ok := e.scopedFilter(token, op, opts.RegistrationID)
	if !ok {
		return nil, ErrTokenNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout())
	defer cancel()

	// mongo stores milliseconds, truncate so the returned snapshot matches what is persisted
	now := e.clock().UTC().Truncate(time.Millisecond)

	// a miss on the conditional update is re-read once, in case the store
	// answered the follow up read from a stale view
	for attempt := 0; attempt < 2; attempt++ {
		registration, err := e.DB.FindOneAndUpdate(ctx, unverified(scope), bson.M{
			"$set": bson.M{
				"verified":   true,
				"verifiedAt": now,
				"verifiedBy": op.ID,
			},
		})
		if err == nil {
			zap.S().Infow("registration verified",
				"token", token,
				"registrationId", registration.ID.Hex(),
				"eventId", registration.EventID,
				"operator", op.ID)
			return &models.VerificationResult{
				Status:        models.StatusVerified,
				NewlyVerified: true,
				Registration:  *registration,
			}, nil
		}
		if !databases.IsNotFound(err) {
			return nil, storeError(err)
		}

		existing, err := e.DB.FindOne(ctx, scope)
		if err != nil {
			if databases.IsNotFound(err) {
				return nil, ErrTokenNotFound
			}
			return nil, storeError(err)
		}
		if existing.Verified {
			zap.S().Infow("registration already verified",
				"token", token,
				"registrationId", existing.ID.Hex(),
				"operator", op.ID,
				"verifiedBy", existing.VerifiedBy)
			return &models.VerificationResult{
				Status:        models.StatusAlreadyVerified,
				NewlyVerified: false,
				Registration:  *existing,
			}, nil
		}
	}
	return nil, fmt.Errorf("%w: registration %s stayed unverified after update", ErrStoreUnavailable, token)
}

// Lookup returns the registration for rawToken without changing it
func (e *Engine) Lookup(ctx context.Context, rawToken string, op Operator) (*models.Registration, error) {
	token := tokens.Normalize(rawToken)
	if err := tokens.Validate(token); err != nil {
		return nil, err
	}
	scope, ok := e.scopedFilter(token, op, "")
	if !ok {
		return nil, ErrTokenNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout())
	defer cancel()

	registration, err := e.DB.FindOne(ctx, scope)
	if err != nil {
		if databases.IsNotFound(err) {
			return nil, ErrTokenNotFound
		}
		return nil, storeError(err)
	}
	return registration, nil
}

// scopedFilter builds the lookup filter for token inside op's events. It
// reports false when the filter could never match.
func (e *Engine) scopedFilter(token string, op Operator, registrationID string) (bson.M, bool) {
	filter := bson.M{"token": token}
	if !op.allEvents() {
		if len(op.Events) == 0 {
			return nil, false
		}
		filter["eventId"] = bson.M{"$in": op.Events}
	}
	if registrationID != "" {
		id, err := primitive.ObjectIDFromHex(registrationID)
		if err != nil {
			return nil, false
		}
		filter["_id"] = id
	}
	return filter, true
}

func (e *Engine) timeout() time.Duration {
	if e.Timeout <= 0 {
		return DefaultTimeout
	}
	return e.Timeout
}

func (e *Engine) clock() time.Time {
	if e.now == nil {
		return time.Now()
	}
	return e.now()
}

func unverified(scope bson.M) bson.M {
	filter := bson.M{"verified": false}
	for k, v := range scope {
		filter[k] = v
	}
	return filter
}

func storeError(err error) error {
	zap.S().Errorw("registration store call failed", "error", err)
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}
