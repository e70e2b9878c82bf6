package scan

import (
	"context"
	"errors"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/linesmerrill/donation-checkin-api/ledger"
	"github.com/linesmerrill/donation-checkin-api/models"
	"github.com/linesmerrill/donation-checkin-api/tokens"
	"github.com/linesmerrill/donation-checkin-api/verification"
)

// Session is one operator's scanning run. Each accepted payload is verified
// and recorded in the ledger.
type Session struct {
	Verifier  Verifier
	Ledger    *ledger.Ledger
	Debouncer *Debouncer
	Operator  string
	// OnEntry, when set, is called after each recorded entry
	OnEntry func(ledger.Entry)

	now func() time.Time
}

// NewSession returns a session with a fresh ledger and the default cool-down
func NewSession(v Verifier, operator string) *Session {
	return &Session{
		Verifier:  v,
		Ledger:    ledger.New(),
		Debouncer: NewDebouncer(DefaultCooldown),
		Operator:  operator,
		now:       time.Now,
	}
}

// Run submits payloads from src until it is exhausted. A camera failure is
// returned as is so the caller can switch to manual entry.
func (s *Session) Run(ctx context.Context, src Source) error {
	for {
		raw, err := src.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		s.Submit(ctx, raw)
	}
}

// Submit verifies one raw payload. It reports false when the payload was
// dropped as a repeat inside the cool-down window.
func (s *Session) Submit(ctx context.Context, raw string) (ledger.Entry, bool) {
	token := tokens.Normalize(ParsePayload(raw))
	if s.Debouncer != nil && !s.Debouncer.Allow(token) {
		zap.S().Debugw("duplicate scan suppressed", "token", token)
		return ledger.Entry{}, false
	}

	entry := ledger.Entry{
		Token:     token,
		ScannedAt: s.clock(),
		Operator:  s.Operator,
	}
	res, err := s.Verifier.Verify(ctx, token)
	switch {
	case err == nil:
		entry.Name = res.Registration.Name
		entry.TimeSlot = res.Registration.TimeSlot
		entry.Status = ledger.StatusVerified
		if res.Status == models.StatusAlreadyVerified {
			entry.Status = ledger.StatusAlreadyVerified
			entry.ErrorMessage = alreadyVerifiedMessage(res.Registration)
		}
	case errors.Is(err, verification.ErrMalformedToken):
		entry.Status = ledger.StatusMalformed
		entry.ErrorMessage = err.Error()
	case errors.Is(err, verification.ErrTokenNotFound):
		entry.Status = ledger.StatusNotFound
		entry.ErrorMessage = err.Error()
	default:
		entry.Status = ledger.StatusError
		entry.ErrorMessage = err.Error()
		zap.S().Warnw("verification failed, safe to rescan", "token", token, "error", err)
	}

	if s.Ledger != nil {
		s.Ledger.Record(entry)
	}
	if s.OnEntry != nil {
		s.OnEntry(entry)
	}
	return entry, true
}

func (s *Session) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}

func alreadyVerifiedMessage(r models.Registration) string {
	msg := "already verified by " + r.VerifiedBy
	if r.VerifiedAt != nil {
		msg += " at " + r.VerifiedAt.UTC().Format(time.RFC3339)
	}
	return msg
}
