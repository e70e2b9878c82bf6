package scan

import (
	"context"

	"github.com/linesmerrill/donation-checkin-api/models"
)

// Verifier submits a token for verification. Errors follow the verification
// package sentinels so callers can tell outcomes apart with errors.Is.
type Verifier interface {
	Verify(ctx context.Context, token string) (*models.VerificationResult, error)
}
