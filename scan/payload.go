// Package scan turns camera frames and manual entry into tokens and feeds
// them to a Verifier.
package scan

import (
	"encoding/json"
	"strings"

	"github.com/linesmerrill/donation-checkin-api/models"
)

// ParsePayload extracts the token from a decoded badge. Badges encode
// {"token":"..."}, older badges and manual entry carry the bare token.
func ParsePayload(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "{") {
		var p models.RegistrationQRPayload
		if err := json.Unmarshal([]byte(trimmed), &p); err == nil && p.Token != "" {
			return p.Token
		}
	}
	return raw
}
