package tokens

import (
	"encoding/json"
	"fmt"

	"github.com/skip2/go-qrcode"

	"github.com/linesmerrill/donation-checkin-api/models"
)

// BadgeSize is the edge length in pixels of a rendered badge
const BadgeSize = 256

// Payload returns the JSON text a badge encodes for token
func Payload(token string) (string, error) {
	b, err := json.Marshal(models.RegistrationQRPayload{Token: token})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// RenderBadge encodes the token payload as a PNG QR code
func RenderBadge(token string, size int) ([]byte, error) {
	if err := Validate(token); err != nil {
		return nil, err
	}
	if size <= 0 {
		size = BadgeSize
	}
	payload, err := Payload(token)
	if err != nil {
		return nil, err
	}
	png, err := qrcode.Encode(payload, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("failed to encode qr code: %w", err)
	}
	return png, nil
}
