package scan

import (
	"bytes"
	"image"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linesmerrill/donation-checkin-api/tokens"
)

func TestDecodeQRRoundTrip(t *testing.T) {
	badge, err := tokens.RenderBadge("AB12CD", 256)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(badge))
	require.NoError(t, err)

	text, err := DecodeQR(img)
	require.NoError(t, err)
	assert.Equal(t, `{"token":"AB12CD"}`, text)
	assert.Equal(t, "AB12CD", ParsePayload(text))
}

func TestDecodeQRBlankFrame(t *testing.T) {
	_, err := DecodeQR(image.NewGray(image.Rect(0, 0, 64, 64)))
	assert.ErrorIs(t, err, ErrNoCodeInFrame)

	_, err = DecodeQR(nil)
	assert.ErrorIs(t, err, ErrNoCodeInFrame)
}
