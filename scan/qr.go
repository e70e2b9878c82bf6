package scan

import (
	"errors"
	"fmt"
	"image"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
)

// ErrNoCodeInFrame is returned when a frame holds no readable QR code
var ErrNoCodeInFrame = errors.New("no qr code in frame")

// DecodeQR returns the text of the QR code in img
func DecodeQR(img image.Image) (string, error) {
	if img == nil {
		return "", ErrNoCodeInFrame
	}
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoCodeInFrame, err)
	}
	result, err := qrcode.NewQRCodeReader().Decode(bmp, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoCodeInFrame, err)
	}
	return result.GetText(), nil
}
