package scan

import (
	"context"
	"errors"
	"fmt"
	"image"
)

// Camera yields frames. Implementations return a *CameraError when the
// device cannot be used and io.EOF when no more frames will come.
type Camera interface {
	Capture(ctx context.Context) (image.Image, error)
}

// CameraReason classifies why a camera could not be used
type CameraReason string

// Camera failure reasons
const (
	ReasonPermissionDenied CameraReason = "permission_denied"
	ReasonNoDevice         CameraReason = "no_device"
	ReasonDeviceBusy       CameraReason = "device_busy"
)

// CameraError reports an unusable camera. Manual entry is the fallback.
type CameraError struct {
	Reason CameraReason
	Err    error
}

func (e *CameraError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("camera unavailable (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("camera unavailable (%s)", e.Reason)
}

func (e *CameraError) Unwrap() error {
	return e.Err
}

// IsCameraUnavailable reports whether err means the caller should offer manual entry
func IsCameraUnavailable(err error) bool {
	var ce *CameraError
	return errors.As(err, &ce)
}
