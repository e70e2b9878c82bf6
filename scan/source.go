package scan

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	// decoders for FileCamera
	_ "image/jpeg"
	_ "image/png"
)

// Source yields raw scan payloads until it returns io.EOF
type Source interface {
	Next(ctx context.Context) (string, error)
}

// LineSource reads manual entries, one per line, skipping blank lines
type LineSource struct {
	scanner *bufio.Scanner
}

// NewLineSource reads entries from r
func NewLineSource(r io.Reader) *LineSource {
	return &LineSource{scanner: bufio.NewScanner(r)}
}

// Next returns the next non blank line
func (s *LineSource) Next(ctx context.Context) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				return "", err
			}
			return "", io.EOF
		}
		if line := strings.TrimSpace(s.scanner.Text()); line != "" {
			return line, nil
		}
	}
}

// DefaultFrameInterval is the pause between frames that held no code
const DefaultFrameInterval = 100 * time.Millisecond

// FrameSource captures frames until one holds a QR code
type FrameSource struct {
	Camera   Camera
	Interval time.Duration
}

// Next returns the text of the next decoded QR code
func (s *FrameSource) Next(ctx context.Context) (string, error) {
	interval := s.Interval
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	for {
		img, err := s.Camera.Capture(ctx)
		if err != nil {
			return "", err
		}
		text, err := DecodeQR(img)
		if err == nil {
			return text, nil
		}
		if !errors.Is(err, ErrNoCodeInFrame) {
			return "", err
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(interval):
		}
	}
}

// FileCamera replays still images as camera frames
type FileCamera struct {
	mu    sync.Mutex
	paths []string
	next  int
}

// NewFileCamera replays the images at paths in order
func NewFileCamera(paths ...string) *FileCamera {
	return &FileCamera{paths: paths}
}

// Capture decodes the next image, io.EOF once all have been returned
func (c *FileCamera) Capture(ctx context.Context) (image.Image, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.paths) == 0 {
		return nil, &CameraError{Reason: ReasonNoDevice}
	}
	if c.next >= len(c.paths) {
		return nil, io.EOF
	}
	path := c.paths[c.next]
	c.next++

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrPermission) {
			return nil, &CameraError{Reason: ReasonPermissionDenied, Err: err}
		}
		return nil, fmt.Errorf("failed to open frame %s: %w", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		// an undecodable frame is treated like a frame without a code
		return nil, nil
	}
	return img, nil
}
