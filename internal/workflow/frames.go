package workflow

import (
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// StripDataURI removes a "data:<mime>;base64," prefix from s.
// It returns the remaining payload and the declared mime type, if any.
// Strings without a data URI prefix are returned unchanged.
func StripDataURI(s string) (payload, mimeType string) {
	if !strings.HasPrefix(s, "data:") {
		return s, ""
	}
	header, rest, ok := strings.Cut(s, ",")
	if !ok {
		return s, ""
	}
	meta := strings.TrimPrefix(header, "data:")
	meta = strings.TrimSuffix(meta, ";base64")
	return rest, meta
}

// FrameFromDataURI decodes a data URI (or bare base64) into a frame.
// A degenerate URI such as "data:," yields an empty frame, not an error.
func FrameFromDataURI(s string) (CapturedFrame, error) {
	payload, mimeType := StripDataURI(strings.TrimSpace(s))
	if payload == "" {
		return CapturedFrame{Encoding: mimeType}, nil
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return CapturedFrame{}, fmt.Errorf("decode frame payload: %w", err)
	}
	return CapturedFrame{Data: data, Encoding: mimeType}, nil
}

// StillFrame is a FrameSource holding the most recent still pushed into it.
type StillFrame struct {
	mu    sync.RWMutex
	frame CapturedFrame
}

// Set replaces the held still.
func (s *StillFrame) Set(frame CapturedFrame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frame = frame
}

// Capture implements FrameSource. Before any still is set it returns an empty frame.
func (s *StillFrame) Capture(_ context.Context) (CapturedFrame, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frame, nil
}

// FileFrames reads a still from an image file on every capture.
type FileFrames struct {
	Path string
}

// Capture implements FrameSource.
func (f FileFrames) Capture(ctx context.Context) (CapturedFrame, error) {
	if err := ctx.Err(); err != nil {
		return CapturedFrame{}, err
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return CapturedFrame{}, fmt.Errorf("read frame %s: %w", f.Path, err)
	}
	return CapturedFrame{
		Data:     data,
		Encoding: mime.TypeByExtension(strings.ToLower(filepath.Ext(f.Path))),
	}, nil
}
