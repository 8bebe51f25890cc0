// Package genimage defines the boundary to the image-generation backend.
// The default implementation is a stub; GeminiTransformer talks to the real
// model when an API key is configured.
package genimage

import (
	"context"
	"errors"
)

// ErrTransformFailed indicates the backend was unreachable or rejected the
// input. Callers must not persist any state for the failed request.
var ErrTransformFailed = errors.New("image transform failed")

// Result is the backend's answer to a transform request.
type Result struct {
	Image    []byte
	MimeType string
	Text     string
}

// Transformer turns a sketch plus a prompt into a generated image. It has no
// side effects on application state; failures surface as errors, never
// partial results.
type Transformer interface {
	Transform(ctx context.Context, image []byte, mimeType, prompt string) (*Result, error)
	Name() string
}
