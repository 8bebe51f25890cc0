package genimage

import (
	"context"
	"fmt"
)

// StubTransformer echoes the input image unchanged and returns a templated
// text response. Used whenever no model API key is configured.
type StubTransformer struct{}

func NewStubTransformer() *StubTransformer {
	return &StubTransformer{}
}

func (t *StubTransformer) Name() string {
	return "stub"
}

func (t *StubTransformer) Transform(_ context.Context, image []byte, mimeType, prompt string) (*Result, error) {
	return &Result{
		Image:    image,
		MimeType: mimeType,
		Text:     fmt.Sprintf("(Stub) Model response for prompt: %s", prompt),
	}, nil
}
