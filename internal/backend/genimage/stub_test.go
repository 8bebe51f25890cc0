package genimage

import (
	"bytes"
	"context"
	"testing"
)

func TestStubTransformer_EchoesInput(t *testing.T) {
	transformer := NewStubTransformer()
	image := []byte{0x01, 0x02, 0x03}

	result, err := transformer.Transform(context.Background(), image, "image/png", "draw a cat")
	if err != nil {
		t.Fatalf("Transform error: %v", err)
	}

	if !bytes.Equal(result.Image, image) {
		t.Errorf("expected image to be echoed unchanged, got %v", result.Image)
	}
	if result.MimeType != "image/png" {
		t.Errorf("expected mime type 'image/png', got %q", result.MimeType)
	}
	if result.Text != "(Stub) Model response for prompt: draw a cat" {
		t.Errorf("unexpected response text: %q", result.Text)
	}
}
