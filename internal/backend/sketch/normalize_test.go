package sketch

import (
	"bytes"
	"image"
	"image/png"
	"testing"
)

const testSVG = `<svg xmlns="http://www.w3.org/2000/svg" width="32" height="16">
<rect x="0" y="0" width="32" height="16" fill="black"/>
</svg>`

var pngSignature = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}

func encodeTestPNG(t *testing.T, width, height int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, width, height))); err != nil {
		t.Fatalf("failed to encode test PNG: %v", err)
	}
	return buf.Bytes()
}

func TestNormalize_RasterPassthrough(t *testing.T) {
	// Arbitrary bytes must pass through unchanged, even if not decodable
	data := []byte{0x01, 0x02, 0x03, 0x04}

	out, mimeType, err := Normalize(data, "image/png")
	if err != nil {
		t.Fatalf("Normalize error: %v", err)
	}
	if !bytes.Equal(out, data) {
		t.Errorf("expected passthrough bytes, got %v", out)
	}
	if mimeType != "image/png" {
		t.Errorf("expected mime type to be preserved, got %q", mimeType)
	}
}

func TestNormalize_SVGToPNG(t *testing.T) {
	out, mimeType, err := Normalize([]byte(testSVG), "image/svg+xml")
	if err != nil {
		t.Fatalf("Normalize error: %v", err)
	}
	if mimeType != "image/png" {
		t.Errorf("expected mime type 'image/png', got %q", mimeType)
	}
	if !bytes.HasPrefix(out, pngSignature) {
		t.Fatalf("expected PNG output, got leading bytes %v", out[:min(8, len(out))])
	}

	config, err := png.DecodeConfig(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("failed to decode rendered PNG: %v", err)
	}
	if config.Width != 32 || config.Height != 16 {
		t.Errorf("expected 32x16 render from explicit SVG size, got %dx%d", config.Width, config.Height)
	}
}

func TestNormalize_SVGDetectedByContent(t *testing.T) {
	// Mime type lies; content detection should still kick in
	out, mimeType, err := Normalize([]byte(testSVG), "application/octet-stream")
	if err != nil {
		t.Fatalf("Normalize error: %v", err)
	}
	if mimeType != "image/png" {
		t.Errorf("expected 'image/png', got %q", mimeType)
	}
	if !bytes.HasPrefix(out, pngSignature) {
		t.Error("expected PNG output for detected SVG content")
	}
}

func TestDetectMime(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		fallback string
		want     string
	}{
		{name: "png content", data: nil, fallback: "image/png", want: "image/png"},
		{name: "svg content", data: []byte(testSVG), fallback: "image/png", want: "image/svg+xml"},
		{name: "undecodable falls back", data: []byte{0x01, 0x02}, fallback: "image/png", want: "image/png"},
	}
	tests[0].data = encodeTestPNG(t, 4, 4)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectMime(tt.data, tt.fallback); got != tt.want {
				t.Errorf("DetectMime = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseSvgExplicitSize(t *testing.T) {
	tests := []struct {
		name   string
		svg    string
		wantW  int
		wantH  int
		wantOK bool
	}{
		{name: "explicit size", svg: `<svg width="100" height="50">`, wantW: 100, wantH: 50, wantOK: true},
		{name: "px units", svg: `<svg width="64px" height="32px">`, wantW: 64, wantH: 32, wantOK: true},
		{name: "missing height", svg: `<svg width="100">`, wantOK: false},
		{name: "viewBox only", svg: `<svg viewBox="0 0 10 10">`, wantOK: false},
		{name: "not svg", svg: `<html>`, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h, ok := parseSvgExplicitSize([]byte(tt.svg))
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && (w != tt.wantW || h != tt.wantH) {
				t.Errorf("size = %dx%d, want %dx%d", w, h, tt.wantW, tt.wantH)
			}
		})
	}
}
