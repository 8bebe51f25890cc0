// Package dataurl encodes byte payloads as inline data URLs of the form
// data:<mime>;base64,<payload> and decodes them back.
package dataurl

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedDataURL is returned when a string does not match the
// data:<mime>;base64,<payload> shape or the payload is not valid base64.
var ErrMalformedDataURL = errors.New("malformed data URL")

const (
	scheme       = "data:"
	base64Marker = ";base64"
)

// Encode wraps data into a self-describing data URL.
func Encode(data []byte, mimeType string) string {
	return fmt.Sprintf("%s%s%s,%s", scheme, mimeType, base64Marker,
		base64.StdEncoding.EncodeToString(data))
}

// Decode extracts the raw bytes and mime type from a data URL.
func Decode(dataURL string) (data []byte, mimeType string, err error) {
	if !strings.HasPrefix(dataURL, scheme) {
		return nil, "", fmt.Errorf("%w: missing %q prefix", ErrMalformedDataURL, scheme)
	}

	header, payload, found := strings.Cut(dataURL, ",")
	if !found {
		return nil, "", fmt.Errorf("%w: missing payload separator", ErrMalformedDataURL)
	}
	if !strings.HasSuffix(header, base64Marker) {
		return nil, "", fmt.Errorf("%w: missing %q marker", ErrMalformedDataURL, base64Marker)
	}

	mimeType = strings.TrimSuffix(strings.TrimPrefix(header, scheme), base64Marker)
	if mimeType == "" {
		return nil, "", fmt.Errorf("%w: empty mime type", ErrMalformedDataURL)
	}

	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("%w: invalid base64 payload: %v", ErrMalformedDataURL, err)
	}
	return data, mimeType, nil
}
