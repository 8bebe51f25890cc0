// Package sketch prepares uploaded sketches for the image-generation
// backend. SVG uploads are rasterized to PNG; raster uploads pass through
// untouched so the stored bytes are exactly what the client sent.
package sketch

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"log/slog"
	"strconv"
	"strings"

	_ "image/gif"
	_ "image/jpeg"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	// Render size used when an SVG carries no explicit width/height
	svgFallbackWidth  = 512
	svgFallbackHeight = 512

	mimePNG = "image/png"
	mimeSVG = "image/svg+xml"
)

var formatMimeTypes = map[string]string{
	"png":  "image/png",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"bmp":  "image/bmp",
	"tiff": "image/tiff",
	"webp": "image/webp",
}

// Normalize converts SVG sketches to PNG and returns all other content
// unchanged. Arbitrary bytes are tolerated; only recognizable SVG input is
// rewritten.
func Normalize(data []byte, mimeType string) ([]byte, string, error) {
	if mimeType == mimeSVG || isSVGData(data) {
		rendered, err := renderSVGToPNG(data)
		if err != nil {
			return nil, "", err
		}
		return rendered, mimePNG, nil
	}
	return data, mimeType, nil
}

// DetectMime derives the mime type from the image content via the registered
// decoders, falling back to the provided default when the content is not a
// decodable image.
func DetectMime(data []byte, fallback string) string {
	if isSVGData(data) {
		return mimeSVG
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return fallback
	}
	if mimeType, ok := formatMimeTypes[format]; ok {
		return mimeType
	}
	return fallback
}

// isSVGData performs a lightweight detection of SVG content from raw bytes.
// It checks for "<svg" tag or XML prolog in the initial portion of the data.
func isSVGData(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	// Only inspect the first ~4KB for detection
	n := len(data)
	if n > 4096 {
		n = 4096
	}
	header := bytes.ToLower(bytes.TrimSpace(data[:n]))
	return bytes.HasPrefix(header, []byte("<svg")) ||
		(bytes.HasPrefix(header, []byte("<?xml")) && bytes.Contains(header, []byte("<svg")))
}

func renderSVGToPNG(svgData []byte) ([]byte, error) {
	targetW, targetH := svgFallbackWidth, svgFallbackHeight
	if w, h, ok := parseSvgExplicitSize(svgData); ok {
		targetW, targetH = w, h
	}
	slog.Debug("rendering SVG sketch to PNG", "width", targetW, "height", targetH)

	icon, err := oksvg.ReadIconStream(bytes.NewReader(svgData))
	if err != nil {
		return nil, err
	}

	// Set drawing target rectangle
	icon.SetTarget(0, 0, float64(targetW), float64(targetH))

	// Prepare target canvas (white background)
	dst := image.NewRGBA(image.Rect(0, 0, targetW, targetH))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.RGBA{255, 255, 255, 255}), image.Point{}, draw.Src)

	// Rasterize SVG into the target canvas
	scanner := rasterx.NewScannerGV(targetW, targetH, dst, dst.Bounds())
	dasher := rasterx.NewDasher(targetW, targetH, scanner)
	icon.Draw(dasher, 1.0)

	var buf bytes.Buffer
	buf.Grow(targetW * targetH)
	if err := png.Encode(&buf, dst); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// parseSvgExplicitSize attempts to extract width and height attributes from
// the SVG start tag. Returns ok=true only if both are found and parseable.
func parseSvgExplicitSize(data []byte) (int, int, bool) {
	n := len(data)
	if n > 8192 {
		n = 8192
	}
	s := strings.ToLower(string(data[:n]))
	i := strings.Index(s, "<svg")
	if i < 0 {
		return 0, 0, false
	}
	j := strings.Index(s[i:], ">")
	if j < 0 {
		j = len(s)
	} else {
		j = i + j
	}
	tag := s[i:j]

	w, wOk := parseNumericAttr(tag, "width")
	h, hOk := parseNumericAttr(tag, "height")
	if wOk && hOk && w > 0 && h > 0 {
		return w, h, true
	}
	// If no explicit width/height, do not treat viewBox as pixel size; use fallback.
	return 0, 0, false
}

// parseNumericAttr extracts the leading numeric value of an attribute
// (e.g., width="123px"). Returns the integer value and ok=true if found.
func parseNumericAttr(tag, attr string) (int, bool) {
	key := attr + "=\""
	pos := strings.Index(tag, key)
	quote := "\""
	if pos < 0 {
		key = attr + "='"
		pos = strings.Index(tag, key)
		quote = "'"
	}
	if pos < 0 {
		return 0, false
	}
	rest := tag[pos+len(key):]
	end := strings.Index(rest, quote)
	if end < 0 {
		return 0, false
	}
	value := strings.TrimSpace(rest[:end])
	// Strip a trailing unit like "px"
	digits := value
	for i, r := range value {
		if (r < '0' || r > '9') && r != '.' {
			digits = value[:i]
			break
		}
	}
	parsed, err := strconv.ParseFloat(digits, 64)
	if err != nil || parsed <= 0 {
		return 0, false
	}
	return int(parsed), true
}
