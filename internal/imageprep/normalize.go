// Package imageprep normalizes user-supplied images before they are sent to
// the synthesis service: orientation fixed, transparency flattened, bounded
// in size, re-encoded as JPEG with metadata discarded.
package imageprep

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"
	"github.com/kolesa-team/go-webp/decoder"
	"github.com/kolesa-team/go-webp/webp"

	"server/internal/domain"
)

// DecodePayload turns a staged submission payload into raw image bytes.
// Clients submit either data URLs (data:image/png;base64,...), bare base64,
// or raw encoded bytes; payloads are staged verbatim, so all three appear.
func DecodePayload(payload []byte) ([]byte, error) {
	if bytes.HasPrefix(payload, []byte("data:")) {
		idx := bytes.IndexByte(payload, ',')
		if idx < 0 {
			return nil, fmt.Errorf("imageprep: malformed data url")
		}
		payload = payload[idx+1:]
	}
	decoded := make([]byte, base64.StdEncoding.DecodedLen(len(payload)))
	if n, err := base64.StdEncoding.Decode(decoded, bytes.TrimSpace(payload)); err == nil {
		return decoded[:n], nil
	}
	return payload, nil
}

// Normalize converts encoded image bytes into an opaque, size-bounded JPEG:
//  1. decode, applying EXIF orientation before anything else
//  2. flatten transparency onto white
//  3. downscale (never upscale) so the longest edge fits OptimizeMaxEdge
//  4. re-encode as JPEG at OptimizeJPEGQuality, dropping all metadata
func Normalize(data []byte) ([]byte, error) {
	img, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("imageprep: decode: %w", err)
	}

	img = flattenOnWhite(img)

	bounds := img.Bounds()
	if bounds.Dx() > domain.OptimizeMaxEdge || bounds.Dy() > domain.OptimizeMaxEdge {
		img = imaging.Fit(img, domain.OptimizeMaxEdge, domain.OptimizeMaxEdge, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(domain.OptimizeJPEGQuality)); err != nil {
		return nil, fmt.Errorf("imageprep: encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

func decode(data []byte) (image.Image, error) {
	if isWEBP(data) {
		return webp.Decode(bytes.NewReader(data), &decoder.Options{})
	}
	return imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
}

func isWEBP(data []byte) bool {
	if len(data) < 12 {
		return false
	}
	return string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP"
}

// flattenOnWhite composites non-opaque images over a white background so
// transparent pixels become white rather than black.
func flattenOnWhite(img image.Image) image.Image {
	if isOpaque(img) {
		return img
	}
	bounds := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(out, out.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(out, out.Bounds(), img, bounds.Min, draw.Over)
	return out
}

func isOpaque(img image.Image) bool {
	type opaquer interface{ Opaque() bool }
	if o, ok := img.(opaquer); ok {
		return o.Opaque()
	}
	return false
}
