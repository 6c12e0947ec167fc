package pdfdoc

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"
	"strings"

	"golang.org/x/image/draw"
)

// Signatures larger than this are scaled down before embedding.
const (
	maxSignatureWidth  = 600
	maxSignatureHeight = 200
)

// Sources whose header declares more than this on either side are rejected
// before any pixel buffer is allocated.
const maxSourceDimension = 4000

var (
	ErrNotDataURI    = errors.New("signature is not an image data URI")
	ErrImageTooLarge = errors.New("signature image dimensions exceed limit")
)

// DecodeDataURI strips a data:image/...;base64, prefix and decodes the payload.
func DecodeDataURI(uri string) ([]byte, error) {
	uri = strings.TrimSpace(uri)
	if !strings.HasPrefix(uri, "data:image/") {
		return nil, ErrNotDataURI
	}
	comma := strings.Index(uri, ",")
	if comma < 0 || !strings.HasSuffix(uri[:comma], ";base64") {
		return nil, ErrNotDataURI
	}
	payload := uri[comma+1:]

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		raw, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		if err != nil {
			return nil, fmt.Errorf("failed to decode base64 signature: %w", err)
		}
	}
	return raw, nil
}

// NormalizeSignature decodes a PNG or JPEG signature, scales it to fit the
// embedding limits, flattens transparency onto white and re-encodes it as an
// 8-bit RGB PNG.
func NormalizeSignature(raw []byte) ([]byte, int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to decode signature image: %w", err)
	}
	if cfg.Width > maxSourceDimension || cfg.Height > maxSourceDimension {
		return nil, 0, 0, fmt.Errorf("%w: %dx%d", ErrImageTooLarge, cfg.Width, cfg.Height)
	}

	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to decode signature image: %w", err)
	}

	sb := src.Bounds()
	if sb.Dx() == 0 || sb.Dy() == 0 {
		return nil, 0, 0, fmt.Errorf("signature image is empty")
	}
	w, h := fitWithin(sb.Dx(), sb.Dy(), maxSignatureWidth, maxSignatureHeight)

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	if w == sb.Dx() && h == sb.Dy() {
		draw.Draw(dst, dst.Bounds(), src, sb.Min, draw.Over)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, sb, draw.Over, nil)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, 0, 0, fmt.Errorf("failed to encode signature image: %w", err)
	}
	return buf.Bytes(), w, h, nil
}

// fitWithin scales w x h down (never up) to fit inside maxW x maxH, keeping aspect.
func fitWithin(w, h, maxW, maxH int) (int, int) {
	if w <= maxW && h <= maxH {
		return w, h
	}
	scale := min(float64(maxW)/float64(w), float64(maxH)/float64(h))
	sw := max(1, int(float64(w)*scale))
	sh := max(1, int(float64(h)*scale))
	return sw, sh
}
