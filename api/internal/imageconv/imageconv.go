package imageconv

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/sugun00/Meta-martin/api/internal/util"
)

const jpegQuality = 90

var (
	ErrTranscode       = errors.New("legacy image could not be converted")
	ErrHEICUnavailable = errors.New("heic decoding is not available in this build")
)

// Converter turns uploads into something the external model accepts.
type Converter struct {
	// MaxDimension bounds the longest side of forwarded images; 0 disables.
	MaxDimension int
	heic         bool
}

func New(maxDimension int, heicEnabled bool) *Converter {
	return &Converter{
		MaxDimension: maxDimension,
		heic:         heicEnabled && heicAvailable,
	}
}

// HEICSupported reports whether legacy uploads are accepted at all.
func (c *Converter) HEICSupported() bool { return c.heic }

// IsLegacy reports whether the upload is a HEIC/HEIF phone photo, judged by
// content type or file suffix.
func IsLegacy(mime, filename string) bool {
	switch util.NormalizeMIME(mime) {
	case "image/heic", "image/heif", "image/heic-sequence", "image/heif-sequence":
		return true
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".heic", ".heif":
		return true
	}
	return false
}

// Normalize transcodes legacy uploads to JPEG and, when MaxDimension is set,
// downscales oversized images. Other uploads are returned unchanged.
func (c *Converter) Normalize(data []byte, mime, filename string) ([]byte, string, error) {
	if IsLegacy(mime, filename) {
		if !c.heic {
			return nil, "", fmt.Errorf("%w: %w", ErrTranscode, ErrHEICUnavailable)
		}
		img, err := decodeHEIC(data)
		if err != nil {
			return nil, "", fmt.Errorf("%w: %w", ErrTranscode, err)
		}
		out, err := c.encodeJPEG(c.fit(img))
		if err != nil {
			return nil, "", fmt.Errorf("%w: %w", ErrTranscode, err)
		}
		return out, "image/jpeg", nil
	}

	mime = util.NormalizeMIME(mime)
	if c.MaxDimension <= 0 {
		return data, mime, nil
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil || (cfg.Width <= c.MaxDimension && cfg.Height <= c.MaxDimension) {
		// Undecodable images are forwarded as-is; the model may still read them.
		return data, mime, nil
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return data, mime, nil
	}
	resized := c.fit(img)
	if mime == "image/png" {
		var buf bytes.Buffer
		if err := imaging.Encode(&buf, resized, imaging.PNG); err != nil {
			return nil, "", fmt.Errorf("encode png: %w", err)
		}
		return buf.Bytes(), "image/png", nil
	}
	out, err := c.encodeJPEG(resized)
	if err != nil {
		return nil, "", err
	}
	return out, "image/jpeg", nil
}

func (c *Converter) fit(img image.Image) image.Image {
	if c.MaxDimension <= 0 {
		return img
	}
	b := img.Bounds()
	if b.Dx() <= c.MaxDimension && b.Dy() <= c.MaxDimension {
		return img
	}
	return imaging.Fit(img, c.MaxDimension, c.MaxDimension, imaging.Lanczos)
}

func (c *Converter) encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
