// Package imaging normalizes client-supplied data-URL images before they are
// sent to the generation endpoint or uploaded to storage. Compression is
// best-effort: on any failure the caller gets the original input back.
package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	distimg "github.com/disintegration/imaging"
	"github.com/rs/zerolog/log"
)

const (
	// MaxGenerationDimension bounds kitchen and slab images sent to the
	// AI generation endpoint.
	MaxGenerationDimension = 2560
	// MaxUploadWidth bounds lead result images before the blob upload.
	MaxUploadWidth = 1920
	// DefaultQuality is the JPEG quality used for all re-encodes.
	DefaultQuality = 80
	// MaxBytes is the payload ceiling above which an image is always
	// re-encoded even when its dimensions fit.
	MaxBytes = 25 << 20
)

// ParseDataURL splits a "data:<mime>;base64,<payload>" string.
func ParseDataURL(s string) (mime string, raw []byte, err error) {
	if !strings.HasPrefix(s, "data:") {
		return "", nil, errors.New("not a data URL")
	}
	meta, payload, ok := strings.Cut(s[len("data:"):], ",")
	if !ok {
		return "", nil, errors.New("malformed data URL")
	}
	mime = strings.TrimSuffix(meta, ";base64")
	if mime == meta {
		return "", nil, errors.New("data URL is not base64 encoded")
	}
	raw, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("decode data URL payload: %w", err)
	}
	return mime, raw, nil
}

// DataURL builds a base64 data URL for raw bytes.
func DataURL(mime string, raw []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(raw)
}

// Compress bounds a data-URL image to maxDim on its longest side,
// re-encoding as JPEG at the given quality. Images that already fit are
// returned byte-identical. Any failure returns the input unchanged.
func Compress(dataURL string, maxDim, quality int) string {
	out, err := compress(dataURL, maxDim, quality)
	if err != nil {
		log.Warn().Err(err).Msg("image compression skipped")
		return dataURL
	}
	return out
}

func compress(dataURL string, maxDim, quality int) (string, error) {
	if maxDim <= 0 {
		maxDim = MaxGenerationDimension
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}
	_, raw, err := ParseDataURL(dataURL)
	if err != nil {
		return "", err
	}
	img, err := distimg.Decode(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}
	b := img.Bounds()
	if b.Dx() <= maxDim && b.Dy() <= maxDim && len(raw) <= MaxBytes {
		return dataURL, nil
	}
	resized := distimg.Fit(img, maxDim, maxDim, distimg.Lanczos)
	var buf bytes.Buffer
	if err := distimg.Encode(&buf, resized, distimg.JPEG, distimg.JPEGQuality(quality)); err != nil {
		return "", fmt.Errorf("encode jpeg: %w", err)
	}
	return DataURL("image/jpeg", buf.Bytes()), nil
}

// ExtensionFor maps an image MIME to a storage filename extension.
func ExtensionFor(mime string) string {
	switch mime {
	case "image/png":
		return "png"
	case "image/webp":
		return "webp"
	case "image/gif":
		return "gif"
	default:
		return "jpg"
	}
}
