package upload

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"imageshelf/internal/domain"
	"imageshelf/internal/storage"
)

const sniffLen = 3072

// ResolveMimeType returns the allow-listed mime type of an upload. The
// declared type decides; content is sniffed only when nothing useful was
// declared.
func ResolveMimeType(declared string, head []byte) (string, error) {
	mt := normalizeMime(declared)
	if mt == "" || mt == "application/octet-stream" {
		mt = normalizeMime(mimetype.Detect(head).String())
	}
	if !domain.AllowedMimeTypes[mt] {
		return "", fmt.Errorf("%w: %q", ErrInvalidMimeType, mt)
	}
	return mt, nil
}

func normalizeMime(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	if parsed, _, err := mime.ParseMediaType(v); err == nil {
		v = parsed
	}
	v = strings.ToLower(v)
	if v == "image/jpg" || v == "image/pjpeg" {
		return domain.MimeJPEG
	}
	return v
}

type Dimensions struct {
	Width  int
	Height int
}

// ImageValidator reads the dimensions of a written byte stream. An object
// that does not decode is removed before the error is returned.
type ImageValidator struct {
	files storage.Storage
}

func NewImageValidator(files storage.Storage) *ImageValidator {
	return &ImageValidator{files: files}
}

// formatMime maps image.DecodeConfig format names onto allowed mime types.
var formatMime = map[string]string{
	"jpeg": domain.MimeJPEG,
	"png":  domain.MimePNG,
}

// Validate decodes the stored object's header and checks that the decoded
// format matches mimeType. Objects that fail either check are released.
func (v *ImageValidator) Validate(ctx context.Context, obj *pendingObject, mimeType string) (Dimensions, error) {
	dims, format, err := v.decodeHeader(ctx, obj.name)
	if err == nil && formatMime[format] != mimeType {
		err = fmt.Errorf("%w: content is %s, declared %s", ErrInvalidImage, format, mimeType)
	}
	if err != nil {
		obj.Release(ctx)
		return Dimensions{}, err
	}
	return dims, nil
}

func (v *ImageValidator) decodeHeader(ctx context.Context, name string) (Dimensions, string, error) {
	rc, err := v.files.Open(ctx, name)
	if err != nil {
		return Dimensions{}, "", fmt.Errorf("%w: %v", ErrStorage, err)
	}
	defer rc.Close()

	cfg, format, err := image.DecodeConfig(rc)
	if err != nil {
		return Dimensions{}, "", fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return Dimensions{}, "", fmt.Errorf("%w: non-positive dimensions %dx%d", ErrInvalidImage, cfg.Width, cfg.Height)
	}
	return Dimensions{Width: cfg.Width, Height: cfg.Height}, format, nil
}
