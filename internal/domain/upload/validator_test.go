package upload

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"imageshelf/internal/storage"
)

func TestResolveMimeType(t *testing.T) {
	png := testPNG(t, 2, 2)

	mt, err := ResolveMimeType("image/jpeg", nil)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", mt)

	mt, err = ResolveMimeType("IMAGE/PNG; charset=binary", nil)
	require.NoError(t, err)
	assert.Equal(t, "image/png", mt)

	mt, err = ResolveMimeType("image/jpg", nil)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", mt)

	mt, err = ResolveMimeType("", png)
	require.NoError(t, err)
	assert.Equal(t, "image/png", mt)

	mt, err = ResolveMimeType("application/octet-stream", png)
	require.NoError(t, err)
	assert.Equal(t, "image/png", mt)

	for _, declared := range []string{"image/gif", "text/plain", "application/pdf", "image/svg+xml"} {
		_, err = ResolveMimeType(declared, png)
		assert.ErrorIs(t, err, ErrInvalidMimeType, declared)
	}

	_, err = ResolveMimeType("", []byte("just text"))
	assert.ErrorIs(t, err, ErrInvalidMimeType)
}

func TestImageValidator(t *testing.T) {
	ctx := context.Background()
	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	v := NewImageValidator(files)

	_, err = files.Put(ctx, "ok.jpg", bytes.NewReader(testJPEG(t, 80, 120)), -1, "image/jpeg")
	require.NoError(t, err)
	dims, err := v.Validate(ctx, &pendingObject{name: "ok.jpg", files: files, log: zap.NewNop()}, "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, Dimensions{Width: 80, Height: 120}, dims)

	_, err = files.Put(ctx, "bad.jpg", bytes.NewReader([]byte("\xff\xd8 not really a jpeg")), -1, "image/jpeg")
	require.NoError(t, err)
	_, err = v.Validate(ctx, &pendingObject{name: "bad.jpg", files: files, log: zap.NewNop()}, "image/jpeg")
	assert.ErrorIs(t, err, ErrInvalidImage)

	// invalid bytes are removed, valid ones stay
	objects, err := files.List(ctx)
	require.NoError(t, err)
	require.Len(t, objects, 1)
	assert.Equal(t, "ok.jpg", objects[0].Name)
}

func TestImageValidatorRejectsFormatMismatch(t *testing.T) {
	ctx := context.Background()
	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	v := NewImageValidator(files)

	_, err = files.Put(ctx, "scan.png", bytes.NewReader(testJPEG(t, 8, 6)), -1, "image/png")
	require.NoError(t, err)
	_, err = v.Validate(ctx, &pendingObject{name: "scan.png", files: files, log: zap.NewNop()}, "image/png")
	assert.ErrorIs(t, err, ErrInvalidImage)
	assert.Contains(t, err.Error(), "content is jpeg")

	_, err = files.Put(ctx, "photo.jpg", bytes.NewReader(testPNG(t, 8, 6)), -1, "image/jpeg")
	require.NoError(t, err)
	_, err = v.Validate(ctx, &pendingObject{name: "photo.jpg", files: files, log: zap.NewNop()}, "image/jpeg")
	assert.ErrorIs(t, err, ErrInvalidImage)

	objects, err := files.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, objects)
}
