package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"imageshelf/internal/domain"
	"imageshelf/internal/gallery"
)

func TestRender(t *testing.T) {
	var out bytes.Buffer

	render(&out, gallery.Snapshot{State: gallery.StateLoading})
	render(&out, gallery.Snapshot{State: gallery.StateLoading, Attempt: 2})
	render(&out, gallery.Snapshot{
		State: gallery.StateSuccess,
		Total: 7,
		Items: []domain.ImageDescriptor{{
			OriginalName: "page01.jpg",
			Width:        800,
			Height:       1200,
			Size:         2097152,
			URL:          "http://localhost:8080/uploads/1-abc.jpg",
			UploadedAt:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		}},
	})
	render(&out, gallery.Snapshot{State: gallery.StateError, Err: "listing request failed: 503"})

	text := out.String()
	assert.Contains(t, text, "loading...\n")
	assert.Contains(t, text, "loading... (retry 2)")
	assert.Contains(t, text, "7 images (showing 1)")
	assert.Contains(t, text, "800x1200")
	assert.Contains(t, text, "page01.jpg")
	assert.Contains(t, text, "http://localhost:8080/uploads/1-abc.jpg")
	assert.Contains(t, text, "could not load images: listing request failed: 503")
}
