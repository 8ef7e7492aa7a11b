package domain

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"
)

const (
	MimeJPEG = "image/jpeg"
	MimePNG  = "image/png"
)

// AllowedMimeTypes is the upload allow-list.
var AllowedMimeTypes = map[string]bool{
	MimeJPEG: true,
	MimePNG:  true,
}

var (
	ErrImageNotFound   = errors.New("image not found")
	ErrDuplicateRecord = errors.New("duplicate record")
)

// StoredImage is the metadata record of an uploaded image. A record exists
// only while its byte stream exists in storage.
type StoredImage struct {
	ID           string    `gorm:"column:id;primaryKey" json:"id"`
	Filename     string    `gorm:"column:filename;uniqueIndex;not null" json:"filename"`
	OriginalName string    `gorm:"column:original_name;not null" json:"original_name"`
	MimeType     string    `gorm:"column:mime_type;not null" json:"mime_type"`
	Size         int64     `gorm:"column:size;not null" json:"size"`
	Width        int       `gorm:"column:width;not null" json:"width"`
	Height       int       `gorm:"column:height;not null" json:"height"`
	IdentityID   string    `gorm:"column:identity_id;index;not null" json:"identity_id"`
	CreatedAt    time.Time `gorm:"column:created_at;index;not null" json:"created_at"`
}

func (StoredImage) TableName() string { return "images" }

// ImageStore is the Metadata Store consumed by upload and listing.
type ImageStore interface {
	Create(ctx context.Context, img *StoredImage) error
	// List returns records newest first together with the total record count.
	List(ctx context.Context, limit, offset int) ([]StoredImage, int64, error)
	ExistsByFilename(ctx context.Context, filename string) (bool, error)
}

// ImageDescriptor is the public shape of a StoredImage, shared by the upload
// response and listing items.
type ImageDescriptor struct {
	ID           string    `json:"id"`
	Filename     string    `json:"filename"`
	OriginalName string    `json:"originalName"`
	MimeType     string    `json:"mimeType"`
	Size         int64     `json:"size"`
	Width        int       `json:"width"`
	Height       int       `json:"height"`
	URL          string    `json:"url"`
	UploadedAt   time.Time `json:"uploadedAt"`
}

func Describe(img StoredImage, baseURL string) ImageDescriptor {
	return ImageDescriptor{
		ID:           img.ID,
		Filename:     img.Filename,
		OriginalName: img.OriginalName,
		MimeType:     img.MimeType,
		Size:         img.Size,
		Width:        img.Width,
		Height:       img.Height,
		URL:          PublicURL(baseURL, img.Filename),
		UploadedAt:   img.CreatedAt,
	}
}

// PublicURL builds {base}/uploads/{storageName}.
func PublicURL(baseURL, storageName string) string {
	return strings.TrimRight(baseURL, "/") + "/uploads/" + url.PathEscape(storageName)
}
