package upload

import "errors"

var (
	ErrMissingFile     = errors.New("no file provided")
	ErrEmptyFile       = errors.New("file is empty")
	ErrFileTooLarge    = errors.New("file exceeds maximum allowed size")
	ErrInvalidMimeType = errors.New("file type is not allowed, only JPEG and PNG images are accepted")
	ErrInvalidImage    = errors.New("file is not a valid image")
	ErrStorage         = errors.New("failed to store file")
	ErrPersistence     = errors.New("failed to save image metadata")
)
