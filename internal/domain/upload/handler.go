package upload

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"imageshelf/internal/pkg/response"
)

// multipart boundaries and headers on top of the file itself
const multipartOverhead = 1 << 20

type Handler struct {
	service *Service
	maxBody int64
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service: service,
		maxBody: service.cfg.Upload.MaxSize + multipartOverhead,
	}
}

// Upload godoc
// @Summary Upload an image
// @Description Upload one JPEG or PNG image. Returns the stored image descriptor with its public URL.
// @Tags Uploads
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Image to upload"
// @Success 201 {object} domain.ImageDescriptor
// @Failure 400,413,500 {object} map[string]string
// @Router /uploads [post]
func (h *Handler) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBody)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		if isBodyTooLarge(err) {
			response.Error(c, http.StatusRequestEntityTooLarge, ErrFileTooLarge.Error())
			return
		}
		response.Error(c, http.StatusBadRequest, ErrMissingFile.Error())
		return
	}

	desc, err := h.service.Upload(c.Request.Context(), fileHeader)
	if err != nil {
		status, message := statusFor(err)
		if status >= http.StatusInternalServerError {
			_ = c.Error(err)
		}
		response.Error(c, status, message)
		return
	}

	response.Success(c, http.StatusCreated, desc)
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrMissingFile):
		return http.StatusBadRequest, ErrMissingFile.Error()
	case errors.Is(err, ErrEmptyFile):
		return http.StatusBadRequest, ErrEmptyFile.Error()
	case errors.Is(err, ErrInvalidMimeType):
		return http.StatusBadRequest, ErrInvalidMimeType.Error()
	case errors.Is(err, ErrInvalidImage):
		return http.StatusBadRequest, ErrInvalidImage.Error()
	case errors.Is(err, ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge, ErrFileTooLarge.Error()
	case errors.Is(err, ErrPersistence):
		return http.StatusInternalServerError, ErrPersistence.Error()
	default:
		return http.StatusInternalServerError, "upload failed"
	}
}

func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return true
	}
	return strings.Contains(err.Error(), "request body too large")
}
