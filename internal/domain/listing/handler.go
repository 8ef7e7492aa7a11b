package listing

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"imageshelf/internal/pkg/response"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// ListImages godoc
// @Summary List uploaded images
// @Description Returns stored images newest first. limit is clamped to 1..100 (default 20), offset to >= 0.
// @Tags Images
// @Produce json
// @Param limit query integer false "Page size" example(20)
// @Param offset query integer false "Number of items to skip" example(0)
// @Success 200 {object} Page
// @Failure 500 {object} map[string]string
// @Router /images [get]
func (h *Handler) ListImages(c *gin.Context) {
	limit, offset := Clamp(c.Query("limit"), c.Query("offset"))

	page, err := h.service.List(c.Request.Context(), limit, offset)
	if err != nil {
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, "failed to list images")
		return
	}

	response.Success(c, http.StatusOK, page)
}
