package upload

import "github.com/gin-gonic/gin"

// RegisterRoutes registers upload routes. Uploads are attributed to the
// placeholder identity, so no authentication middleware is involved.
func RegisterRoutes(r *gin.RouterGroup, h *Handler) {
	r.POST("/uploads", h.Upload)
}
