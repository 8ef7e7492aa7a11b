package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"imageshelf/internal/config"
	"imageshelf/internal/domain"
	"imageshelf/internal/domain/events"
	"imageshelf/internal/domain/listing"
	"imageshelf/internal/domain/upload"
	"imageshelf/internal/middleware"
	"imageshelf/internal/storage"
)

// Deps are the long-lived collaborators built by main.
type Deps struct {
	Images     domain.ImageStore
	Identities domain.IdentityProvider
	Files      storage.Storage
	Hub        *events.Hub
}

// NewRouter wires handlers for the upload, listing and event endpoints.
// With local storage the upload directory is served under /uploads so
// public URLs resolve.
func NewRouter(cfg *config.Config, deps Deps, log *zap.Logger) *gin.Engine {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.IsProdLike() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(
		middleware.RequestID(),
		middleware.Recovery(log),
		middleware.RequestLogger(log),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)
	r.MaxMultipartMemory = 8 << 20

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if local, ok := deps.Files.(*storage.LocalStorage); ok {
		r.Static("/uploads", local.Root())
	}

	var publisher upload.Publisher
	if deps.Hub != nil {
		publisher = deps.Hub
	}
	uploadService := upload.NewService(cfg, deps.Images, deps.Identities, deps.Files, publisher, log.Named("upload"))
	listingService := listing.NewService(cfg, deps.Images, log.Named("listing"))

	v1 := r.Group("/api/v1")
	{
		upload.RegisterRoutes(v1, upload.NewHandler(uploadService))
		listing.RegisterRoutes(v1, listing.NewHandler(listingService))
		if deps.Hub != nil {
			events.RegisterRoutes(v1, events.NewHandler(deps.Hub, cfg.CORS.AllowedOrigins, log.Named("events")))
		}
	}

	return r
}
