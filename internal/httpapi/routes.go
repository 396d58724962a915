package httpapi

import (
	"cobblepod/internal/config"
	"cobblepod/internal/jobstore"
	"cobblepod/internal/session"

	"github.com/gin-gonic/gin"
)

// setupRoutes wires every endpoint Cobblepod's frontend serves. Every
// route below the session middleware resolves to a user ID derived purely
// from the request's session cookie, never from a password or identity
// provider.
func setupRoutes(r *gin.Engine, cfg *config.Config, store *jobstore.Store, sessions *session.Manager) {
	h := &handlers{cfg: cfg, store: store}

	r.GET("/api/health", h.health)

	authed := r.Group("/")
	authed.Use(sessions.Middleware())
	{
		authed.GET("/", h.index)
		authed.GET("/editor", h.editorPage)
		authed.POST("/editor", h.saveEdit)

		authed.POST("/upload", h.upload)
		authed.GET("/api/queue", h.queueStatus)
		authed.GET("/api/progress", h.progress)

		authed.GET("/download/:kind/:file", h.download)
		authed.GET("/download-all", h.downloadAll)
		authed.GET("/media/:user/:file", h.media)
		authed.GET("/data/:user/:file", h.data)
	}
}
