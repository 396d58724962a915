// Package httpapi is the frontend: the gin server that accepts uploads,
// serves queue status and finished artifacts, and has no access to the
// worker process beyond the shared filesystem tree under ROOT.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"cobblepod/internal/config"
	"cobblepod/internal/jobstore"
	"cobblepod/internal/session"

	"github.com/gin-gonic/gin"
)

// Server wraps the HTTP listener Cobblepod's frontend process runs.
type Server struct {
	httpServer *http.Server
	router     *gin.Engine
	cfg        *config.Config
}

// New builds a Server bound to cfg.Port, wiring every route to the given
// job store and session manager.
func New(cfg *config.Config, store *jobstore.Store, sessions *session.Manager) *Server {
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	setupRoutes(router, cfg, store, sessions)

	httpServer := &http.Server{
		Addr:         portAddr(cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // artifact/progress streaming endpoints can run long
		IdleTimeout:  60 * time.Second,
	}

	return &Server{httpServer: httpServer, router: router, cfg: cfg}
}

// Start runs the HTTP server, using TLS when SSL_CERTFILE/SSL_KEYFILE are
// both configured, matching the reference deployment's ability to run
// fully self-contained without a reverse proxy in front of it.
func (s *Server) Start() error {
	if s.cfg.SSLCertFile != "" && s.cfg.SSLKeyFile != "" {
		slog.Info("starting HTTPS server", "address", s.httpServer.Addr)
		return s.httpServer.ListenAndServeTLS(s.cfg.SSLCertFile, s.cfg.SSLKeyFile)
	}
	slog.Info("starting HTTP server", "address", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func portAddr(port int) string {
	if port == 0 {
		port = 8080
	}
	return ":" + strconv.Itoa(port)
}

// corsMiddleware allows the editor's HTML/JS (served from the same origin
// as the API, but possibly behind a different dev-server port) to reach
// every endpoint.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
