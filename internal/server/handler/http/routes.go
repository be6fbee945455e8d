// Package http provides HTTP routing and handlers for the vaultkeeper
// control API.
package http

import (
	"net/http"

	"github.com/atinyakov/vaultkeeper/internal/middleware"
	"go.uber.org/zap"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// NewRouter constructs the control API handler.
//
// Routes:
//
//	GET  /healthz                       liveness, no client certificate needed
//	GET  /api/artifacts?prefix=         artifactHandler.List
//	POST /api/artifacts/{name}/verify   artifactHandler.Verify
//	POST /api/backup                    backupHandler.Backup
//
// Middleware chain, in order: JSON content type for bodies, request
// logging, client certificate authentication.
func NewRouter(
	artifactHandler *ArtifactHandler,
	backupHandler *BackupHandler,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.AllowContentType("application/json"))
	r.Use(middleware.WithRequestLogging(logger))
	r.Use(middleware.CertAuth)

	r.Get(middleware.HealthPath, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/artifacts", artifactHandler.List)
		r.Post("/artifacts/{name}/verify", artifactHandler.Verify)
		r.Post("/backup", backupHandler.Backup)
	})

	return r
}
