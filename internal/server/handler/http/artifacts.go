package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	berrors "github.com/atinyakov/vaultkeeper/internal/errors"
	"github.com/atinyakov/vaultkeeper/internal/models"
	"github.com/go-chi/chi/v5"
)

// ArtifactService defines the read-only artifact operations exposed over
// HTTP. Restore is not exposed.
type ArtifactService interface {
	// List returns stored artifacts whose name starts with prefix, sorted by name.
	List(ctx context.Context, prefix string) ([]models.ArtifactInfo, error)
	// Verify checks the integrity tag of the named artifact without decrypting it.
	Verify(ctx context.Context, name string) error
}

// ArtifactHandler handles HTTP requests for stored artifacts.
type ArtifactHandler struct {
	ArtifactService ArtifactService
}

// List handles GET /api/artifacts?prefix=...
func (h *ArtifactHandler) List(w http.ResponseWriter, r *http.Request) {
	infos, err := h.ArtifactService.List(r.Context(), r.URL.Query().Get("prefix"))
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	if infos == nil {
		infos = []models.ArtifactInfo{}
	}
	writeJSON(w, http.StatusOK, infos)
}

// Verify handles POST /api/artifacts/{name}/verify.
func (h *ArtifactHandler) Verify(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" {
		http.Error(w, "artifact name required", http.StatusBadRequest)
		return
	}
	if err := h.ArtifactService.Verify(r.Context(), name); err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"name": name, "verified": true})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, berrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, berrors.ErrTamperDetected), errors.Is(err, berrors.ErrDecode):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
