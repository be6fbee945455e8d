package http

import (
	"context"
	"net/http"
	"sync"

	"github.com/atinyakov/vaultkeeper/internal/models"
)

// BackupRunner runs a batch backup.
type BackupRunner interface {
	BackupAll(ctx context.Context, entries []models.Entry) []models.EntryResult
}

// BackupHandler triggers backups of the configured entries.
type BackupHandler struct {
	Runner  BackupRunner
	Entries []models.Entry

	running sync.Mutex
}

type backupResponse struct {
	Results []models.EntryResult `json:"results"`
	Failed  int                  `json:"failed"`
}

// Backup handles POST /api/backup. It runs every configured entry and
// answers with one result per entry. Only one run may be active; a second
// request gets 409.
func (h *BackupHandler) Backup(w http.ResponseWriter, r *http.Request) {
	if !h.running.TryLock() {
		http.Error(w, "backup already running", http.StatusConflict)
		return
	}
	defer h.running.Unlock()

	resp := backupResponse{Results: h.Runner.BackupAll(r.Context(), h.Entries)}
	for _, res := range resp.Results {
		if res.Failed() {
			resp.Failed++
		}
	}
	if resp.Results == nil {
		resp.Results = []models.EntryResult{}
	}
	writeJSON(w, http.StatusOK, resp)
}
