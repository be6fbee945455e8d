package http_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/atinyakov/vaultkeeper/internal/models"
	handler "github.com/atinyakov/vaultkeeper/internal/server/handler/http"
)

func TestBackupHandler_Results(t *testing.T) {
	entries := []models.Entry{
		{Server: "https://a.local", RootPath: "secrets/"},
		{Server: "https://b.local", RootPath: "apps/"},
	}
	runner := &fakeRunner{failFor: "https://b.local"}
	rec := httptest.NewRecorder()
	req := withClientCert(httptest.NewRequest(http.MethodPost, "/api/backup", nil))

	newRouter(&fakeArtifactService{}, runner, entries).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; want %d", rec.Code, http.StatusOK)
	}
	var got struct {
		Results []models.EntryResult `json:"results"`
		Failed  int                  `json:"failed"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if runner.calls != 1 {
		t.Errorf("runner calls = %d; want 1", runner.calls)
	}
	if len(got.Results) != 2 || got.Failed != 1 {
		t.Fatalf("results = %+v failed = %d; want 2 results, 1 failed", got.Results, got.Failed)
	}
	if got.Results[0].Artifact == "" || got.Results[1].Error == "" {
		t.Errorf("unexpected results: %+v", got.Results)
	}
}

func TestBackupHandler_RejectsNonJSONBody(t *testing.T) {
	rec := httptest.NewRecorder()
	req := withClientCert(httptest.NewRequest(http.MethodPost, "/api/backup", strings.NewReader("go")))
	req.Header.Set("Content-Type", "text/plain")

	newRouter(&fakeArtifactService{}, &fakeRunner{}, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnsupportedMediaType {
		t.Errorf("status = %d; want %d", rec.Code, http.StatusUnsupportedMediaType)
	}
}

func TestBackupHandler_SingleRun(t *testing.T) {
	runner := &fakeRunner{started: make(chan struct{}), block: make(chan struct{})}
	h := &handler.BackupHandler{Runner: runner, Entries: []models.Entry{{Server: "https://a.local"}}}

	done := make(chan int)
	go func() {
		rec := httptest.NewRecorder()
		h.Backup(rec, httptest.NewRequest(http.MethodPost, "/api/backup", nil))
		done <- rec.Code
	}()

	<-runner.started
	rec := httptest.NewRecorder()
	h.Backup(rec, httptest.NewRequest(http.MethodPost, "/api/backup", nil))
	if rec.Code != http.StatusConflict {
		t.Errorf("second run status = %d; want %d", rec.Code, http.StatusConflict)
	}
	close(runner.block)

	if code := <-done; code != http.StatusOK {
		t.Errorf("first run status = %d; want %d", code, http.StatusOK)
	}
}
