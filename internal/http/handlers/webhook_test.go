package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"mediaserver/internal/domain"
)

func seedVideoJob(repo *memRepo, id, username string, status domain.Status) {
	repo.recs[id] = &domain.HistoryRecord{
		ID:       id,
		Username: username,
		Kind:     domain.KindVideo,
		Status:   status,
	}
}

func postWebhook(app *App, id, username, body string) *httptest.ResponseRecorder {
	target := "/v1/webhooks/video"
	if id != "" || username != "" {
		target += "?historyItemId=" + id + "&username=" + username
	}
	req := httptest.NewRequest("POST", target, strings.NewReader(body))
	rr := httptest.NewRecorder()
	app.VideoWebhook(rr, req)
	return rr
}

func TestVideoWebhookSuccess(t *testing.T) {
	repo := newMemRepo()
	store := newStubStore()
	seedVideoJob(repo, "job-1", "alice", domain.StatusProcessing)
	app := newTestApp(repo, store, nil, nil)

	rr := postWebhook(app, "job-1", "alice",
		`{"status":"OK","payload":{"video":{"url":"https://vendor/tmp/x.mp4"},"seed":42}}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body=%s", rr.Code, rr.Body.String())
	}

	rec := repo.get("job-1")
	if rec.Status != domain.StatusCompleted {
		t.Fatalf("record status = %s, want completed", rec.Status)
	}
	if len(rec.GeneratedURLs) != 2 {
		t.Fatalf("generated urls = %v, want local + mirror", rec.GeneratedURLs)
	}
	if !strings.HasPrefix(rec.GeneratedURLs[0], "/api/proxy/generated/videos/job-1/") {
		t.Errorf("local url = %q", rec.GeneratedURLs[0])
	}
	if rec.GeneratedURLs[1] != "https://vendor/tmp/x.mp4" {
		t.Errorf("mirror url = %q", rec.GeneratedURLs[1])
	}
	if len(store.fetched) != 1 || store.fetched[0] != "https://vendor/tmp/x.mp4" {
		t.Errorf("fetched = %v", store.fetched)
	}
}

func TestVideoWebhookExplicitError(t *testing.T) {
	repo := newMemRepo()
	seedVideoJob(repo, "job-1", "alice", domain.StatusProcessing)
	app := newTestApp(repo, newStubStore(), nil, nil)

	rr := postWebhook(app, "job-1", "alice", `{"status":"ERROR","error":"boom"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 ack", rr.Code)
	}
	rec := repo.get("job-1")
	if rec.Status != domain.StatusFailed || rec.ErrorMessage != "boom" {
		t.Fatalf("record = %s %q, want failed boom", rec.Status, rec.ErrorMessage)
	}
}

func TestVideoWebhookUnexpectedStatus(t *testing.T) {
	repo := newMemRepo()
	seedVideoJob(repo, "job-1", "alice", domain.StatusProcessing)
	app := newTestApp(repo, newStubStore(), nil, nil)

	rr := postWebhook(app, "job-1", "alice", `{"status":"THROTTLED"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	rec := repo.get("job-1")
	if rec.Status != domain.StatusFailed {
		t.Fatalf("record status = %s, want failed", rec.Status)
	}
	if !strings.Contains(rec.ErrorMessage, "THROTTLED") {
		t.Errorf("error message = %q", rec.ErrorMessage)
	}
}

func TestVideoWebhookMissingVideoURL(t *testing.T) {
	repo := newMemRepo()
	seedVideoJob(repo, "job-1", "alice", domain.StatusProcessing)
	app := newTestApp(repo, newStubStore(), nil, nil)

	rr := postWebhook(app, "job-1", "alice", `{"status":"OK","payload":{"seed":7}}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	rec := repo.get("job-1")
	if rec.Status != domain.StatusFailed {
		t.Fatalf("record status = %s, want failed", rec.Status)
	}
}

func TestVideoWebhookDownloadFailure(t *testing.T) {
	repo := newMemRepo()
	store := newStubStore()
	store.saveErr = errUpstreamDown
	seedVideoJob(repo, "job-1", "alice", domain.StatusProcessing)
	app := newTestApp(repo, store, nil, nil)

	rr := postWebhook(app, "job-1", "alice",
		`{"status":"OK","payload":{"video":{"url":"https://vendor/x.mp4"}}}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	rec := repo.get("job-1")
	if rec.Status != domain.StatusFailed {
		t.Fatalf("record status = %s, want failed after download error", rec.Status)
	}
}

func TestVideoWebhookMalformedBody(t *testing.T) {
	repo := newMemRepo()
	seedVideoJob(repo, "job-1", "alice", domain.StatusProcessing)
	app := newTestApp(repo, newStubStore(), nil, nil)

	rr := postWebhook(app, "job-1", "alice", `{"status":`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	if rec := repo.get("job-1"); rec.Status != domain.StatusProcessing {
		t.Fatalf("record mutated on malformed body: %s", rec.Status)
	}
}

func TestVideoWebhookMissingIdentity(t *testing.T) {
	app := newTestApp(newMemRepo(), newStubStore(), nil, nil)
	rr := postWebhook(app, "", "", `{"status":"OK"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestVideoWebhookUnknownJob(t *testing.T) {
	repo := newMemRepo()
	app := newTestApp(repo, newStubStore(), nil, nil)

	rr := postWebhook(app, "ghost", "alice", `{"status":"OK","payload":{"video":{"url":"https://vendor/x.mp4"}}}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 ack", rr.Code)
	}
	if len(repo.recs) != 0 {
		t.Fatal("no record should be created for unknown job")
	}
}

func TestVideoWebhookOwnerMismatch(t *testing.T) {
	repo := newMemRepo()
	seedVideoJob(repo, "job-1", "alice", domain.StatusProcessing)
	app := newTestApp(repo, newStubStore(), nil, nil)

	rr := postWebhook(app, "job-1", "mallory", `{"status":"ERROR","error":"forged"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 ack", rr.Code)
	}
	if rec := repo.get("job-1"); rec.Status != domain.StatusProcessing {
		t.Fatalf("record mutated by mismatched owner: %s", rec.Status)
	}
}

func TestVideoWebhookDuplicateDeliveryIsNoOp(t *testing.T) {
	repo := newMemRepo()
	store := newStubStore()
	seedVideoJob(repo, "job-1", "alice", domain.StatusProcessing)
	app := newTestApp(repo, store, nil, nil)

	body := `{"status":"OK","payload":{"video":{"url":"https://vendor/x.mp4"},"seed":1}}`
	if rr := postWebhook(app, "job-1", "alice", body); rr.Code != http.StatusOK {
		t.Fatalf("first delivery status = %d", rr.Code)
	}
	first := repo.get("job-1")

	if rr := postWebhook(app, "job-1", "alice", body); rr.Code != http.StatusOK {
		t.Fatalf("second delivery status = %d", rr.Code)
	}
	second := repo.get("job-1")

	if second.Status != domain.StatusCompleted {
		t.Fatalf("status after duplicate = %s", second.Status)
	}
	if len(second.GeneratedURLs) != len(first.GeneratedURLs) || second.GeneratedURLs[0] != first.GeneratedURLs[0] {
		t.Fatalf("duplicate delivery changed urls: %v -> %v", first.GeneratedURLs, second.GeneratedURLs)
	}
	if len(store.fetched) != 1 {
		t.Fatalf("artifact fetched %d times, want 1", len(store.fetched))
	}
}
