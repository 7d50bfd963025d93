package api_test

import (
	"bytes"
	"compress/gzip"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/bloxkit/experience-notify/internal/api"
	"github.com/bloxkit/experience-notify/internal/crypto"
	"github.com/bloxkit/experience-notify/internal/fingerprint"
	"github.com/bloxkit/experience-notify/internal/queue"
	"github.com/bloxkit/experience-notify/internal/ratelimiter"
	"github.com/bloxkit/experience-notify/internal/store"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func newTestRouter(t *testing.T, token string, perMinute int) http.Handler {
	t.Helper()
	cipher, err := crypto.NewCipher(testKey)
	if err != nil {
		t.Fatalf("cipher: %v", err)
	}
	st := store.NewMemoryStore()
	q := queue.New(st, 25*time.Second, 240*time.Hour, zap.NewNop())

	return api.NewRouter(api.RouterDeps{
		Queue:       q,
		Cipher:      cipher,
		Fingerprint: fingerprint.NewGenerator("router-test-salt"),
		Limiters:    ratelimiter.New(perMinute),
		Registry:    prometheus.NewRegistry(),
		AccessToken: token,
		Logger:      zap.NewNop(),
	})
}

func TestRouter_HealthIsOpen(t *testing.T) {
	r := newTestRouter(t, "sekrit", 60)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 without auth, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "experience notification service") {
		t.Fatalf("unexpected health body: %s", rec.Body.String())
	}
}

func TestRouter_BearerAuth(t *testing.T) {
	r := newTestRouter(t, "sekrit", 60)

	status := func(authorization string) int {
		req := httptest.NewRequest(http.MethodGet,
			"/api/get-experience-notification-status?jobId=x", nil)
		if authorization != "" {
			req.Header.Set("Authorization", authorization)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec.Code
	}

	if got := status(""); got != http.StatusUnauthorized {
		t.Fatalf("no header: expected 401, got %d", got)
	}
	if got := status("Bearer wrong"); got != http.StatusUnauthorized {
		t.Fatalf("wrong token: expected 401, got %d", got)
	}
	if got := status("sekrit"); got != http.StatusUnauthorized {
		t.Fatalf("missing Bearer prefix: expected 401, got %d", got)
	}
	// Correct token reaches the handler, which 404s the unknown job.
	if got := status("Bearer sekrit"); got != http.StatusNotFound {
		t.Fatalf("valid token: expected 404, got %d", got)
	}
}

func TestRouter_EmptyTokenDisablesAuth(t *testing.T) {
	r := newTestRouter(t, "", 60)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/api/get-experience-notification-status?jobId=x", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected handler to run without auth, got %d", rec.Code)
	}
}

func TestRouter_GzippedSubmission(t *testing.T) {
	r := newTestRouter(t, "", 60)

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write([]byte(`{"userId":"1","universeId":"u","assetId":"a"}`)); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	gz.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/send-experience-notification", &buf)
	req.Header.Set("Content-Encoding", "gzip")
	req.Header.Set("x-cloud-api-key", "k")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for gzipped body, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "jobId") {
		t.Fatalf("expected jobId in response: %s", rec.Body.String())
	}
}

func TestRouter_CorruptGzipRejected(t *testing.T) {
	r := newTestRouter(t, "", 60)

	req := httptest.NewRequest(http.MethodPost, "/api/send-experience-notification",
		strings.NewReader("definitely not gzip"))
	req.Header.Set("Content-Encoding", "gzip")
	req.Header.Set("x-cloud-api-key", "k")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for corrupt gzip, got %d", rec.Code)
	}
}

func TestRouter_SubmitRateLimited(t *testing.T) {
	r := newTestRouter(t, "", 2)

	submit := func() int {
		req := httptest.NewRequest(http.MethodPost, "/api/send-experience-notification",
			strings.NewReader(`{"userId":"1","universeId":"u","assetId":"a"}`))
		req.Header.Set("x-cloud-api-key", "k")
		req.Header.Set("User-Agent", "same-client/1.0")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec.Code
	}

	if got := submit(); got != http.StatusOK {
		t.Fatalf("first submit: expected 200, got %d", got)
	}
	if got := submit(); got != http.StatusOK {
		t.Fatalf("second submit: expected 200, got %d", got)
	}
	if got := submit(); got != http.StatusTooManyRequests {
		t.Fatalf("third submit: expected 429, got %d", got)
	}

	// Status queries stay available to a limited client.
	req := httptest.NewRequest(http.MethodGet,
		"/api/get-experience-notification-status?jobId=x", nil)
	req.Header.Set("User-Agent", "same-client/1.0")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status for limited client: expected 404, got %d", rec.Code)
	}
}

func TestRouter_DistinctClientsLimitedIndependently(t *testing.T) {
	r := newTestRouter(t, "", 1)

	submit := func(ua string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/send-experience-notification",
			strings.NewReader(`{"userId":"1","universeId":"u","assetId":"a"}`))
		req.Header.Set("x-cloud-api-key", "k")
		req.Header.Set("User-Agent", ua)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec.Code
	}

	if got := submit("client-a/1.0"); got != http.StatusOK {
		t.Fatalf("client a: expected 200, got %d", got)
	}
	if got := submit("client-a/1.0"); got != http.StatusTooManyRequests {
		t.Fatalf("client a again: expected 429, got %d", got)
	}
	if got := submit("client-b/2.0"); got != http.StatusOK {
		t.Fatalf("client b: expected 200, got %d", got)
	}
}

func TestRouter_CorrelationID(t *testing.T) {
	r := newTestRouter(t, "", 60)

	get := func(id string) string {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if id != "" {
			req.Header.Set("X-Correlation-ID", id)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec.Header().Get("X-Correlation-ID")
	}

	if got := get("caller-chosen-id"); got != "caller-chosen-id" {
		t.Fatalf("caller-supplied id must be echoed, got %q", got)
	}
	if got := get(""); got == "" {
		t.Fatal("expected a generated id when none is supplied")
	}
	oversized := strings.Repeat("x", 65)
	if got := get(oversized); got == oversized || got == "" {
		t.Fatalf("oversized id must be replaced, got %q", got)
	}
}

func TestRouter_PrometheusEndpoint(t *testing.T) {
	r := newTestRouter(t, "sekrit", 60)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	// Scrape endpoint sits outside the /api auth boundary.
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
