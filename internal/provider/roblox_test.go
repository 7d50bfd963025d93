package provider_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bloxkit/experience-notify/internal/provider"
)

var testNotification = provider.Notification{
	UserID:     42,
	UniverseID: "universe-7",
	AssetID:    "asset-9",
}

func TestRobloxProvider_SendsExpectedRequest(t *testing.T) {
	var gotPath, gotKey string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-api-key")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := provider.NewRobloxProvider(srv.URL, time.Second)
	if err := p.Send(context.Background(), testNotification, "plain-key"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotPath != "/cloud/v2/users/42/notifications" {
		t.Fatalf("unexpected path: %s", gotPath)
	}
	if gotKey != "plain-key" {
		t.Fatalf("expected credential in x-api-key header, got %q", gotKey)
	}

	source, _ := gotBody["source"].(map[string]any)
	if source["universe"] != "universes/universe-7" {
		t.Fatalf("unexpected source: %v", gotBody["source"])
	}
	payload, _ := gotBody["payload"].(map[string]any)
	if payload["message_id"] != "asset-9" || payload["type"] != "MOMENT" {
		t.Fatalf("unexpected payload: %v", gotBody["payload"])
	}
}

func TestRobloxProvider_NonSuccessIsError(t *testing.T) {
	for _, code := range []int{400, 401, 429, 500} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(code)
		}))

		p := provider.NewRobloxProvider(srv.URL, time.Second)
		if err := p.Send(context.Background(), testNotification, "k"); err == nil {
			t.Fatalf("expected error for status %d", code)
		}
		srv.Close()
	}
}

func TestRobloxProvider_NetworkFailureIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // closed before use: connection refused

	p := provider.NewRobloxProvider(srv.URL, time.Second)
	if err := p.Send(context.Background(), testNotification, "k"); err == nil {
		t.Fatal("expected a transport error")
	}
}
