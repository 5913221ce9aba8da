package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSlackNotify(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("unexpected content type %q", r.Header.Get("Content-Type"))
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	if err := NewSlack(time.Second).Notify(context.Background(), srv.URL, "New submission"); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if got["text"] != "New submission" {
		t.Fatalf("unexpected payload %v", got)
	}
}

func TestSlackNotifyError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid_token", http.StatusForbidden)
	}))
	defer srv.Close()

	if err := NewSlack(time.Second).Notify(context.Background(), srv.URL, "x"); err == nil {
		t.Fatalf("expected error for 403 response")
	}
}
