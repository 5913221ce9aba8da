package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func statusServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDeliverSuccess(t *testing.T) {
	srv := statusServer(t, http.StatusNoContent)
	result, err := NewDispatcher(time.Second).Deliver(context.Background(), DeliveryRequest{
		WebhookURL: srv.URL,
		Payload:    json.RawMessage(`{"id":"s1"}`),
	})
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if !result.Success || result.RetryNeeded || result.Exhausted {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestDeliverSignalsRetryWithBackoff(t *testing.T) {
	srv := statusServer(t, http.StatusInternalServerError)
	result, err := NewDispatcher(time.Second).Deliver(context.Background(), DeliveryRequest{
		WebhookURL: srv.URL,
		Payload:    json.RawMessage(`{"id":"s1"}`),
		Retries:    4,
	})
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if !result.RetryNeeded || result.Retries != 5 {
		t.Fatalf("expected retry with retries=5, got %+v", result)
	}
	if result.Delay.Milliseconds() != 16000 {
		t.Fatalf("expected 16000ms delay, got %d", result.Delay.Milliseconds())
	}
	if result.Status != http.StatusInternalServerError || result.StatusText != "Internal Server Error" {
		t.Fatalf("unexpected status %d %q", result.Status, result.StatusText)
	}
}

func TestDeliverStopsAfterMaxRetries(t *testing.T) {
	srv := statusServer(t, http.StatusBadGateway)
	result, err := NewDispatcher(time.Second).Deliver(context.Background(), DeliveryRequest{
		WebhookURL: srv.URL,
		Payload:    json.RawMessage(`{"id":"s1"}`),
		Retries:    MaxRetries,
	})
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if result.RetryNeeded || !result.Exhausted || result.Success {
		t.Fatalf("expected terminal failure, got %+v", result)
	}
}

func TestDeliverTransportErrorIsRetryable(t *testing.T) {
	srv := statusServer(t, http.StatusOK)
	url := srv.URL
	srv.Close()

	result, err := NewDispatcher(time.Second).Deliver(context.Background(), DeliveryRequest{
		WebhookURL: url,
		Payload:    json.RawMessage(`{}`),
	})
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if !result.RetryNeeded || result.Status != 0 || result.Retries != 1 || result.Delay != time.Second {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestDeliverRequiresURLAndPayload(t *testing.T) {
	d := NewDispatcher(time.Second)
	for _, req := range []DeliveryRequest{
		{Payload: json.RawMessage(`{}`)},
		{WebhookURL: "http://example.com"},
		{WebhookURL: "http://example.com", Payload: json.RawMessage(`null`)},
	} {
		if _, err := d.Deliver(context.Background(), req); !errors.Is(err, ErrInvalidRequest) {
			t.Fatalf("expected ErrInvalidRequest for %+v, got %v", req, err)
		}
	}
}

func TestDeliverSignsBody(t *testing.T) {
	var gotSig string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get(SignatureHeader)
		gotBody, _ = io.ReadAll(r.Body)
	}))
	defer srv.Close()

	_, err := NewDispatcher(time.Second).Deliver(context.Background(), DeliveryRequest{
		WebhookURL: srv.URL,
		Payload:    json.RawMessage(`{"a": 1, "b": "two"}`),
		Secret:     "s3cret",
	})
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if string(gotBody) != `{"a":1,"b":"two"}` {
		t.Fatalf("unexpected body %s", gotBody)
	}
	if gotSig != Sign(gotBody, "s3cret") {
		t.Fatalf("signature %q does not match body", gotSig)
	}
}

func TestSignIsDeterministic(t *testing.T) {
	body := []byte(`{"submission_id":"abc"}`)
	first, second := Sign(body, "key"), Sign(body, "key")
	if first != second {
		t.Fatalf("signatures differ: %s vs %s", first, second)
	}
	if len(first) != len("sha256=")+64 || first[:7] != "sha256=" {
		t.Fatalf("unexpected signature format %q", first)
	}
	if Sign(body, "other") == first {
		t.Fatalf("signature must depend on the secret")
	}
}

func TestBackoff(t *testing.T) {
	for retries, want := range []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second} {
		if got := Backoff(retries); got != want {
			t.Fatalf("Backoff(%d) = %s, want %s", retries, got, want)
		}
	}
}

func TestDeliverTreatsNegativeRetriesAsFirstAttempt(t *testing.T) {
	if got := Backoff(-3); got != time.Second {
		t.Fatalf("Backoff(-3) = %s, want 1s", got)
	}

	srv := statusServer(t, http.StatusServiceUnavailable)
	result, err := NewDispatcher(time.Second).Deliver(context.Background(), DeliveryRequest{
		WebhookURL: srv.URL,
		Payload:    json.RawMessage(`{"id":"s1"}`),
		Retries:    -2,
	})
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if !result.RetryNeeded || result.Retries != 1 || result.Delay != time.Second {
		t.Fatalf("expected first retry after 1s, got %+v", result)
	}
}
