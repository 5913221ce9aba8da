// Package webhook delivers submission payloads to form owners' endpoints
// and schedules retries with exponential backoff.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// MaxRetries bounds how many times a failed delivery is re-attempted.
	MaxRetries = 5

	SignatureHeader = "x-heysheet-signature"
)

var ErrInvalidRequest = errors.New("webhookUrl and payload are required")

// DeliveryRequest is one delivery attempt. Retries counts earlier failed attempts.
type DeliveryRequest struct {
	WebhookURL string          `json:"webhookUrl"`
	Payload    json.RawMessage `json:"payload"`
	Secret     string          `json:"secret,omitempty"`
	Retries    int             `json:"retries,omitempty"`
}

// DeliveryResult reports the outcome of a single attempt. When RetryNeeded is
// set the caller must re-invoke Deliver after Delay with Retries.
type DeliveryResult struct {
	Success     bool          `json:"success"`
	RetryNeeded bool          `json:"retry_needed"`
	Exhausted   bool          `json:"exhausted"`
	Status      int           `json:"status"`
	StatusText  string        `json:"statusText"`
	Retries     int           `json:"retries"`
	Delay       time.Duration `json:"-"`
}

type Dispatcher struct {
	httpClient *http.Client
}

func NewDispatcher(timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{httpClient: &http.Client{Timeout: timeout}}
}

// Sign returns the signature header value for body: sha256=<hex hmac>.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Backoff is the delay before the attempt following `retries` failures.
// Negative counts are treated as zero.
func Backoff(retries int) time.Duration {
	if retries < 0 {
		retries = 0
	}
	return time.Duration(1<<uint(retries)) * time.Second
}

// Deliver POSTs the payload once. It never sleeps; retry timing belongs to
// the caller (see Retrier).
func (d *Dispatcher) Deliver(ctx context.Context, req DeliveryRequest) (*DeliveryResult, error) {
	if req.WebhookURL == "" || len(req.Payload) == 0 || string(req.Payload) == "null" {
		return nil, ErrInvalidRequest
	}
	if req.Retries < 0 {
		req.Retries = 0
	}

	body, err := compact(req.Payload)
	if err != nil {
		return nil, fmt.Errorf("%w: payload is not valid JSON", ErrInvalidRequest)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", "HeySheet-Webhook/1.0")
	if req.Secret != "" {
		httpReq.Header.Set(SignatureHeader, Sign(body, req.Secret))
	}

	status, statusText := 0, ""
	resp, err := d.httpClient.Do(httpReq)
	if err != nil {
		statusText = err.Error()
	} else {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		resp.Body.Close()
		status = resp.StatusCode
		statusText = http.StatusText(resp.StatusCode)
		if status >= 200 && status < 300 {
			return &DeliveryResult{Success: true, Status: status, StatusText: statusText, Retries: req.Retries}, nil
		}
	}

	if req.Retries < MaxRetries {
		return &DeliveryResult{
			RetryNeeded: true,
			Status:      status,
			StatusText:  statusText,
			Retries:     req.Retries + 1,
			Delay:       Backoff(req.Retries),
		}, nil
	}
	return &DeliveryResult{Exhausted: true, Status: status, StatusText: statusText, Retries: req.Retries}, nil
}

// compact normalises the payload so the signed bytes are exactly the sent bytes.
func compact(payload json.RawMessage) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, payload); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
