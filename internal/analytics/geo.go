package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"heysheet/internal/models"
)

// GeoLocator resolves an IP address to a coarse location.
type GeoLocator interface {
	Lookup(ctx context.Context, ip string) (*models.Geolocation, error)
}

// IPInfoClient queries an ipinfo-compatible lookup service:
// GET {baseURL}/{ip}/json returning at least country, city and timezone.
type IPInfoClient struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

func NewIPInfoClient(baseURL, token string, timeout time.Duration) *IPInfoClient {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &IPInfoClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
	}
}

// Lookup returns nil without error for addresses that cannot be located
// (empty, loopback, private ranges).
func (c *IPInfoClient) Lookup(ctx context.Context, ip string) (*models.Geolocation, error) {
	parsed := net.ParseIP(ip)
	if parsed == nil || parsed.IsLoopback() || parsed.IsPrivate() || parsed.IsUnspecified() {
		return nil, nil
	}

	endpoint := fmt.Sprintf("%s/%s/json", c.baseURL, url.PathEscape(ip))
	if c.token != "" {
		endpoint += "?token=" + url.QueryEscape(c.token)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geolocation request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return nil, fmt.Errorf("read geolocation response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("geolocation lookup returned %d: %s", resp.StatusCode, string(body))
	}

	var geo models.Geolocation
	if err := json.Unmarshal(body, &geo); err != nil {
		return nil, fmt.Errorf("decode geolocation response: %w", err)
	}
	return &geo, nil
}
