package analytics

import (
	"testing"
	"time"

	"heysheet/internal/models"
)

func TestCollectAnalyticsDefaults(t *testing.T) {
	fixed := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	now = func() time.Time { return fixed }
	defer func() { now = time.Now }()

	record := CollectAnalytics(models.ClientInfo{UserAgent: uaIPhone})

	if record.Referrer != "direct" {
		t.Fatalf("expected direct referrer, got %q", record.Referrer)
	}
	if record.Language != "unknown" {
		t.Fatalf("expected unknown language, got %q", record.Language)
	}
	if record.Country != nil || record.City != nil || record.Timezone != nil {
		t.Fatalf("expected nil geolocation fields, got %+v", record)
	}
	if record.DeviceType != models.DeviceMobile || record.Browser != models.BrowserSafari {
		t.Fatalf("unexpected classification %s/%s", record.DeviceType, record.Browser)
	}
	if record.SubmittedAt != "2026-03-04T05:06:07Z" {
		t.Fatalf("unexpected submitted_at %q", record.SubmittedAt)
	}
}

func TestCollectAnalyticsMapsClientInfo(t *testing.T) {
	record := CollectAnalytics(models.ClientInfo{
		UserAgent:      uaFirefox,
		Referer:        "https://blog.example.com/post",
		AcceptLanguage: "fr-FR,fr;q=0.9,en;q=0.8",
		Geo:            &models.Geolocation{Country: "FR", City: "Paris"},
	})

	if record.Referrer != "https://blog.example.com/post" {
		t.Fatalf("unexpected referrer %q", record.Referrer)
	}
	if record.Language != "fr-FR" {
		t.Fatalf("unexpected language %q", record.Language)
	}
	if record.Country == nil || *record.Country != "FR" || record.City == nil || *record.City != "Paris" {
		t.Fatalf("geolocation not mapped: %+v", record)
	}
	if record.Timezone != nil {
		t.Fatalf("absent timezone should stay nil, got %q", *record.Timezone)
	}
	if _, err := time.Parse(time.RFC3339Nano, record.SubmittedAt); err != nil {
		t.Fatalf("submitted_at not RFC3339: %v", err)
	}
}
