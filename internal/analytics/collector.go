package analytics

import (
	"strings"
	"time"

	"heysheet/internal/models"
)

// now is replaced in tests.
var now = time.Now

// CollectAnalytics builds the analytics snapshot for a submission. It does no
// I/O; geolocation must already be resolved on info. submitted_at is stamped
// at call time.
func CollectAnalytics(info models.ClientInfo) models.AnalyticsRecord {
	record := models.AnalyticsRecord{
		Referrer:    "direct",
		DeviceType:  DetectDeviceType(info.UserAgent),
		Browser:     DetectBrowser(info.UserAgent),
		Language:    firstLanguage(info.AcceptLanguage),
		SubmittedAt: now().UTC().Format(time.RFC3339Nano),
	}
	if info.Referer != "" {
		record.Referrer = info.Referer
	}
	if info.Geo != nil {
		record.Country = optional(info.Geo.Country)
		record.City = optional(info.Geo.City)
		record.Timezone = optional(info.Geo.Timezone)
	}
	return record
}

func firstLanguage(acceptLanguage string) string {
	first := strings.TrimSpace(strings.Split(acceptLanguage, ",")[0])
	if first == "" {
		return "unknown"
	}
	return first
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
