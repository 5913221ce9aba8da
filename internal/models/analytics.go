package models

type DeviceType string

const (
	DeviceMobile  DeviceType = "mobile"
	DeviceDesktop DeviceType = "desktop"
	DeviceTablet  DeviceType = "tablet"
)

type Browser string

const (
	BrowserChrome   Browser = "Chrome"
	BrowserFirefox  Browser = "Firefox"
	BrowserSafari   Browser = "Safari"
	BrowserEdge     Browser = "Edge"
	BrowserOpera    Browser = "Opera"
	BrowserChromium Browser = "Chromium"
	BrowserUnknown  Browser = "Unknown"
)

// Geolocation is the subset of the IP lookup response kept for analytics.
type Geolocation struct {
	Country  string `json:"country,omitempty"`
	City     string `json:"city,omitempty"`
	Timezone string `json:"timezone,omitempty"`
}

// ClientInfo is request-scoped metadata about the submitter. It is folded
// into an AnalyticsRecord and never stored on its own.
type ClientInfo struct {
	IPAddress      string       `json:"ip_address"`
	UserAgent      string       `json:"user_agent"`
	IsMobile       bool         `json:"is_mobile"`
	Referer        string       `json:"referer,omitempty"`
	AcceptLanguage string       `json:"accept_language,omitempty"`
	Geo            *Geolocation `json:"geo,omitempty"`
}

// AnalyticsRecord is the snapshot attached to a submission at acceptance time.
// Geolocation fields stay nil when the lookup produced nothing.
type AnalyticsRecord struct {
	Country     *string    `json:"country"`
	City        *string    `json:"city"`
	Timezone    *string    `json:"timezone"`
	Referrer    string     `json:"referrer"`
	DeviceType  DeviceType `json:"device_type"`
	Browser     Browser    `json:"browser"`
	Language    string     `json:"language"`
	SubmittedAt string     `json:"submitted_at"`
}
