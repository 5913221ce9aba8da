// Package analytics turns request metadata into the analytics snapshot
// stored with each submission.
package analytics

import (
	"regexp"
	"strings"

	"heysheet/internal/models"
)

var (
	tabletPattern = regexp.MustCompile(`tablet|ipad|playbook|silk`)
	mobilePattern = regexp.MustCompile(`mobile|android|ip(hone|od)|iemobile|blackberry|kindle|silk-accelerated|(hpw|web)os|opera m(obi|ini)`)
)

// DetectDeviceType classifies a user-agent as tablet, mobile or desktop.
// The first matching rule wins.
func DetectDeviceType(userAgent string) models.DeviceType {
	ua := strings.ToLower(userAgent)
	if tabletPattern.MatchString(ua) || isAndroidTablet(ua) {
		return models.DeviceTablet
	}
	if mobilePattern.MatchString(ua) {
		return models.DeviceMobile
	}
	return models.DeviceDesktop
}

// isAndroidTablet matches "android" not followed anywhere later by "mobi".
// Checking the last occurrence is enough: if any occurrence has no "mobi"
// after it, neither does the last one.
func isAndroidTablet(ua string) bool {
	idx := strings.LastIndex(ua, "android")
	if idx < 0 {
		return false
	}
	return !strings.Contains(ua[idx:], "mobi")
}

// DetectBrowser names the browser family. Order matters: Chrome, Edge and
// Opera user-agents also carry safari/ and chrome/ tokens.
func DetectBrowser(userAgent string) models.Browser {
	ua := strings.ToLower(userAgent)
	switch {
	case strings.Contains(ua, "firefox/"):
		return models.BrowserFirefox
	case strings.Contains(ua, "edg/"):
		return models.BrowserEdge
	case strings.Contains(ua, "chrome/") && !strings.Contains(ua, "chromium/"):
		return models.BrowserChrome
	case strings.Contains(ua, "safari/") && !strings.Contains(ua, "chrome/") && !strings.Contains(ua, "chromium/"):
		return models.BrowserSafari
	case strings.Contains(ua, "opr/") || strings.Contains(ua, "opera/"):
		return models.BrowserOpera
	case strings.Contains(ua, "chromium/"):
		return models.BrowserChromium
	}
	return models.BrowserUnknown
}
