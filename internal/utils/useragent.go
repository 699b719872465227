package utils

import (
	"strings"

	ua "github.com/mssola/user_agent"
)

// DeviceInfo holds what payment audits record about the client device
type DeviceInfo struct {
	DeviceType string `json:"device_type"` // mobile, tablet, desktop, bot, unknown
	Platform   string `json:"platform"`    // android, ios, windows, mac, linux, unknown
	OS         string `json:"os"`
	IsBot      bool   `json:"is_bot"`
}

var tabletIndicators = []string{"ipad", "tablet", "kindle", "nexus 7", "nexus 9", "nexus 10", "sm-t"}

// platforms is checked in order; "ios" must come before "mac" because iPadOS
// reports itself with a Mac OS X token.
var platforms = []struct{ token, platform string }{
	{"android", "android"},
	{"iphone os", "ios"},
	{"ios", "ios"},
	{"ipad", "ios"},
	{"windows", "windows"},
	{"mac os x", "mac"},
	{"macos", "mac"},
	{"chrome os", "chromeos"},
	{"linux", "linux"},
}

// ParseUserAgent extracts device details from a User-Agent header.
// Native app clients (okhttp, CFNetwork) fall back to platform sniffing.
func ParseUserAgent(userAgent string) DeviceInfo {
	if strings.TrimSpace(userAgent) == "" {
		return DeviceInfo{DeviceType: "unknown", Platform: "unknown", OS: "Unknown"}
	}

	parser := ua.New(userAgent)
	info := DeviceInfo{
		IsBot: parser.Bot(),
		OS:    osName(parser),
	}

	lower := strings.ToLower(userAgent)
	info.Platform = platformOf(strings.ToLower(parser.OSInfo().Name), lower)

	switch {
	case info.IsBot:
		info.DeviceType = "bot"
	case containsAny(lower, tabletIndicators):
		info.DeviceType = "tablet"
	case parser.Mobile() || strings.Contains(lower, "okhttp") || strings.Contains(lower, "cfnetwork"):
		info.DeviceType = "mobile"
	default:
		info.DeviceType = "desktop"
	}

	return info
}

func osName(parser *ua.UserAgent) string {
	osInfo := parser.OSInfo()
	if osInfo.Name == "" {
		return "Unknown"
	}
	if osInfo.Version != "" {
		return osInfo.Name + " " + osInfo.Version
	}
	return osInfo.Name
}

func platformOf(osName, raw string) string {
	for _, p := range platforms {
		if strings.Contains(osName, p.token) {
			return p.platform
		}
	}
	switch {
	case strings.Contains(raw, "okhttp") || strings.Contains(raw, "dalvik"):
		return "android"
	case strings.Contains(raw, "cfnetwork") || strings.Contains(raw, "darwin"):
		return "ios"
	}
	return "unknown"
}

func containsAny(s string, tokens []string) bool {
	for _, t := range tokens {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
