package services

import "strings"

type uaRule struct {
	token string
	name  string
}

// Order matters: Edge and Opera also advertise Chrome, Chrome advertises
// Safari, Android advertises Linux.
var (
	browserRules = []uaRule{
		{"edg/", "Edge"},
		{"opr/", "Opera"},
		{"opera", "Opera"},
		{"samsungbrowser", "Samsung Internet"},
		{"firefox/", "Firefox"},
		{"fxios", "Firefox"},
		{"crios", "Chrome"},
		{"chrome/", "Chrome"},
		{"safari/", "Safari"},
		{"msie", "Internet Explorer"},
		{"trident/", "Internet Explorer"},
	}
	osRules = []uaRule{
		{"windows", "Windows"},
		{"iphone", "iOS"},
		{"ipad", "iOS"},
		{"android", "Android"},
		{"cros", "ChromeOS"},
		{"mac os x", "macOS"},
		{"macintosh", "macOS"},
		{"linux", "Linux"},
	}
	botTokens = []string{"bot", "crawler", "spider", "curl/", "wget/", "headless"}
)

// parseUserAgent derives coarse device, browser and OS labels.
func parseUserAgent(ua string) (device, browser, os string) {
	s := strings.ToLower(ua)
	if s == "" {
		return "unknown", "unknown", "unknown"
	}

	browser, os = match(s, browserRules), match(s, osRules)

	switch {
	case containsAny(s, botTokens):
		device = "bot"
	case strings.Contains(s, "ipad") || strings.Contains(s, "tablet") ||
		(strings.Contains(s, "android") && !strings.Contains(s, "mobile")):
		device = "tablet"
	case strings.Contains(s, "mobi") || strings.Contains(s, "iphone"):
		device = "mobile"
	default:
		device = "desktop"
	}
	return device, browser, os
}

func match(s string, rules []uaRule) string {
	for _, r := range rules {
		if strings.Contains(s, r.token) {
			return r.name
		}
	}
	return "other"
}

func containsAny(s string, tokens []string) bool {
	for _, t := range tokens {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
