package fetcher

import "strings"

// captchaMarkers are substrings that identify challenge or verification pages.
// Matching is case-insensitive over the whole body.
var captchaMarkers = []string{
	"recaptcha",
	"g-recaptcha",
	"captcha",
	"cloudflare",
	"cf-browser-verification",
	"cf-challenge",
	"human verification",
	"verifica que eres humano",
}

// DetectCaptcha reports whether the body looks like a challenge page.
func DetectCaptcha(body []byte) bool {
	if len(body) == 0 {
		return false
	}
	lower := strings.ToLower(string(body))
	for _, marker := range captchaMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
