package fetcher

import (
	"net/http"
	"strings"
)

// BlockType describes the kind of anti-bot block detected.
type BlockType string

const (
	BlockNone    BlockType = ""
	BlockStatus  BlockType = "status"
	BlockCaptcha BlockType = "captcha"
	BlockWall    BlockType = "access_wall"
	BlockJSShell BlockType = "js_shell"
)

// DetectBlock checks a response for signs of bot detection. Cian serves a
// captcha interstitial or an access-restricted page when it throttles.
func DetectBlock(statusCode int, body string) (bool, BlockType) {
	if statusCode == http.StatusForbidden || statusCode == http.StatusTooManyRequests {
		return true, BlockStatus
	}

	lower := strings.ToLower(body)

	if strings.Contains(lower, "captcha") ||
		strings.Contains(lower, "recaptcha") ||
		strings.Contains(lower, "подтвердите, что вы не робот") {
		return true, BlockCaptcha
	}

	if strings.Contains(lower, "доступ ограничен") ||
		strings.Contains(lower, "access denied") {
		return true, BlockWall
	}

	// JS-only shell: tiny body that immediately bounces the browser.
	if len(body) < 2000 {
		if strings.Contains(lower, "<noscript") && strings.Contains(lower, "javascript") {
			return true, BlockJSShell
		}
		if strings.Contains(lower, `meta http-equiv="refresh"`) {
			return true, BlockJSShell
		}
	}

	return false, BlockNone
}
