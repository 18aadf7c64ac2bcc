package create

import (
	"regexp"
	"strings"
)

// linkPatterns run from most to least specific; the first hit wins.
var linkPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)t\.me/[^\s\)\]]+\?start=[^\s\)\]]+`),
	regexp.MustCompile(`(?i)https?://t\.me/[^\s\)\]]+\?start=[^\s\)\]]+`),
	regexp.MustCompile(`(?i)t\.me/[^\s\)\]]+`),
	regexp.MustCompile(`(?i)https?://t\.me/[^\s\)\]]+`),
	regexp.MustCompile(`(?i)https?://[^\s\)\]]+`),
}

var bareCode = regexp.MustCompile(`\bc[A-Za-z0-9_-]{10,}\b`)

// ExtractLink finds a voucher share link in a bot reply. Links without a
// scheme are returned as https. When the reply only carries a bare code the
// link is built against bot.
func ExtractLink(text, bot string) (string, bool) {
	if text == "" {
		return "", false
	}

	for _, re := range linkPatterns {
		m := re.FindString(text)
		if m == "" {
			continue
		}
		link := strings.TrimRight(strings.TrimSpace(m), ".,!?)")
		lower := strings.ToLower(link)
		if !strings.Contains(lower, "start=") && !strings.Contains(lower, "t.me") {
			continue
		}
		if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
			link = "https://" + link
		}
		return link, true
	}

	if code := bareCode.FindString(text); code != "" {
		return "https://t.me/" + bot + "?start=" + code, true
	}
	return "", false
}
