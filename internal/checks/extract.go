package checks

import (
	"regexp"
	"strings"
	"unicode"
)

const (
	startParam   = "start="
	startCommand = "/start"

	minCodeLength = 8
	cryptoPrefix  = "c"
)

// Button is an inline keyboard button attached to a message.
type Button struct {
	Text string
	URL  string
}

// Content is the part of a chat message the extractor looks at.
type Content struct {
	Text    string
	Caption string
	Buttons [][]Button
}

type kindPatterns struct {
	kind     Kind
	patterns []*regexp.Regexp
	// direct matches a bare code without any start marker.
	direct *regexp.Regexp
	valid  func(code string) bool
}

var extractors = []kindPatterns{
	{
		kind: KindCryptoBot,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)https?://t\.me/(?:Cryptobot|CryptoBot|CryptoCheckBot|Cryptodropbot|CRYPTOBOT)\?start=c[A-Za-z0-9_-]+`),
			regexp.MustCompile(`(?i)t\.me/(?:Cryptobot|CryptoBot|CryptoCheckBot|Cryptodropbot|CRYPTOBOT)\?start=c[A-Za-z0-9_-]+`),
			regexp.MustCompile(`(?i)@(?:Cryptobot|CryptoBot|CryptoCheckBot|Cryptodropbot|CRYPTOBOT)\?start=c[A-Za-z0-9_-]+`),
			regexp.MustCompile(`(?i)/start\s+c[A-Za-z0-9_-]+`),
		},
		direct: regexp.MustCompile(`\bc[A-Za-z0-9_-]{10,}\b`),
		valid: func(code string) bool {
			return strings.HasPrefix(code, cryptoPrefix) && validCode(code)
		},
	},
	{
		kind: KindXRocket,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)https?://t\.me/(?:xrocket_bot|xrocketbot|XRocket|XRocketBot)\?start=[A-Za-z0-9_-]+`),
			regexp.MustCompile(`(?i)t\.me/(?:xrocket_bot|xrocketbot|XRocket|XRocketBot)\?start=[A-Za-z0-9_-]+`),
			regexp.MustCompile(`(?i)@(?:xrocket_bot|xrocketbot|XRocket|XRocketBot)\?start=[A-Za-z0-9_-]+`),
			regexp.MustCompile(`(?i)/start\s+[A-Za-z0-9_-]{10,}`),
		},
		valid: validCode,
	},
}

// HasStartMarker reports whether s contains a start parameter or start command.
func HasStartMarker(s string) bool {
	return strings.Contains(s, startParam) || strings.Contains(strings.ToLower(s), startCommand)
}

// SelectText picks the single piece of message content the extractor scans:
// the first inline button URL, a button label carrying a start marker,
// the message text, then the caption.
func SelectText(c Content) string {
	for _, row := range c.Buttons {
		for _, b := range row {
			if b.URL != "" {
				return b.URL
			}
			if b.Text != "" && HasStartMarker(b.Text) {
				return b.Text
			}
		}
	}
	if c.Text != "" {
		return c.Text
	}
	return c.Caption
}

// Extract returns the codes found in the message content, deduplicated by
// (code, kind) in first-seen order.
func Extract(c Content) []Code {
	return ExtractText(SelectText(c))
}

// ExtractText runs the per-kind pattern sets over text.
func ExtractText(text string) []Code {
	if text == "" || !HasStartMarker(text) {
		return nil
	}

	clean := strings.NewReplacer(`\`, "", "\n", " ", "\r", " ").Replace(text)

	var (
		out  []Code
		seen = make(map[Code]struct{})
	)
	add := func(code Code) {
		if _, ok := seen[code]; ok {
			return
		}
		seen[code] = struct{}{}
		out = append(out, code)
	}

	for _, ex := range extractors {
		for _, re := range ex.patterns {
			for _, match := range re.FindAllString(clean, -1) {
				code := codeFromMatch(match)
				if code != "" && ex.valid(code) {
					add(Code{Value: code, Kind: ex.kind})
				}
			}
		}
		if ex.direct == nil {
			continue
		}
		for _, match := range ex.direct.FindAllString(clean, -1) {
			if ex.valid(match) {
				add(Code{Value: match, Kind: ex.kind})
			}
		}
	}
	return out
}

// codeFromMatch pulls the code out of a matched link or /start command.
func codeFromMatch(match string) string {
	if _, after, ok := strings.Cut(match, startParam); ok {
		return cutCode(after)
	}
	if idx := strings.Index(strings.ToLower(match), startCommand); idx >= 0 {
		return cutCode(strings.TrimSpace(match[idx+len(startCommand):]))
	}
	return ""
}

func cutCode(s string) string {
	end := strings.IndexFunc(s, func(r rune) bool {
		return r == '&' || unicode.IsSpace(r)
	})
	if end >= 0 {
		s = s[:end]
	}
	return strings.TrimSpace(s)
}

func validCode(code string) bool {
	if len(code) < minCodeLength {
		return false
	}
	for _, r := range code {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
		default:
			return false
		}
	}
	return true
}
