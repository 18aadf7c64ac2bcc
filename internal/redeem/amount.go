package redeem

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/edgard/checkgrabber/internal/checks"
)

// currencyHintSpan is how much of the reply is searched for ISO-style currency hints.
const currencyHintSpan = 10

var (
	taggedAmount   = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(usdt|usd|руб|rub)`)
	receivedAmount = regexp.MustCompile(`(?i)(?:получено|received|получили|got)\s*(\d+(?:\.\d+)?)`)
	symbolAmount   = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(\$|₽)`)
	bareNumber     = regexp.MustCompile(`\d+\.?\d*`)
)

// ParseReply extracts the amount and currency from a success reply.
// A currency tag attached to the amount wins over the generic inference.
func ParseReply(text string) (*float64, string) {
	if m := taggedAmount.FindStringSubmatch(text); m != nil {
		if v, ok := parseFloat(m[1]); ok {
			return &v, tagCurrency(m[2])
		}
	}
	if m := receivedAmount.FindStringSubmatch(text); m != nil {
		if v, ok := parseFloat(m[1]); ok {
			return &v, InferCurrency(text)
		}
	}
	if m := symbolAmount.FindStringSubmatch(text); m != nil {
		if v, ok := parseFloat(m[1]); ok {
			return &v, tagCurrency(m[2])
		}
	}
	if m := bareNumber.FindString(text); m != "" {
		if v, ok := parseFloat(m); ok {
			return &v, InferCurrency(text)
		}
	}
	return nil, InferCurrency(text)
}

// InferCurrency guesses the currency: symbols anywhere in the text, ISO-style
// hints only near the start, in USD, RUB, BTC, ETH order.
func InferCurrency(text string) string {
	head := strings.ToLower(firstRunes(text, currencyHintSpan))
	switch {
	case strings.Contains(text, "$") || strings.Contains(head, "usd"):
		return checks.CurrencyUSD
	case strings.Contains(text, "₽") || strings.Contains(head, "руб") || strings.Contains(head, "rub"):
		return checks.CurrencyRUB
	case strings.Contains(head, "btc"):
		return checks.CurrencyBTC
	case strings.Contains(head, "eth"):
		return checks.CurrencyETH
	default:
		return checks.CurrencyUnknown
	}
}

func tagCurrency(tag string) string {
	switch strings.ToLower(tag) {
	case "usd", "usdt", "$":
		return checks.CurrencyUSD
	case "руб", "rub", "₽":
		return checks.CurrencyRUB
	default:
		return checks.CurrencyUnknown
	}
}

func parseFloat(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSuffix(s, "."), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func firstRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
