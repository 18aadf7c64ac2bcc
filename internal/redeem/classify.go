package redeem

import (
	"strings"

	"github.com/edgard/checkgrabber/internal/checks"
)

// Rule maps a bot reply onto an outcome. Match receives the lower-cased reply.
type Rule struct {
	Name    string
	Match   func(lower string) bool
	Outcome func(text string) checks.Outcome
}

// ContainsAny matches replies containing any of the keywords.
func ContainsAny(keywords ...string) func(string) bool {
	return func(lower string) bool {
		for _, k := range keywords {
			if strings.Contains(lower, k) {
				return true
			}
		}
		return false
	}
}

var alreadyUsed = ContainsAny("уже", "already")

// DefaultRules recognises both supported bot dialects, in precedence order.
// "Чек уже активирован" carries a success keyword too, so the success rule
// steps aside when an already-used marker is present.
func DefaultRules() []Rule {
	activated := ContainsAny("активирован", "activated", "получено")
	return []Rule{
		{
			Name: "activated",
			Match: func(lower string) bool {
				return activated(lower) && !alreadyUsed(lower)
			},
			Outcome: func(text string) checks.Outcome {
				amount, currency := ParseReply(text)
				return checks.Succeeded(amount, currency, text)
			},
		},
		{
			Name:    "already_used",
			Match:   alreadyUsed,
			Outcome: func(string) checks.Outcome { return checks.Failed(checks.ReasonAlreadyActivated) },
		},
		{
			Name:    "captcha",
			Match:   ContainsAny("капча", "captcha"),
			Outcome: func(string) checks.Outcome { return checks.Failed(checks.ReasonCaptchaRequired) },
		},
	}
}

// Classifier applies rules in order; the first match wins.
type Classifier struct {
	rules []Rule
}

// NewClassifier builds a classifier; no rules means DefaultRules.
func NewClassifier(rules ...Rule) *Classifier {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Classifier{rules: rules}
}

// Classify returns the outcome for a bot reply, or false if no rule matched.
func (c *Classifier) Classify(text string) (checks.Outcome, bool) {
	lower := strings.ToLower(text)
	for _, r := range c.rules {
		if r.Match(lower) {
			return r.Outcome(text), true
		}
	}
	return checks.Outcome{}, false
}
