// Package checks holds the voucher domain types shared by the redemption
// pipeline: bot kinds, extracted codes and the outcome of a redemption attempt.
package checks

import (
	"fmt"
	"strings"
	"time"
)

// Kind identifies the dialect of promotional bot a code belongs to.
type Kind int

const (
	KindUnknown Kind = iota
	KindCryptoBot
	KindXRocket
)

// Kinds lists every supported bot kind in extraction order.
func Kinds() []Kind {
	return []Kind{KindCryptoBot, KindXRocket}
}

func (k Kind) String() string {
	switch k {
	case KindCryptoBot:
		return "cryptobot"
	case KindXRocket:
		return "xrocket"
	default:
		return "unknown"
	}
}

// ParseKind converts the persisted label back into a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cryptobot":
		return KindCryptoBot, nil
	case "xrocket":
		return KindXRocket, nil
	default:
		return KindUnknown, fmt.Errorf("unknown bot kind %q", s)
	}
}

// Code is a redemption code discovered in a chat message.
type Code struct {
	Value string
	Kind  Kind
}

func (c Code) String() string {
	return c.Kind.String() + ":" + c.Value
}

// Currency labels produced by reply parsing.
const (
	CurrencyUSD     = "USD"
	CurrencyRUB     = "RUB"
	CurrencyBTC     = "BTC"
	CurrencyETH     = "ETH"
	CurrencyUnknown = "UNKNOWN"
)

// Reason describes why a redemption attempt did not succeed.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonAlreadyActivated
	ReasonCaptchaRequired
	ReasonRateLimited
	ReasonUnknownResponse
	ReasonError
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonAlreadyActivated:
		return "already_activated"
	case ReasonCaptchaRequired:
		return "captcha_required"
	case ReasonRateLimited:
		return "rate_limited"
	case ReasonUnknownResponse:
		return "unknown_response"
	case ReasonError:
		return "error"
	default:
		return "invalid"
	}
}

// Outcome is the terminal result of one redemption attempt.
// Success carries the parsed amount (nil when nothing parsed) and currency;
// failures carry a Reason and, for rate limiting, the wait the platform asked for.
type Outcome struct {
	Success  bool
	Amount   *float64
	Currency string
	Text     string

	Reason  Reason
	Wait    time.Duration
	Message string
}

// Succeeded builds a successful outcome.
func Succeeded(amount *float64, currency, text string) Outcome {
	return Outcome{Success: true, Amount: amount, Currency: currency, Text: text}
}

// Failed builds a failure outcome with the given reason.
func Failed(reason Reason) Outcome {
	return Outcome{Reason: reason}
}

// RateLimited reports a platform backoff signal of the given duration.
func RateLimited(wait time.Duration) Outcome {
	return Outcome{Reason: ReasonRateLimited, Wait: wait}
}

// Errored reports an unexpected fault during the attempt.
func Errored(err error) Outcome {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return Outcome{Reason: ReasonError, Message: msg}
}

// Label is the short outcome name used for metrics and logs.
func (o Outcome) Label() string {
	if o.Success {
		return "success"
	}
	return o.Reason.String()
}

// AmountOrZero returns the parsed amount, or 0 when the reply had none.
func (o Outcome) AmountOrZero() float64 {
	if o.Amount == nil {
		return 0
	}
	return *o.Amount
}

func (o Outcome) String() string {
	switch {
	case o.Success && o.Amount != nil:
		return fmt.Sprintf("success(%g %s)", *o.Amount, o.Currency)
	case o.Success:
		return "success(? " + o.Currency + ")"
	case o.Reason == ReasonRateLimited:
		return fmt.Sprintf("rate_limited(%s)", o.Wait)
	case o.Reason == ReasonError:
		return "error(" + o.Message + ")"
	default:
		return o.Reason.String()
	}
}
