package redeem_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/edgard/checkgrabber/internal/checks"
	"github.com/edgard/checkgrabber/internal/redeem"
)

func TestParseReply(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		text     string
		amount   float64
		hasValue bool
		currency string
	}{
		{name: "tagged usd", text: "✅ активирован 1.0 USD", amount: 1.0, hasValue: true, currency: checks.CurrencyUSD},
		{name: "tagged usdt", text: "Вы получили 3.25 USDT", amount: 3.25, hasValue: true, currency: checks.CurrencyUSD},
		{name: "tagged roubles", text: "Получено 150 руб.", amount: 150, hasValue: true, currency: checks.CurrencyRUB},
		{name: "received phrasing", text: "BTC check: received 0.0001", amount: 0.0001, hasValue: true, currency: checks.CurrencyBTC},
		{name: "symbol", text: "Check activated, 5 $ added", amount: 5, hasValue: true, currency: checks.CurrencyUSD},
		{name: "rouble symbol", text: "Зачислено 99.9 ₽", amount: 99.9, hasValue: true, currency: checks.CurrencyRUB},
		{name: "bare number", text: "ETH bonus 0.02 credited", amount: 0.02, hasValue: true, currency: checks.CurrencyETH},
		{name: "nothing to parse", text: "Чек активирован", currency: checks.CurrencyUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			amount, currency := redeem.ParseReply(tt.text)
			assert.Equal(t, tt.currency, currency)
			if !tt.hasValue {
				assert.Nil(t, amount)
				return
			}
			if assert.NotNil(t, amount) {
				assert.InDelta(t, tt.amount, *amount, 1e-9)
			}
		})
	}
}

func TestInferCurrencyPrecedence(t *testing.T) {
	t.Parallel()

	assert.Equal(t, checks.CurrencyUSD, redeem.InferCurrency("usd and rub"))
	assert.Equal(t, checks.CurrencyRUB, redeem.InferCurrency("rub then btc"))
	assert.Equal(t, checks.CurrencyUnknown, redeem.InferCurrency("far away hint only: btc"))
	assert.Equal(t, checks.CurrencyUSD, redeem.InferCurrency("symbol far away $"))
}

func TestClassifierCustomRules(t *testing.T) {
	t.Parallel()

	c := redeem.NewClassifier(redeem.Rule{
		Name:    "expired",
		Match:   redeem.ContainsAny("expired"),
		Outcome: func(string) checks.Outcome { return checks.Failed(checks.ReasonAlreadyActivated) },
	})

	out, ok := c.Classify("This check has EXPIRED")
	assert.True(t, ok)
	assert.Equal(t, checks.ReasonAlreadyActivated, out.Reason)

	_, ok = c.Classify("✅ активирован 1 USD")
	assert.False(t, ok, "custom rule set replaces the defaults")
}
