// Package metrics exposes prometheus collectors for the redemption pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedemptionDuration tracks how long a redemption attempt takes, by kind and outcome.
	RedemptionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "checkgrabber_redemption_duration_seconds",
			Help: "Duration of redemption attempts in seconds",
			Buckets: []float64{
				0.05, // 50ms
				0.1,  // 100ms
				0.25, // 250ms
				0.5,  // 500ms
				1.0,  // 1s
				2.5,  // 2.5s
				5.0,  // 5s
				10.0, // 10s
				30.0, // 30s
				60.0, // rate governor wait
			},
		},
		[]string{"kind", "outcome"},
	)

	// RedemptionsInFlight is the number of attempts holding a global concurrency slot.
	RedemptionsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "checkgrabber_redemptions_in_flight",
		Help: "Redemption attempts currently holding a concurrency slot",
	})

	// MessagesSeen counts inbound message events by how the coordinator handled them.
	MessagesSeen = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkgrabber_messages_total",
			Help: "Inbound message events by handling result",
		},
		[]string{"result"}, // duplicate, ignored, no_codes, codes
	)

	// ChecksCreated counts voucher creation attempts after a redemption.
	ChecksCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkgrabber_checks_created_total",
			Help: "Voucher creation attempts by kind and result",
		},
		[]string{"kind", "result"},
	)

	// LedgerWrites counts ledger inserts, split into new rows and ignored duplicates.
	LedgerWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkgrabber_ledger_writes_total",
			Help: "Ledger redemption inserts by result",
		},
		[]string{"result"}, // inserted, duplicate, error
	)
)

// RecordRedemption records the duration and outcome of one attempt.
func RecordRedemption(kind, outcome string, duration time.Duration) {
	RedemptionDuration.WithLabelValues(kind, outcome).Observe(duration.Seconds())
}

// SetInFlight updates the in-flight gauge.
func SetInFlight(n int64) {
	RedemptionsInFlight.Set(float64(n))
}

// RecordMessage counts one inbound message event.
func RecordMessage(result string) {
	MessagesSeen.WithLabelValues(result).Inc()
}

// RecordCheckCreated counts one voucher creation attempt.
func RecordCheckCreated(kind string, ok bool) {
	result := "failed"
	if ok {
		result = "created"
	}
	ChecksCreated.WithLabelValues(kind, result).Inc()
}

// RecordLedgerWrite counts one ledger insert.
func RecordLedgerWrite(result string) {
	LedgerWrites.WithLabelValues(result).Inc()
}
