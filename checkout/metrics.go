package checkout

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	checkoutAttempts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "checkout_attempts_total",
		Help: "Number of checkout transactions started",
	})

	checkoutOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_outcomes_total",
		Help: "Number of checkout transactions reaching a terminal state, by outcome",
	}, []string{"outcome"})

	verificationRejected = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "payment_verification_rejected_total",
		Help: "Number of gateway success claims the backend refused to verify",
	})
)

func init() {
	prometheus.MustRegister(checkoutAttempts, checkoutOutcomes, verificationRejected)
}
