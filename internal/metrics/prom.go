package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every runner collector plus the Go runtime collectors.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

func init() {
	Registry.MustRegister(collectors.NewGoCollector())
}

var promTxOutcomes = factory.NewCounterVec(
	prometheus.CounterOpts{Name: "pirate_runner_tx_outcomes_total", Help: "Terminal transaction outcomes per action"},
	[]string{"action", "outcome"},
)

var promTxAttempts = factory.NewCounterVec(
	prometheus.CounterOpts{Name: "pirate_runner_tx_attempts_total", Help: "Submission attempts per action, retries included"},
	[]string{"action"},
)

var promUSDSpent = factory.NewCounterVec(
	prometheus.CounterOpts{Name: "pirate_runner_tx_usd_spent_total", Help: "USD spent on gas, computed from receipts"},
	[]string{"action"},
)

var promEthUSD = factory.NewGauge(
	prometheus.GaugeOpts{Name: "pirate_runner_eth_usd_price", Help: "ETH/USD price used by the cost guard"},
)

var promAccounts = factory.NewCounterVec(
	prometheus.CounterOpts{Name: "pirate_runner_accounts_total", Help: "Processed accounts by result"},
	[]string{"result"},
)

func ObserveOutcome(action, outcome string) {
	promTxOutcomes.WithLabelValues(action, outcome).Inc()
}

func ObserveAttempts(action string, n uint) {
	promTxAttempts.WithLabelValues(action).Add(float64(n))
}

func ObserveSpend(action string, usd float64) {
	if usd <= 0 {
		return
	}
	promUSDSpent.WithLabelValues(action).Add(usd)
}

func SetEthUSD(price float64) {
	promEthUSD.Set(price)
}

// ObserveAccount counts a finished account; result is "ok" or "failed".
func ObserveAccount(result string) {
	promAccounts.WithLabelValues(result).Inc()
}

// Handler serves Registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
