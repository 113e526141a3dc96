package telegram

import "github.com/prometheus/client_golang/prometheus"

var (
	updatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "simbot_telegram_updates_total",
			Help: "Total number of Telegram updates received by kind.",
		},
		[]string{"kind"},
	)

	sendFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "simbot_telegram_send_failures_total",
			Help: "Total number of failed Telegram API calls.",
		},
	)
)

func init() {
	prometheus.MustRegister(updatesTotal, sendFailures)
}
