package reminder

import "github.com/prometheus/client_golang/prometheus"

var (
	// scansTotal counts scan cycles by outcome: sent, idle, failed.
	scansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "simbot_reminder_scans_total",
			Help: "Total number of reminder scan cycles by result.",
		},
		[]string{"result"},
	)

	dueGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "simbot_reminder_due_sims",
			Help: "Number of SIM cards due for charging at the last scan.",
		},
	)

	criticalGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "simbot_reminder_critical_sims",
			Help: "Number of SIM cards in the critical window at the last scan.",
		},
	)
)

func init() {
	prometheus.MustRegister(scansTotal, dueGauge, criticalGauge)
}
