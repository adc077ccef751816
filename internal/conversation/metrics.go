package conversation

import "github.com/prometheus/client_golang/prometheus"

var activeConversations = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "askdb_active_conversations",
		Help: "Number of conversations currently held in memory.",
	},
)

func init() {
	prometheus.MustRegister(activeConversations)
}

func setActive(n int) {
	activeConversations.Set(float64(n))
}
