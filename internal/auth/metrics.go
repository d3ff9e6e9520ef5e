// metrics.go — Prometheus-метрики авторизационных решений.
package auth

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// authDecisionsTotal — количество решений о доступе по вердиктам и причинам.
	authDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tp_auth_decisions_total",
			Help: "Количество решений авторизационного сервиса TELEPAL",
		},
		[]string{"verdict", "reason"},
	)
)

// observeDecision фиксирует вердикт в метриках.
func observeDecision(v Verdict) {
	verdict := "deny"
	if v.Allow {
		verdict = "allow"
	}
	authDecisionsTotal.WithLabelValues(verdict, string(v.Reason)).Inc()
}
