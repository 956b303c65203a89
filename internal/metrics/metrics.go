// Package metrics exposes prometheus counters for the dispatcher.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

var (
	commands = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "spellbot",
		Name:      "commands_total",
		Help:      "Dispatched commands by name and outcome.",
	}, []string{"command", "outcome"})

	persistenceFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "spellbot",
		Name:      "persistence_failures_total",
		Help:      "Best-effort store writes that failed.",
	}, []string{"op"})
)

func init() {
	prometheus.MustRegister(commands, persistenceFailures)
}

// CommandDispatched counts one dispatched command
func CommandDispatched(command string, success bool) {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	commands.WithLabelValues(command, outcome).Inc()
}

// PersistenceFailed counts one failed store write
func PersistenceFailed(op string) {
	persistenceFailures.WithLabelValues(op).Inc()
}

// Serve exposes /metrics on the given port in a background goroutine
func Serve(port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	go func() {
		addr := fmt.Sprintf(":%d", port)
		log.Info().Str("addr", addr).Msg("📊 Metrics endpoint up")
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Error().Err(err).Msg("Metrics server stopped")
		}
	}()
}
