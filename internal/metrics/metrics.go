// Package metrics exposes prometheus counters for the sync engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Polls counts thread refreshes by result ("ok" or "error").
	Polls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_polls_total",
		Help: "Thread poll attempts by result.",
	}, []string{"result"})

	// Mutations counts send/edit/delete calls by operation and result.
	Mutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_mutations_total",
		Help: "Message mutations by operation and result.",
	}, []string{"op", "result"})
)
