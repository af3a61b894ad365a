package queue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Queue collectors live on the default registry so the API (stats endpoint) and
// the worker (task outcomes) export them under the same names.
var (
	QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "queue_depth",
		Help: "Tasks waiting in the ready set, sampled by the stats endpoint.",
	}, []string{"kind"})
	QueueProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "queue_processed_total",
		Help: "Task executions by outcome: ok, retry or dead.",
	}, []string{"kind", "status"})
	QueueDLQSize = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "queue_dlq_size",
		Help: "Tasks parked in the dead letter store.",
	}, []string{"kind"})
	QueueTaskDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "queue_task_duration_seconds",
		Help:    "Handler run time per attempt.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
	}, []string{"kind"})
)
