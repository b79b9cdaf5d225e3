package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metricas del scheduler, expuestas en GET /metrics.
var (
	metricEventsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "minifusion_scheduler_events_total",
		Help: "Eventos procesados por los loops del scheduler, por tipo.",
	}, []string{"type"})

	metricOfferRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "minifusion_scheduler_offer_retries_total",
		Help: "Rounds de oferta reintentados por falta de executors con capacidad.",
	})

	metricTasksLaunched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "minifusion_scheduler_tasks_launched_total",
		Help: "Tareas despachadas con exito a executors.",
	})

	metricLaunchFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "minifusion_scheduler_launch_failures_total",
		Help: "Llamadas LaunchTask que fallaron y forzaron rollback.",
	})
)
