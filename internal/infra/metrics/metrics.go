package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	InsightsBuildSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "insights_build_seconds",
		Help:    "Время построения снимка аналитики",
		Buckets: prometheus.DefBuckets,
	})
	InsightsRequestsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "insights_requests_total",
		Help: "Общее количество запросов аналитики",
	})
	ActivityEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "activity_events_total",
		Help: "Опубликованные события активности по типам",
	}, []string{"event"})
	AuthFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_failures_total",
		Help: "Отклонённые запросы без валидной сессии",
	})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: prometheus.DefBuckets,
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "target", "status"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		InsightsBuildSeconds,
		InsightsRequestsTotal,
		ActivityEventsTotal,
		AuthFailuresTotal,
		NetworkRequestDuration,
		NetworkRequestTotal,
	)
}

// StartServer запускает HTTP сервер с эндпоинтом /metrics.
func StartServer(ctx context.Context, logger zerolog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: graceful shutdown failed")
		}
	}()

	go func() {
		logger.Info().Str("addr", addr).Msg("metrics: server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: server stopped")
		}
	}()
}

// ObserveNetworkRequest записывает длительность и статус сетевого запроса.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	if target == "" {
		target = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	duration := time.Since(start).Seconds()
	NetworkRequestDuration.WithLabelValues(component, operation, target, status).Observe(duration)
	NetworkRequestTotal.WithLabelValues(component, operation, target, status).Inc()
}

// ObserveInsightsBuild записывает длительность построения снимка.
func ObserveInsightsBuild(start time.Time) {
	InsightsBuildSeconds.Observe(time.Since(start).Seconds())
	InsightsRequestsTotal.Inc()
}

// IncActivityEvent увеличивает счётчик опубликованных событий активности.
func IncActivityEvent(event string) {
	if event == "" {
		event = "unknown"
	}
	ActivityEventsTotal.WithLabelValues(event).Inc()
}

// IncAuthFailure увеличивает счётчик неудачных аутентификаций.
func IncAuthFailure() {
	AuthFailuresTotal.Inc()
}
