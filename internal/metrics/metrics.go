package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	priceChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "price_checks_total",
			Help: "Total de verificações de preço por plataforma e resultado.",
		},
		[]string{"platform", "outcome", "kind"},
	)
	fetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "price_fetch_duration_seconds",
			Help:    "Duração das buscas de preço.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 20},
		},
		[]string{"platform"},
	)
	alertsFiredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "price_alerts_fired_total",
			Help: "Total de alertas disparados.",
		},
		[]string{"platform"},
	)
	notificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "price_notifications_total",
			Help: "Total de notificações enviadas por canal e status.",
		},
		[]string{"channel", "status"},
	)
	cycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "price_cycle_duration_seconds",
			Help:    "Duração dos ciclos completos de verificação.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
		},
	)
	cyclesSkippedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "price_cycles_skipped_total",
			Help: "Ciclos ignorados porque o anterior ainda estava em execução.",
		},
	)
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total de requisições HTTP.",
		},
		[]string{"method", "route", "status"},
	)
)

func init() {
	prometheus.MustRegister(priceChecksTotal)
	prometheus.MustRegister(fetchDuration)
	prometheus.MustRegister(alertsFiredTotal)
	prometheus.MustRegister(notificationsTotal)
	prometheus.MustRegister(cycleDuration)
	prometheus.MustRegister(cyclesSkippedTotal)
	prometheus.MustRegister(httpRequestsTotal)
}

// RecordCheck registra o resultado de uma verificação
func RecordCheck(platform, outcome, kind string, duration time.Duration) {
	if kind == "" {
		kind = "none"
	}
	priceChecksTotal.WithLabelValues(platform, outcome, kind).Inc()
	fetchDuration.WithLabelValues(platform).Observe(duration.Seconds())
}

// RecordAlert registra um alerta disparado
func RecordAlert(platform string) {
	alertsFiredTotal.WithLabelValues(platform).Inc()
}

// RecordNotification registra o envio por um canal
func RecordNotification(channel string, success bool) {
	status := "ok"
	if !success {
		status = "error"
	}
	notificationsTotal.WithLabelValues(channel, status).Inc()
}

// RecordCycle registra a duração de um ciclo
func RecordCycle(duration time.Duration) {
	cycleDuration.Observe(duration.Seconds())
}

// RecordSkippedCycle registra um ciclo ignorado
func RecordSkippedCycle() {
	cyclesSkippedTotal.Inc()
}

// RecordRequest registra uma requisição HTTP
func RecordRequest(method, route string, statusCode int) {
	httpRequestsTotal.WithLabelValues(method, route, classifyStatus(statusCode)).Inc()
}

func classifyStatus(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return "2xx"
	case statusCode >= 300 && statusCode < 400:
		return "3xx"
	case statusCode >= 400 && statusCode < 500:
		return "4xx"
	case statusCode >= 500 && statusCode < 600:
		return "5xx"
	}
	return "unknown"
}

// Handler retorna o handler HTTP que exporta as métricas
func Handler() http.Handler {
	return promhttp.Handler()
}
