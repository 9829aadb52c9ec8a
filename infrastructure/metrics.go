// infrastructure/metrics.go
package infrastructure

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	httpRequests       *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
	messagesDispatched *prometheus.CounterVec
	messagesPublished  *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: []float64{0.1, 0.5, 1, 1.5},
		}, []string{"method", "route"}),
		messagesDispatched: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "video_messages_dispatched_total",
			Help: "Inbound worker messages by type and outcome.",
		}, []string{"type", "result"}),
		messagesPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "video_messages_published_total",
			Help: "Outbound messages by type and outcome.",
		}, []string{"type", "result"}),
	}
}

func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// The observe helpers accept a nil receiver so components can run
// without metrics in tests.

func (m *Metrics) observeDispatch(messageType, result string) {
	if m == nil {
		return
	}
	m.messagesDispatched.WithLabelValues(messageType, result).Inc()
}

func (m *Metrics) observePublish(messageType, result string) {
	if m == nil {
		return
	}
	m.messagesPublished.WithLabelValues(messageType, result).Inc()
}

func MetricsHandler(gatherer prometheus.Gatherer) gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
}
