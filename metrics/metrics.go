// Package metrics provides Prometheus metrics for the blog.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "blog"

var (
	ArticleWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "article_writes_total",
			Help:      "Article store and update operations by outcome",
		},
		[]string{"operation", "status"},
	)

	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Subscriber notifications handed to a dispatcher",
		},
		[]string{"driver", "status"},
	)

	SearchRejectedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_rate_limited_total",
			Help:      "Search requests rejected by the per-IP limiter",
		},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route", "method", "status"},
	)

	RenderCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "render_cache_total",
			Help:      "Markdown render cache lookups",
		},
		[]string{"result"},
	)
)

func RecordArticleWrite(operation string, err error) {
	ArticleWritesTotal.WithLabelValues(operation, status(err)).Inc()
}

func RecordNotification(driver string, err error) {
	NotificationsTotal.WithLabelValues(driver, status(err)).Inc()
}

func RecordRequest(route, method, code string, seconds float64) {
	RequestDuration.WithLabelValues(route, method, code).Observe(seconds)
}

func RecordRenderCache(hit bool) {
	if hit {
		RenderCacheTotal.WithLabelValues("hit").Inc()
		return
	}
	RenderCacheTotal.WithLabelValues("miss").Inc()
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
