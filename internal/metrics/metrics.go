// metrics — доменные и HTTP-метрики discussions-service в Prometheus.
//
// Все методы безопасны для nil *Metrics: сервис и мидлвары можно собирать без метрик (в тестах).
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "discussions"

// Metrics — набор коллекторов сервиса.
type Metrics struct {
	commentsCreated      *prometheus.CounterVec
	commentOps           *prometheus.CounterVec
	notificationsCreated prometheus.Counter
	notificationsMarked  *prometheus.CounterVec
	cacheLookups         *prometheus.CounterVec
	httpRequests         *prometheus.CounterVec
	httpDuration         *prometheus.HistogramVec
}

// New создаёт коллекторы и регистрирует их в reg.
// Повторная регистрация в том же реестре паникует (MustRegister).
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		commentsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "comments_created_total",
			Help:      "Created comments by kind (root/reply).",
		}, []string{"kind"}),
		commentOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "comment_operations_total",
			Help:      "Comment mutations by operation and outcome.",
		}, []string{"op", "result"}),
		notificationsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_created_total",
			Help:      "Reply notifications created.",
		}),
		notificationsMarked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_marked_total",
			Help:      "Notification read-state changes by target state.",
		}, []string{"state"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "comments_cache_lookups_total",
			Help:      "Comment list cache lookups by result (hit/miss/error).",
		}, []string{"result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route pattern and status code.",
		}, []string{"method", "route", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		m.commentsCreated,
		m.commentOps,
		m.notificationsCreated,
		m.notificationsMarked,
		m.cacheLookups,
		m.httpRequests,
		m.httpDuration,
	)

	return m
}

// CommentCreated учитывает созданный комментарий.
func (m *Metrics) CommentCreated(reply bool) {
	if m == nil {
		return
	}

	kind := "root"
	if reply {
		kind = "reply"
	}
	m.commentsCreated.WithLabelValues(kind).Inc()
}

// CommentOp учитывает исход мутации (update/delete/restore).
func (m *Metrics) CommentOp(op, result string) {
	if m == nil {
		return
	}
	m.commentOps.WithLabelValues(op, result).Inc()
}

func (m *Metrics) NotificationCreated() {
	if m == nil {
		return
	}
	m.notificationsCreated.Inc()
}

func (m *Metrics) NotificationMarked(read bool) {
	if m == nil {
		return
	}

	state := "unread"
	if read {
		state = "read"
	}
	m.notificationsMarked.WithLabelValues(state).Inc()
}

// CacheLookup: result — "hit", "miss" или "error".
func (m *Metrics) CacheLookup(result string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// HTTPRequest учитывает завершённый HTTP-запрос. route — шаблон chi (/comments/{id}), не сырой путь.
func (m *Metrics) HTTPRequest(method, route string, code int, took time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(took.Seconds())
}
