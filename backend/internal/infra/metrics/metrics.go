package metrics

import (
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	registerOnce          sync.Once
	rateLimitRejections   *prometheus.CounterVec
	marketOperations      *prometheus.CounterVec
	feedCacheLookups      *prometheus.CounterVec
	versionSnapshots      *prometheus.CounterVec
	promptImportDocuments prometheus.Counter
	httpRequestDuration   *prometheus.HistogramVec
)

const (
	namespaceMetrics = "promptvault"
)

// MustRegister 初始化 Prometheus 指标并注册 Go 运行时采样器，需在应用启动阶段调用一次。
func MustRegister() {
	registerOnce.Do(func() {
		rateLimitRejections = register(
			prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespaceMetrics,
					Subsystem: "ratelimit",
					Name:      "rejections_total",
					Help:      "被限流拒绝的请求数，按接口标识统计。",
				},
				[]string{"identifier"},
			),
		)
		marketOperations = register(
			prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespaceMetrics,
					Subsystem: "market",
					Name:      "operations_total",
					Help:      "市场发布、收藏、克隆等操作次数，按操作与结果分类。",
				},
				[]string{"operation", "result"},
			),
		)
		feedCacheLookups = register(
			prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespaceMetrics,
					Subsystem: "feed",
					Name:      "cache_lookups_total",
					Help:      "订阅源缓存命中情况。",
				},
				[]string{"result"},
			),
		)
		versionSnapshots = register(
			prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespaceMetrics,
					Subsystem: "prompt",
					Name:      "version_snapshots_total",
					Help:      "提示词版本快照与恢复次数。",
				},
				[]string{"kind"},
			),
		)
		promptImportDocuments = register(
			prometheus.NewCounter(
				prometheus.CounterOpts{
					Namespace: namespaceMetrics,
					Subsystem: "prompt",
					Name:      "imported_documents_total",
					Help:      "通过导入接口写入的提示词数量。",
				},
			),
		)

		httpRequestDuration = register(
			prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace: namespaceMetrics,
					Subsystem: "http",
					Name:      "request_duration_seconds",
					Help:      "API 请求耗时，按路由模板、方法与状态码分类。",
					Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
				},
				[]string{"route", "method", "status"},
			),
		)

		registerRuntimeCollectors()
	})
}

// RecordRateLimitRejection 记录一次限流拒绝。
func RecordRateLimitRejection(identifier string) {
	if rateLimitRejections == nil {
		return
	}
	rateLimitRejections.WithLabelValues(normalizeLabel(identifier, "unknown")).Inc()
}

// RecordMarketOperation 记录市场操作的结果分布，例如 publish/created、favorite/removed。
func RecordMarketOperation(operation, result string) {
	if marketOperations == nil {
		return
	}
	marketOperations.WithLabelValues(normalizeLabel(operation, "unknown"), normalizeLabel(result, "unknown")).Inc()
}

// RecordFeedCache 记录订阅源缓存 hit/miss/error。
func RecordFeedCache(result string) {
	if feedCacheLookups == nil {
		return
	}
	feedCacheLookups.WithLabelValues(normalizeLabel(result, "unknown")).Inc()
}

// RecordVersionSnapshot 记录版本创建（kind=create/initial）或恢复（kind=restore）。
func RecordVersionSnapshot(kind string) {
	if versionSnapshots == nil {
		return
	}
	versionSnapshots.WithLabelValues(normalizeLabel(kind, "unknown")).Inc()
}

// AddImportedDocuments 累加导入的提示词数量。
func AddImportedDocuments(n int) {
	if promptImportDocuments == nil || n <= 0 {
		return
	}
	promptImportDocuments.Add(float64(n))
}

// ObserveHTTPRequest 记录一次请求耗时。route 应为路由模板（如 /api/prompts/:id），避免标签基数失控。
func ObserveHTTPRequest(route, method string, status int, elapsed time.Duration) {
	if httpRequestDuration == nil {
		return
	}
	httpRequestDuration.
		WithLabelValues(normalizeLabel(route, "unmatched"), method, strconv.Itoa(status)).
		Observe(elapsed.Seconds())
}

func normalizeLabel(value string, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}

// register 注册采集器；同名采集器已存在时复用旧实例，便于测试中重复构建路由。
func register[C prometheus.Collector](collector C) C {
	err := prometheus.Register(collector)
	if err == nil {
		return collector
	}
	var already prometheus.AlreadyRegisteredError
	if errors.As(err, &already) {
		if existing, ok := already.ExistingCollector.(C); ok {
			return existing
		}
	}
	panic(err)
}

func registerRuntimeCollectors() {
	register(collectors.NewGoCollector())
	register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
}
