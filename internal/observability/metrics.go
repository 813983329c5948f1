package observability

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/escrow-backend/internal/domain/outbox"
	"github.com/yungbote/escrow-backend/internal/platform/envutil"
	"github.com/yungbote/escrow-backend/internal/platform/logger"
)

type Metrics struct {
	apiRequests *CounterVec
	apiLatency  *HistogramVec
	apiInflight *Gauge
	apiReqTotal *Counter
	apiReqError *Counter
	apiReqGood  *Counter

	aggregateOps       *CounterVec
	aggregateLatency   *HistogramVec
	aggregateConflicts *CounterVec
	aggregateRetries   *CounterVec
	aggregateTotal     *Counter
	aggregateFailed    *Counter

	settlementAmount *CounterVec
	autoCompleted    *Counter

	outboxPublished *CounterVec
	outboxFailed    *CounterVec
	outboxDepth     *GaugeVec

	jobRuns     *CounterVec
	jobLatency  *HistogramVec
	workerTotal *Counter
	workerError *Counter

	pgStats   *GaugeVec
	redisUp   *Gauge
	redisPing *Gauge

	sloCompliance *GaugeVec
	sloBudget     *GaugeVec
	sloBurn       *GaugeVec

	sloLatencyThreshold float64
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Enabled() bool {
	return envutil.Bool("METRICS_ENABLED", false)
}

func scrapeInterval() time.Duration {
	return envutil.Seconds("METRICS_SCRAPE_INTERVAL_SECONDS", 10*time.Second)
}

// Init builds the process-wide metrics registry. It returns nil when
// METRICS_ENABLED is off; every method is safe on a nil receiver.
func Init(log *logger.Logger) *Metrics {
	if !Enabled() {
		return nil
	}
	initOnce.Do(func() {
		instance = newMetrics(parseFloat("SLO_API_LATENCY_THRESHOLD_SECONDS", 0.5))
		if log != nil {
			log.Info("Observability metrics enabled")
		}
	})
	return instance
}

func newMetrics(latencyThreshold float64) *Metrics {
	return &Metrics{
		apiRequests: NewCounterVec("escrow_api_requests_total", "Total API requests by method/route/status.", []string{"method", "route", "status"}),
		apiLatency: NewHistogramVec(
			"escrow_api_request_duration_seconds",
			"API request latency in seconds by method/route/status.",
			[]string{"method", "route", "status"},
			[]float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		),
		apiInflight: NewGauge("escrow_api_inflight_requests", "In-flight API requests."),
		apiReqTotal: NewCounter("escrow_api_requests_total_all", "Total API requests (all)."),
		apiReqError: NewCounter("escrow_api_requests_error_total", "Total API requests with 5xx status."),
		apiReqGood:  NewCounter("escrow_api_requests_good_total", "Total API requests under the latency threshold."),

		aggregateOps:       NewCounterVec("escrow_aggregate_operations_total", "Aggregate write operations by op/status.", []string{"op", "status"}),
		aggregateLatency:   NewHistogramVec("escrow_aggregate_operation_duration_seconds", "Aggregate write latency by op.", []string{"op"}, nil),
		aggregateConflicts: NewCounterVec("escrow_aggregate_conflicts_total", "Optimistic concurrency conflicts by op.", []string{"op"}),
		aggregateRetries:   NewCounterVec("escrow_aggregate_retryable_total", "Retryable aggregate failures by op.", []string{"op"}),
		aggregateTotal:     NewCounter("escrow_aggregate_operations_total_all", "Total aggregate write operations."),
		aggregateFailed:    NewCounter("escrow_aggregate_operations_internal_total", "Aggregate writes that failed with an internal error."),

		settlementAmount: NewCounterVec("escrow_settlement_amount_total", "Money moved by settlement operation and currency.", []string{"operation", "currency"}),
		autoCompleted:    NewCounter("escrow_orders_auto_completed_total", "Orders completed because the decision window lapsed."),

		outboxPublished: NewCounterVec("escrow_outbox_published_total", "Outbox messages published by event type.", []string{"event_type"}),
		outboxFailed:    NewCounterVec("escrow_outbox_publish_failed_total", "Outbox publish failures by event type.", []string{"event_type"}),
		outboxDepth:     NewGaugeVec("escrow_outbox_messages", "Outbox rows by status.", []string{"status"}),

		jobRuns: NewCounterVec("escrow_job_runs_total", "Background job runs by job/status.", []string{"job", "status"}),
		jobLatency: NewHistogramVec(
			"escrow_job_run_duration_seconds",
			"Background job run duration by job.",
			[]string{"job"},
			[]float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
		),
		workerTotal: NewCounter("escrow_worker_runs_total", "Total background job runs."),
		workerError: NewCounter("escrow_worker_runs_error_total", "Background job runs that failed."),

		pgStats:   NewGaugeVec("escrow_postgres_pool", "Postgres connection pool stats.", []string{"stat"}),
		redisUp:   NewGauge("escrow_redis_up", "Redis reachability (1 up, 0 down)."),
		redisPing: NewGauge("escrow_redis_ping_seconds", "Redis ping latency in seconds."),

		sloCompliance: NewGaugeVec("escrow_slo_compliance", "SLI over the SLO window.", []string{"slo", "window"}),
		sloBudget:     NewGaugeVec("escrow_slo_error_budget_remaining", "Remaining error budget ratio.", []string{"slo", "window"}),
		sloBurn:       NewGaugeVec("escrow_slo_burn_rate", "Error budget burn rate.", []string{"slo", "window"}),

		sloLatencyThreshold: latencyThreshold,
	}
}

func (m *Metrics) collectors() []collector {
	return []collector{
		m.apiRequests, m.apiLatency, m.apiInflight, m.apiReqTotal, m.apiReqError, m.apiReqGood,
		m.aggregateOps, m.aggregateLatency, m.aggregateConflicts, m.aggregateRetries, m.aggregateTotal, m.aggregateFailed,
		m.settlementAmount, m.autoCompleted,
		m.outboxPublished, m.outboxFailed, m.outboxDepth,
		m.jobRuns, m.jobLatency, m.workerTotal, m.workerError,
		m.pgStats, m.redisUp, m.redisPing,
		m.sloCompliance, m.sloBudget, m.sloBurn,
	}
}

func (m *Metrics) StartServer(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil {
		return
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           http.HandlerFunc(m.WriteHTTP),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			if log != nil {
				log.Error("metrics server failed", "error", err, "addr", addr)
			}
		}
	}()
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	for _, c := range m.collectors() {
		if err := c.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if route == "" {
		route = "unknown"
	}
	if status == "" {
		status = "0"
	}
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route, status)
	m.apiReqTotal.Inc()
	if strings.HasPrefix(status, "5") {
		m.apiReqError.Inc()
	}
	if m.sloLatencyThreshold > 0 && dur.Seconds() <= m.sloLatencyThreshold {
		m.apiReqGood.Inc()
	}
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

func (m *Metrics) ObserveAggregateOperation(op, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.aggregateOps.Inc(op, status)
	m.aggregateLatency.Observe(dur.Seconds(), op)
	m.aggregateTotal.Inc()
	if status == "internal" {
		m.aggregateFailed.Inc()
	}
}

func (m *Metrics) IncAggregateConflict(op string) {
	if m == nil {
		return
	}
	m.aggregateConflicts.Inc(op)
}

func (m *Metrics) IncAggregateRetry(op string) {
	if m == nil {
		return
	}
	m.aggregateRetries.Inc(op)
}

// AddSettlementAmount records money moved by operation (payout, refund, withdrawal, ...).
func (m *Metrics) AddSettlementAmount(operation, currency string, amount float64) {
	if m == nil || amount <= 0 {
		return
	}
	m.settlementAmount.Add(amount, operation, currency)
}

func (m *Metrics) IncAutoCompleted() {
	if m == nil {
		return
	}
	m.autoCompleted.Inc()
}

func (m *Metrics) ObserveOutboxPublish(eventType string, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.outboxFailed.Inc(eventType)
		return
	}
	m.outboxPublished.Inc(eventType)
}

func (m *Metrics) ObserveJob(job, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.jobRuns.Inc(job, status)
	m.jobLatency.Observe(dur.Seconds(), job)
	m.workerTotal.Inc()
	if status != "succeeded" {
		m.workerError.Inc()
	}
}

func (m *Metrics) StartPostgresCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	go m.every(ctx, func() {
		sqlDB, err := db.DB()
		if err != nil {
			if log != nil {
				log.Warn("metrics: postgres stats unavailable", "error", err)
			}
			return
		}
		stats := sqlDB.Stats()
		m.pgStats.Set(float64(stats.OpenConnections), "open_connections")
		m.pgStats.Set(float64(stats.InUse), "in_use")
		m.pgStats.Set(float64(stats.Idle), "idle")
		m.pgStats.Set(float64(stats.WaitCount), "wait_count")
		m.pgStats.Set(stats.WaitDuration.Seconds(), "wait_duration_seconds")
		m.pgStats.Set(float64(stats.MaxOpenConnections), "max_open_connections")
	})
}

func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, rdb redis.UniversalClient) {
	if m == nil || rdb == nil {
		return
	}
	go m.every(ctx, func() {
		start := time.Now()
		if err := rdb.Ping(ctx).Err(); err != nil {
			m.redisUp.Set(0)
			if log != nil {
				log.Warn("metrics: redis ping failed", "error", err)
			}
			return
		}
		m.redisUp.Set(1)
		m.redisPing.Set(time.Since(start).Seconds())
	})
}

// StartOutboxCollector samples outbox_message row counts by status.
func (m *Metrics) StartOutboxCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	statuses := []string{outbox.StatusPending, outbox.StatusProcessed, outbox.StatusDead}
	go m.every(ctx, func() {
		var rows []struct {
			Status string
			Count  int64
		}
		if err := db.WithContext(ctx).
			Model(&outbox.Message{}).
			Select("status, count(*) as count").
			Group("status").
			Scan(&rows).Error; err != nil {
			if log != nil {
				log.Warn("metrics: outbox depth query failed", "error", err)
			}
			return
		}
		for _, s := range statuses {
			m.outboxDepth.Set(0, s)
		}
		for _, row := range rows {
			m.outboxDepth.Set(float64(row.Count), row.Status)
		}
	})
}

func (m *Metrics) every(ctx context.Context, fn func()) {
	ticker := time.NewTicker(scrapeInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}
