package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/yungbote/escrow-backend/internal/platform/envutil"
	"github.com/yungbote/escrow-backend/internal/platform/logger"
)

type rollingSum struct {
	values []float64
	idx    int
	total  float64
}

func newRollingSum(size int) *rollingSum {
	if size < 1 {
		size = 1
	}
	return &rollingSum{values: make([]float64, size)}
}

func (r *rollingSum) add(v float64) {
	r.total += v - r.values[r.idx]
	r.values[r.idx] = v
	r.idx++
	if r.idx >= len(r.values) {
		r.idx = 0
	}
}

// indicator tracks one SLI as windowed deltas of two monotonic counters.
type indicator struct {
	name   string
	target float64
	total  func() float64
	bad    func() float64

	prevTotal float64
	prevBad   float64
	sumTotal  *rollingSum
	sumBad    *rollingSum
}

func (i *indicator) sample() (total, bad float64) {
	t, b := i.total(), i.bad()
	i.sumTotal.add(delta(t, i.prevTotal))
	i.sumBad.add(delta(b, i.prevBad))
	i.prevTotal, i.prevBad = t, b
	return i.sumTotal.total, i.sumBad.total
}

type SLOEvaluator struct {
	metrics *Metrics
	log     *logger.Logger

	interval    time.Duration
	window      time.Duration
	windowLabel string

	indicators []*indicator

	alertWebhook     string
	alertOwner       string
	alertRunbook     string
	alertMinInterval time.Duration
	alertBurnWarn    float64
	alertBurnCrit    float64
	httpClient       *http.Client

	alertMu    sync.Mutex
	lastAlerts map[string]time.Time
}

func (m *Metrics) StartSLOEvaluator(ctx context.Context, log *logger.Logger) {
	if m == nil || !envutil.Bool("SLO_ENABLED", false) {
		return
	}
	eval := newSLOEvaluator(m, log)
	go eval.run(ctx)
	if log != nil {
		log.Info("SLO evaluator started", "window", eval.windowLabel, "interval", eval.interval.String())
	}
}

func newSLOEvaluator(m *Metrics, log *logger.Logger) *SLOEvaluator {
	interval := envutil.Seconds("SLO_EVAL_INTERVAL_SECONDS", 60*time.Second)
	windowHours := parseFloat("SLO_WINDOW_HOURS", 720)
	if windowHours < 1 {
		windowHours = 24
	}
	window := time.Duration(windowHours * float64(time.Hour))
	size := int(window / interval)

	ind := func(name, targetKey string, def float64, total, bad func() float64) *indicator {
		return &indicator{
			name:     name,
			target:   clamp01(parseFloat(targetKey, def)),
			total:    total,
			bad:      bad,
			sumTotal: newRollingSum(size),
			sumBad:   newRollingSum(size),
		}
	}

	return &SLOEvaluator{
		metrics:     m,
		log:         log,
		interval:    interval,
		window:      window,
		windowLabel: formatWindowLabel(window),
		indicators: []*indicator{
			ind("api_availability", "SLO_API_AVAIL_TARGET", 0.995, m.apiReqTotal.Value, m.apiReqError.Value),
			ind("api_latency", "SLO_API_LATENCY_TARGET", 0.95, m.apiReqTotal.Value, func() float64 {
				return m.apiReqTotal.Value() - m.apiReqGood.Value()
			}),
			ind("settlement_success", "SLO_SETTLEMENT_SUCCESS_TARGET", 0.999, m.aggregateTotal.Value, m.aggregateFailed.Value),
			ind("worker_success", "SLO_WORKER_SUCCESS_TARGET", 0.98, m.workerTotal.Value, m.workerError.Value),
		},
		alertWebhook:     strings.TrimSpace(getEnv("SLO_ALERT_WEBHOOK_URL")),
		alertOwner:       strings.TrimSpace(getEnv("SLO_ALERT_OWNER")),
		alertRunbook:     strings.TrimSpace(getEnv("SLO_ALERT_RUNBOOK_URL")),
		alertMinInterval: envutil.Seconds("SLO_ALERT_MIN_INTERVAL_SECONDS", 15*time.Minute),
		alertBurnWarn:    parseFloat("SLO_ALERT_BURN_RATE_WARN", 2),
		alertBurnCrit:    parseFloat("SLO_ALERT_BURN_RATE_CRIT", 10),
		httpClient:       &http.Client{Timeout: 5 * time.Second},
		lastAlerts:       map[string]time.Time{},
	}
}

func (e *SLOEvaluator) run(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.evaluate()
		}
	}
}

func (e *SLOEvaluator) evaluate() {
	if e.metrics == nil {
		return
	}
	for _, ind := range e.indicators {
		total, bad := ind.sample()
		e.evalSLO(ind.name, total, bad, ind.target)
	}
}

func (e *SLOEvaluator) evalSLO(name string, total float64, bad float64, target float64) {
	if total <= 0 {
		e.metrics.sloCompliance.Set(1, name, e.windowLabel)
		e.metrics.sloBudget.Set(1, name, e.windowLabel)
		e.metrics.sloBurn.Set(0, name, e.windowLabel)
		return
	}
	sli := clamp01(1 - bad/total)
	burn := 0.0
	if target < 1 {
		burn = (1 - sli) / (1 - target)
	}
	budget := clamp01(1 - burn)
	e.metrics.sloCompliance.Set(sli, name, e.windowLabel)
	e.metrics.sloBudget.Set(budget, name, e.windowLabel)
	e.metrics.sloBurn.Set(burn, name, e.windowLabel)

	if e.alertWebhook == "" || e.alertOwner == "" {
		return
	}
	severity := ""
	if burn >= e.alertBurnCrit {
		severity = "critical"
	} else if burn >= e.alertBurnWarn {
		severity = "warning"
	}
	if severity == "" {
		return
	}
	key := name + ":" + severity
	e.alertMu.Lock()
	last := e.lastAlerts[key]
	if !last.IsZero() && time.Since(last) < e.alertMinInterval {
		e.alertMu.Unlock()
		return
	}
	e.lastAlerts[key] = time.Now()
	e.alertMu.Unlock()
	e.sendAlert(name, severity, sli, target, burn, budget)
}

func (e *SLOEvaluator) sendAlert(name, severity string, sli, target, burn, budget float64) {
	body, _ := json.Marshal(map[string]any{
		"title":                  "Escrow SLO burn rate alert",
		"severity":               severity,
		"owner":                  e.alertOwner,
		"slo":                    name,
		"window":                 e.windowLabel,
		"sli":                    sli,
		"target":                 target,
		"burn_rate":              burn,
		"error_budget_remaining": budget,
		"runbook":                e.alertRunbook,
		"timestamp":              time.Now().UTC().Format(time.RFC3339),
	})
	req, err := http.NewRequest(http.MethodPost, e.alertWebhook, bytes.NewReader(body))
	if err != nil {
		if e.log != nil {
			e.log.Warn("slo alert request build failed", "error", err, "slo", name)
		}
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := e.httpClient.Do(req)
	if err != nil {
		if e.log != nil {
			e.log.Warn("slo alert post failed", "error", err, "slo", name)
		}
		return
	}
	_ = resp.Body.Close()
	if e.log != nil {
		e.log.Info("slo alert sent", "slo", name, "severity", severity, "status", resp.StatusCode)
	}
}

func delta(current, prev float64) float64 {
	if current < prev {
		return current
	}
	return current - prev
}

func parseFloat(key string, def float64) float64 {
	raw := strings.TrimSpace(getEnv(key))
	if raw == "" {
		return def
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return def
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func formatWindowLabel(window time.Duration) string {
	hours := window.Hours()
	if hours >= 24 && int(hours)%24 == 0 && hours == float64(int(hours)) {
		return strconv.Itoa(int(hours/24)) + "d"
	}
	if hours >= 1 {
		return strconv.Itoa(int(hours)) + "h"
	}
	return strconv.Itoa(int(window.Minutes())) + "m"
}
