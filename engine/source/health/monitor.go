package health

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/betomanzoli/pharma-conecta-brasil-sub001/engine/core"
	"github.com/betomanzoli/pharma-conecta-brasil-sub001/pkg/config"
	"github.com/betomanzoli/pharma-conecta-brasil-sub001/pkg/logger"
)

// Status is the health classification of a source.
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusWarning  Status = "warning"
	StatusCritical Status = "critical"
	StatusOffline  Status = "offline"
)

// ProbeResult is one liveness sample for a source. Uptime and ErrorRate are
// percentages, ResponseTime is in milliseconds.
type ProbeResult struct {
	Uptime       float64
	ErrorRate    float64
	ResponseTime float64
}

// ProbeFunc samples a source. It may be slow or fail; each invocation runs
// under the monitor's hard probe timeout.
type ProbeFunc func(ctx context.Context, sourceID string) (ProbeResult, error)

// Metric is the externally visible health record for one source.
type Metric struct {
	SourceID        string    `json:"source_id"`
	Status          Status    `json:"status"`
	Uptime          float64   `json:"uptime"`
	ErrorRate       float64   `json:"error_rate"`
	ResponseTime    float64   `json:"response_time"`
	AvgResponseTime float64   `json:"avg_response_time"`
	Issues          []string  `json:"issues,omitempty"`
	LastChecked     time.Time `json:"last_checked"`
}

type sourceState struct {
	metric       Metric
	responseSum  float64
	responseSeen int64
	aboveCeiling bool
}

// Monitor periodically samples every registered source and raises alerts on
// degradation. The check loop runs on its own goroutine and never blocks
// caller-initiated cache or ranking operations.
type Monitor struct {
	cfg   config.MonitorConfig
	probe ProbeFunc
	hub   *AlertHub

	mu     sync.RWMutex
	states map[string]*sourceState

	alertMu sync.RWMutex
	alerts  []*Alert

	loopMu  sync.Mutex
	stopCh  chan struct{}
	loopWG  sync.WaitGroup
	running bool
}

// NewMonitor builds a monitor over the given probe. A nil config uses the
// application defaults.
func NewMonitor(cfg *config.MonitorConfig, probe ProbeFunc) *Monitor {
	if cfg == nil {
		cfg = &config.Default().Monitor
	}
	return &Monitor{
		cfg:    *cfg,
		probe:  probe,
		hub:    NewAlertHub(cfg.AlertBufferSize),
		states: make(map[string]*sourceState),
	}
}

// Register adds a source to the monitoring set. Unknown sources start as
// healthy until a probe says otherwise.
func (m *Monitor) Register(sourceID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.states[sourceID]; !ok {
		m.states[sourceID] = &sourceState{
			metric: Metric{SourceID: sourceID, Status: StatusHealthy},
		}
	}
}

// Start launches the periodic check loop. Exactly one loop is active per
// monitor: starting while running first stops the existing loop, so restart
// is idempotent.
func (m *Monitor) Start(ctx context.Context, interval time.Duration) {
	m.loopMu.Lock()
	defer m.loopMu.Unlock()
	if m.running {
		close(m.stopCh)
		m.loopWG.Wait()
	}
	if interval <= 0 {
		interval = m.cfg.CheckInterval
	}
	m.stopCh = make(chan struct{})
	m.running = true
	m.loopWG.Add(1)
	go m.checkLoop(ctx, interval, m.stopCh)
	logger.FromContext(ctx).Info("health monitor started", "interval", interval)
}

// Stop halts the check loop. Safe to call when not running.
func (m *Monitor) Stop() {
	m.loopMu.Lock()
	defer m.loopMu.Unlock()
	if !m.running {
		return
	}
	close(m.stopCh)
	m.loopWG.Wait()
	m.running = false
}

func (m *Monitor) checkLoop(ctx context.Context, interval time.Duration, stopCh chan struct{}) {
	defer m.loopWG.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			m.CheckNow(ctx)
		}
	}
}

// CheckNow runs one synchronous sweep over all registered sources.
func (m *Monitor) CheckNow(ctx context.Context) {
	m.mu.RLock()
	ids := make([]string, 0, len(m.states))
	for id := range m.states {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	sort.Strings(ids)
	for _, id := range ids {
		m.checkSource(ctx, id)
	}
}

func (m *Monitor) checkSource(ctx context.Context, sourceID string) {
	result, err := m.runProbe(ctx, sourceID)
	now := time.Now()

	m.mu.Lock()
	state, ok := m.states[sourceID]
	if !ok {
		m.mu.Unlock()
		return
	}
	previous := state.metric.Status

	var next Status
	var issues []string
	if err != nil {
		next = StatusOffline
		issues = append(issues, fmt.Sprintf("probe failed: %v", err))
	} else {
		next = classify(result.Uptime, result.ErrorRate)
		issues = deriveIssues(result, m.cfg.SlowResponseMs)
		state.metric.Uptime = result.Uptime
		state.metric.ErrorRate = result.ErrorRate
		state.metric.ResponseTime = result.ResponseTime
		state.responseSum += result.ResponseTime
		state.responseSeen++
		state.metric.AvgResponseTime = state.responseSum / float64(state.responseSeen)
	}
	state.metric.Status = next
	state.metric.Issues = issues
	state.metric.LastChecked = now
	avg := state.metric.AvgResponseTime
	wasAbove := state.aboveCeiling
	nowAbove := avg > m.cfg.ResponseCeilingMs
	state.aboveCeiling = nowAbove
	m.mu.Unlock()

	log := logger.FromContext(ctx).With("component", "health_monitor", "source", sourceID)
	if next != previous {
		log.Info("source health changed", "from", previous, "to", next)
	}

	if next == StatusHealthy && previous != StatusHealthy {
		m.resolveSourceAlerts(sourceID, now)
	}
	if (next == StatusCritical || next == StatusOffline) && next != previous {
		m.raise(ctx, Alert{
			Type:     AlertAvailability,
			Severity: SeverityCritical,
			Source:   sourceID,
			Message:  fmt.Sprintf("source %s degraded to %s", sourceID, next),
		})
	}
	if nowAbove && !wasAbove {
		m.raise(ctx, Alert{
			Type:     AlertPerformance,
			Severity: SeverityWarning,
			Source:   sourceID,
			Message:  fmt.Sprintf("average response time %.0fms exceeds ceiling %.0fms", avg, m.cfg.ResponseCeilingMs),
		})
	}
}

// runProbe invokes the probe under a hard deadline; a probe that ignores its
// context still cannot stall the check loop.
func (m *Monitor) runProbe(ctx context.Context, sourceID string) (ProbeResult, error) {
	if m.probe == nil {
		return ProbeResult{}, fmt.Errorf("no probe configured")
	}
	pctx := ctx
	if m.cfg.ProbeTimeout > 0 {
		var cancel context.CancelFunc
		pctx, cancel = context.WithTimeout(ctx, m.cfg.ProbeTimeout)
		defer cancel()
	}
	type probeOut struct {
		result ProbeResult
		err    error
	}
	outCh := make(chan probeOut, 1)
	go func() {
		result, err := m.probe(pctx, sourceID)
		outCh <- probeOut{result: result, err: err}
	}()
	select {
	case out := <-outCh:
		return out.result, out.err
	case <-pctx.Done():
		return ProbeResult{}, pctx.Err()
	}
}

func classify(uptime, errorRate float64) Status {
	switch {
	case uptime > 95 && errorRate < 5:
		return StatusHealthy
	case uptime > 85 && errorRate < 10:
		return StatusWarning
	case uptime > 70:
		return StatusCritical
	default:
		return StatusOffline
	}
}

func deriveIssues(result ProbeResult, slowMs float64) []string {
	var issues []string
	if result.ResponseTime > slowMs {
		issues = append(issues, fmt.Sprintf("high response time: %.0fms", result.ResponseTime))
	}
	if result.ErrorRate > 5 {
		issues = append(issues, fmt.Sprintf("high error rate: %.1f%%", result.ErrorRate))
	}
	return issues
}

// raise records the alert for audit and dispatches it to subscribers.
func (m *Monitor) raise(ctx context.Context, alert Alert) {
	alert.ID = core.NewID()
	alert.Timestamp = time.Now()
	m.alertMu.Lock()
	stored := alert
	m.alerts = append(m.alerts, &stored)
	m.alertMu.Unlock()
	logger.FromContext(ctx).Warn("alert raised",
		"alert_id", alert.ID,
		"type", alert.Type,
		"severity", alert.Severity,
		"source", alert.Source,
		"message", alert.Message)
	m.hub.Publish(alert)
}

// resolveSourceAlerts closes every open alert for a source after it returns
// to healthy.
func (m *Monitor) resolveSourceAlerts(sourceID string, at time.Time) {
	m.alertMu.Lock()
	defer m.alertMu.Unlock()
	for _, alert := range m.alerts {
		if alert.Source == sourceID && alert.ResolvedAt == nil {
			resolved := at
			alert.ResolvedAt = &resolved
		}
	}
}

// Resolve manually ends an alert's lifecycle.
func (m *Monitor) Resolve(id core.ID) bool {
	m.alertMu.Lock()
	defer m.alertMu.Unlock()
	for _, alert := range m.alerts {
		if alert.ID == id && alert.ResolvedAt == nil {
			now := time.Now()
			alert.ResolvedAt = &now
			return true
		}
	}
	return false
}

// Alerts returns a copy of the audit log, oldest first.
func (m *Monitor) Alerts() []Alert {
	m.alertMu.RLock()
	defer m.alertMu.RUnlock()
	out := make([]Alert, 0, len(m.alerts))
	for _, alert := range m.alerts {
		out = append(out, *alert)
	}
	return out
}

// HealthMetrics returns the latest classification for every registered
// source, ordered by source id.
func (m *Monitor) HealthMetrics() []Metric {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Metric, 0, len(m.states))
	for _, state := range m.states {
		metric := state.metric
		metric.Issues = append([]string(nil), state.metric.Issues...)
		out = append(out, metric)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SourceID < out[j].SourceID })
	return out
}

// OnAlert registers a callback for raised alerts; the returned function
// unsubscribes it.
func (m *Monitor) OnAlert(callback func(Alert)) func() {
	return m.hub.OnAlert(callback)
}

// SubscribeAlerts returns a channel of raised alerts for channel-based
// consumers.
func (m *Monitor) SubscribeAlerts() (<-chan Alert, func()) {
	return m.hub.Subscribe()
}

// Close stops the loop and ends all subscriptions.
func (m *Monitor) Close() {
	m.Stop()
	m.hub.Close()
}
