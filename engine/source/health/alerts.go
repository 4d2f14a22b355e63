package health

import (
	"sync"
	"time"

	"github.com/betomanzoli/pharma-conecta-brasil-sub001/engine/core"
)

// AlertType classifies what degraded.
type AlertType string

const (
	AlertPerformance  AlertType = "performance"
	AlertAvailability AlertType = "availability"
	AlertQuality      AlertType = "quality"
	AlertSecurity     AlertType = "security"
)

// Severity grades an alert.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Alert is raised when a source crosses a health threshold. Its lifecycle
// ends when resolved, either manually or by a subsequent healthy reading.
type Alert struct {
	ID         core.ID    `json:"id"`
	Type       AlertType  `json:"type"`
	Severity   Severity   `json:"severity"`
	Source     string     `json:"source"`
	Message    string     `json:"message"`
	Timestamp  time.Time  `json:"timestamp"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// Resolved reports whether the alert lifecycle has ended.
func (a *Alert) Resolved() bool {
	return a.ResolvedAt != nil
}

const defaultAlertBufferSize = 100

// AlertHub fans alerts out to subscribers. Delivery is non-blocking: a slow
// subscriber's buffer fills and its alerts are dropped and counted, the
// other subscribers are unaffected and the publisher never waits.
type AlertHub struct {
	mu          sync.Mutex
	subscribers map[int]chan Alert
	nextID      int
	bufferSize  int
	dropped     int64
	closed      bool
}

// NewAlertHub creates a hub with the given per-subscriber buffer capacity.
func NewAlertHub(bufferSize int) *AlertHub {
	if bufferSize <= 0 {
		bufferSize = defaultAlertBufferSize
	}
	return &AlertHub{
		subscribers: make(map[int]chan Alert),
		bufferSize:  bufferSize,
	}
}

// Subscribe registers a new listener channel. The returned function removes
// the subscription and closes the channel.
func (h *AlertHub) Subscribe() (<-chan Alert, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	ch := make(chan Alert, h.bufferSize)
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	h.subscribers[id] = ch
	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if sub, ok := h.subscribers[id]; ok {
			delete(h.subscribers, id)
			close(sub)
		}
	}
}

// OnAlert registers a callback invoked for every published alert on its own
// goroutine. A panicking callback is contained and only ends its own
// subscription.
func (h *AlertHub) OnAlert(callback func(Alert)) func() {
	ch, unsubscribe := h.Subscribe()
	go func() {
		defer func() {
			// Drop the registration too, or the orphaned buffer would
			// count every later publish as a dropped delivery.
			if recover() != nil {
				unsubscribe()
			}
		}()
		for alert := range ch {
			callback(alert)
		}
	}()
	return unsubscribe
}

// Publish delivers the alert to every subscriber without blocking.
func (h *AlertHub) Publish(alert Alert) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	for _, ch := range h.subscribers {
		select {
		case ch <- alert:
		default:
			h.dropped++
		}
	}
}

// Dropped returns how many alert deliveries were skipped due to full buffers.
func (h *AlertHub) Dropped() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dropped
}

// Close ends all subscriptions. Publish becomes a no-op afterwards.
func (h *AlertHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subscribers {
		delete(h.subscribers, id)
		close(ch)
	}
}
