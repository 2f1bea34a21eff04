// Package health tracks the liveness of the service's moving parts:
// the NATS connection, the document buckets and the request handlers.
// Statuses aggregate bottom-up; one unhealthy part marks the whole
// service unhealthy.
package health

import (
	"regexp"
	"sync"
	"time"
)

// Reported health states.
const (
	StateHealthy   = "healthy"
	StateDegraded  = "degraded"
	StateUnhealthy = "unhealthy"
)

// Status is the health of one part, or of the aggregated service.
type Status struct {
	Part        string    `json:"part"`
	Healthy     bool      `json:"healthy"`
	State       string    `json:"state"`
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
	SubStatuses []Status  `json:"subStatuses,omitempty"`
}

// Healthy/Degraded/Unhealthy constructors. Messages pass through
// Sanitize so connection errors cannot leak credentials or addresses
// into a surface served to callers.

func Healthy(part, message string) Status {
	return Status{Part: part, Healthy: true, State: StateHealthy, Message: Sanitize(message), Timestamp: time.Now()}
}

func Degraded(part, message string) Status {
	return Status{Part: part, State: StateDegraded, Message: Sanitize(message), Timestamp: time.Now()}
}

func Unhealthy(part, message string) Status {
	return Status{Part: part, State: StateUnhealthy, Message: Sanitize(message), Timestamp: time.Now()}
}

var (
	urlRegex        = regexp.MustCompile(`(?:https?|nats|tls|wss?)://[^\s]+`)
	ipAddrRegex     = regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`)
	credentialRegex = regexp.MustCompile(`(?i)(password|token|secret|credential)[^a-zA-Z]*[:=][^,\s}]+`)
)

// Sanitize strips server addresses and credentials from a message so
// it is safe to serve outside the process.
func Sanitize(message string) string {
	if message == "" {
		return ""
	}
	message = urlRegex.ReplaceAllString(message, "[URL]")
	message = ipAddrRegex.ReplaceAllString(message, "[IP]")
	message = credentialRegex.ReplaceAllString(message, "[REDACTED]")
	return message
}

// Monitor tracks the statuses of named parts.
type Monitor struct {
	mu       sync.RWMutex
	statuses map[string]Status
}

// NewMonitor creates an empty monitor.
func NewMonitor() *Monitor {
	return &Monitor{statuses: make(map[string]Status)}
}

// Update records the status of a part.
func (m *Monitor) Update(status Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if status.Timestamp.IsZero() {
		status.Timestamp = time.Now()
	}
	m.statuses[status.Part] = status
}

// Get returns the status of one part.
func (m *Monitor) Get(part string) (Status, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	status, ok := m.statuses[part]
	return status, ok
}

// Aggregate rolls every tracked part into one service status: any
// unhealthy part makes the service unhealthy; otherwise any degraded
// part makes it degraded.
func (m *Monitor) Aggregate(service string) Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.statuses) == 0 {
		return Healthy(service, "no parts tracked")
	}

	var hasUnhealthy, hasDegraded bool
	subs := make([]Status, 0, len(m.statuses))
	for _, status := range m.statuses {
		subs = append(subs, status)
		switch status.State {
		case StateUnhealthy:
			hasUnhealthy = true
		case StateDegraded:
			hasDegraded = true
		}
	}

	var agg Status
	switch {
	case hasUnhealthy:
		agg = Unhealthy(service, "one or more parts unhealthy")
	case hasDegraded:
		agg = Degraded(service, "one or more parts degraded")
	default:
		agg = Healthy(service, "all parts healthy")
	}
	agg.SubStatuses = subs
	return agg
}
