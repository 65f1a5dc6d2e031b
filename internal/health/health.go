// Package health records the latest outcome of each capture stage and of
// each doctor check.
package health

import (
	"sort"
	"sync"
	"time"

	"github.com/b-tok/asbplayer-linux/internal/logging"
)

var log = logging.L("health")

// Status is the health of one component.
type Status string

const (
	Healthy   Status = "healthy"
	Degraded  Status = "degraded"
	Unhealthy Status = "unhealthy"
	Unknown   Status = "unknown"
)

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case Healthy, Degraded, Unhealthy, Unknown:
		return true
	}
	return false
}

// Check is the latest result for a named component.
type Check struct {
	Name      string    `json:"name"`
	Status    Status    `json:"status"`
	Message   string    `json:"message,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Monitor tracks checks for multiple components. It is safe for concurrent
// use. A nil *Monitor ignores updates.
type Monitor struct {
	mu     sync.RWMutex
	now    func() time.Time
	checks map[string]Check
}

func NewMonitor() *Monitor {
	return &Monitor{
		now:    time.Now,
		checks: make(map[string]Check),
	}
}

// Update records the status for a named component, replacing the previous one.
func (m *Monitor) Update(name string, status Status, message string) {
	if m == nil {
		return
	}
	if !status.IsValid() {
		status = Unknown
	}

	m.mu.Lock()
	prev, had := m.checks[name]
	m.checks[name] = Check{Name: name, Status: status, Message: message, UpdatedAt: m.now()}
	m.mu.Unlock()

	if status != Healthy && (!had || prev.Status != status) {
		log.Debug("component not healthy", "name", name, "status", string(status), "message", message)
	}
}

func (m *Monitor) Get(name string) (Check, bool) {
	if m == nil {
		return Check{}, false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.checks[name]
	return c, ok
}

// Overall returns the worst status across all checks, or Unknown when there
// are none.
func (m *Monitor) Overall() Status {
	if m == nil {
		return Unknown
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.checks) == 0 {
		return Unknown
	}
	worst := Healthy
	for _, c := range m.checks {
		if rank(c.Status) > rank(worst) {
			worst = c.Status
		}
	}
	return worst
}

// All returns the checks sorted by name.
func (m *Monitor) All() []Check {
	if m == nil {
		return nil
	}
	m.mu.RLock()
	result := make([]Check, 0, len(m.checks))
	for _, c := range m.checks {
		result = append(result, c)
	}
	m.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// Count returns how many checks have status s.
func (m *Monitor) Count(s Status) int {
	n := 0
	for _, c := range m.All() {
		if c.Status == s {
			n++
		}
	}
	return n
}

// Summary returns the overall status and each component's status, for logs.
func (m *Monitor) Summary() map[string]any {
	checks := m.All()
	components := make(map[string]string, len(checks))
	for _, c := range checks {
		components[c.Name] = string(c.Status)
	}
	return map[string]any{
		"status":     string(m.Overall()),
		"components": components,
	}
}

// rank orders statuses from best to worst. Unknown ranks worst because
// nothing could be verified.
func rank(s Status) int {
	switch s {
	case Healthy:
		return 0
	case Degraded:
		return 1
	case Unhealthy:
		return 2
	default:
		return 3
	}
}
