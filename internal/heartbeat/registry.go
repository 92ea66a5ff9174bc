// Package heartbeat tracks the liveness of the long-running components
// (dispatcher, telegram poller, scheduler, catalog watcher, HTTP server).
package heartbeat

import (
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	StateStarting = "starting"
	StateHealthy  = "healthy"
	StateDegraded = "degraded"
	StateDisabled = "disabled"
	StateStopped  = "stopped"
	StateStale    = "stale"

	OverallIdle    = "idle"
	OverallUnknown = "unknown"
)

type Reporter interface {
	Starting(component, message string)
	Beat(component, message string)
	Degrade(component, message string, err error)
	Disabled(component, message string)
	Stopped(component, message string)
}

type Status struct {
	Name           string `json:"name"`
	State          string `json:"state"`
	Message        string `json:"message,omitempty"`
	Error          string `json:"error,omitempty"`
	LastBeatAtUnix int64  `json:"last_beat_at_unix,omitempty"`
	Stale          bool   `json:"stale,omitempty"`
}

type Snapshot struct {
	GeneratedAtUnix int64    `json:"generated_at_unix"`
	Overall         string   `json:"overall"`
	Components      []Status `json:"components"`
}

type entry struct {
	state      string
	message    string
	lastError  string
	lastBeatAt time.Time
}

type Registry struct {
	mu         sync.RWMutex
	now        func() time.Time
	components map[string]entry
}

func NewRegistry() *Registry {
	return &Registry{
		now:        func() time.Time { return time.Now().UTC() },
		components: map[string]entry{},
	}
}

func (r *Registry) Starting(component, message string) {
	r.record(component, StateStarting, message, nil)
}

func (r *Registry) Beat(component, message string) {
	r.record(component, StateHealthy, message, nil)
}

func (r *Registry) Degrade(component, message string, err error) {
	r.record(component, StateDegraded, message, err)
}

func (r *Registry) Disabled(component, message string) {
	r.record(component, StateDisabled, message, nil)
}

func (r *Registry) Stopped(component, message string) {
	r.record(component, StateStopped, message, nil)
}

// Touch refreshes the last beat of a healthy or starting component and leaves
// every other state alone.
func (r *Registry) Touch(component string) {
	name := strings.ToLower(strings.TrimSpace(component))
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.components[name]
	if !ok || (current.state != StateHealthy && current.state != StateStarting) {
		return
	}
	current.lastBeatAt = r.now()
	r.components[name] = current
}

func (r *Registry) record(component, state, message string, err error) {
	name := strings.ToLower(strings.TrimSpace(component))
	if name == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	current := r.components[name]
	current.state = state
	current.message = strings.TrimSpace(message)
	current.lastError = ""
	if err != nil {
		current.lastError = strings.TrimSpace(err.Error())
	}
	// Starting counts as a first beat so a component that never reports
	// again still goes stale.
	if state == StateHealthy || current.lastBeatAt.IsZero() {
		current.lastBeatAt = r.now()
	}
	r.components[name] = current
}

// Component returns the current status of one component without staleness.
func (r *Registry) Component(name string) (Status, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	r.mu.RLock()
	defer r.mu.RUnlock()
	current, ok := r.components[name]
	if !ok {
		return Status{}, false
	}
	return current.status(name), true
}

// Snapshot reports every component. Healthy or starting components that have
// not beaten within staleAfter are reported as stale.
func (r *Registry) Snapshot(staleAfter time.Duration) Snapshot {
	now := r.now()
	r.mu.RLock()
	statuses := make([]Status, 0, len(r.components))
	for name, current := range r.components {
		status := current.status(name)
		if staleAfter > 0 && (current.state == StateHealthy || current.state == StateStarting) &&
			now.Sub(current.lastBeatAt) > staleAfter {
			status.State = StateStale
			status.Stale = true
		}
		statuses = append(statuses, status)
	}
	r.mu.RUnlock()

	sort.Slice(statuses, func(left, right int) bool {
		return statuses[left].Name < statuses[right].Name
	})
	return Snapshot{
		GeneratedAtUnix: now.Unix(),
		Overall:         overall(statuses),
		Components:      statuses,
	}
}

func (e entry) status(name string) Status {
	status := Status{Name: name, State: e.state, Message: e.message, Error: e.lastError}
	if !e.lastBeatAt.IsZero() {
		status.LastBeatAtUnix = e.lastBeatAt.Unix()
	}
	return status
}

func IsDegradedState(state string) bool {
	return state == StateDegraded || state == StateStale
}

func overall(statuses []Status) string {
	if len(statuses) == 0 {
		return OverallUnknown
	}
	result := OverallIdle
	for _, status := range statuses {
		switch status.State {
		case StateDegraded, StateStale:
			return StateDegraded
		case StateStarting:
			result = StateStarting
		case StateHealthy:
			if result == OverallIdle {
				result = StateHealthy
			}
		}
	}
	return result
}
