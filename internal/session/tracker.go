// Package session tracks the alert lifecycle for the area of interest.
package session

import (
	"sort"
	"sync"
	"time"

	"github.com/madmonkey48/kh-allert-radar/internal/classify"
	"github.com/madmonkey48/kh-allert-radar/internal/config"
	"github.com/madmonkey48/kh-allert-radar/internal/domain"
)

// Tracker is the session state machine fed by source snapshots.
// A session opens on the first hazardous snapshot, absorbs location and
// category changes while active, and closes when the snapshot goes empty.
// Params: reminder cadence from config.
// Returns: lifecycle events derived from consecutive snapshots.
type Tracker struct {
	mu        sync.Mutex
	reminder  time.Duration
	active    bool
	category  domain.ThreatCategory
	locations map[string]struct{}
	startedAt time.Time
	remindAt  time.Time
}

// NewTracker builds an idle tracker.
// Params: cfg holds the reminder interval.
// Returns: tracker in the idle state.
func NewTracker(cfg config.SessionConfig) *Tracker {
	return &Tracker{
		reminder:  time.Duration(cfg.ReminderIntervalSec) * time.Second,
		locations: make(map[string]struct{}),
	}
}

// Advance feeds one snapshot into the state machine.
// Params: snapshot is the latest source state; now is the observation time.
// Returns: zero or more lifecycle events in emission order.
func (t *Tracker) Advance(snapshot domain.Snapshot, now time.Time) []domain.SessionEvent {
	t.mu.Lock()
	defer t.mu.Unlock()

	if snapshot.Empty() {
		if !t.active {
			return nil
		}
		return []domain.SessionEvent{t.closeSession(now)}
	}

	category := snapshotCategory(snapshot)
	if !t.active {
		return []domain.SessionEvent{t.openSession(snapshot, category, now)}
	}

	var events []domain.SessionEvent

	added, removed := t.diffLocations(snapshot)
	categoryChanged := category != t.category
	t.category = category

	for _, location := range added {
		t.locations[location] = struct{}{}
	}
	if len(added) > 0 || categoryChanged {
		locations := added
		if len(locations) == 0 {
			locations = t.sortedLocations()
		}
		events = append(events, domain.SessionEvent{
			Kind:      domain.EventUpdate,
			Category:  t.category,
			Locations: locations,
			StartedAt: t.startedAt,
			At:        now,
		})
	}
	// One stand-down notification per cleared location.
	for _, location := range removed {
		delete(t.locations, location)
		events = append(events, domain.SessionEvent{
			Kind:      domain.EventPartialEnd,
			Category:  t.category,
			Locations: []string{location},
			StartedAt: t.startedAt,
			At:        now,
		})
	}
	if now.Sub(t.remindAt) >= t.reminder {
		t.remindAt = now
		events = append(events, domain.SessionEvent{
			Kind:      domain.EventReminder,
			Category:  t.category,
			Locations: t.sortedLocations(),
			StartedAt: t.startedAt,
			Duration:  now.Sub(t.startedAt),
			At:        now,
		})
	}
	return events
}

// View reports the current session state for status queries.
// Params: none.
// Returns: read-only snapshot of the state machine.
func (t *Tracker) View() domain.SessionView {
	t.mu.Lock()
	defer t.mu.Unlock()
	return domain.SessionView{
		Active:    t.active,
		Category:  t.category,
		Locations: t.sortedLocations(),
		StartedAt: t.startedAt,
	}
}

// openSession transitions idle to active. Caller holds the lock.
func (t *Tracker) openSession(snapshot domain.Snapshot, category domain.ThreatCategory, now time.Time) domain.SessionEvent {
	t.active = true
	t.category = category
	t.startedAt = now
	t.remindAt = now
	t.locations = make(map[string]struct{})
	for _, location := range snapshot.Locations() {
		t.locations[location] = struct{}{}
	}
	return domain.SessionEvent{
		Kind:      domain.EventStart,
		Category:  category,
		Locations: t.sortedLocations(),
		StartedAt: now,
		At:        now,
	}
}

// closeSession transitions active to idle. Caller holds the lock.
func (t *Tracker) closeSession(now time.Time) domain.SessionEvent {
	event := domain.SessionEvent{
		Kind:      domain.EventEnd,
		Category:  t.category,
		Locations: t.sortedLocations(),
		StartedAt: t.startedAt,
		Duration:  now.Sub(t.startedAt),
		At:        now,
	}
	t.active = false
	t.category = ""
	t.locations = make(map[string]struct{})
	t.startedAt = time.Time{}
	t.remindAt = time.Time{}
	return event
}

// diffLocations splits the snapshot against tracked locations. Caller holds the lock.
func (t *Tracker) diffLocations(snapshot domain.Snapshot) (added, removed []string) {
	current := make(map[string]struct{}, len(snapshot.Hazards))
	for _, location := range snapshot.Locations() {
		current[location] = struct{}{}
		if _, ok := t.locations[location]; !ok {
			added = append(added, location)
		}
	}
	for location := range t.locations {
		if _, ok := current[location]; !ok {
			removed = append(removed, location)
		}
	}
	sort.Strings(added)
	sort.Strings(removed)
	return added, removed
}

// sortedLocations lists tracked locations in stable order. Caller holds the lock.
func (t *Tracker) sortedLocations() []string {
	out := make([]string, 0, len(t.locations))
	for location := range t.locations {
		out = append(out, location)
	}
	sort.Strings(out)
	return out
}

// snapshotCategory picks the most severe category among snapshot hazards.
// Params: snapshot is a non-empty source state.
// Returns: dominant category, unspecified when hazards carry none.
func snapshotCategory(snapshot domain.Snapshot) domain.ThreatCategory {
	category := domain.CategoryUnspecified
	for _, hazard := range snapshot.Hazards {
		if hazard.Category == "" {
			continue
		}
		category = classify.MaxCategory(category, hazard.Category)
	}
	return category
}

// SuppressEnd reports whether an end notification should be skipped as noise.
// State is cleared and duration is accumulated either way.
// Params: cfg holds the suppression floor; duration is the closed session length.
// Returns: true when the session is shorter than the configured floor.
func SuppressEnd(cfg config.SessionConfig, duration time.Duration) bool {
	if !cfg.SuppressShortEnd || cfg.MinDurationMin <= 0 {
		return false
	}
	return duration < time.Duration(cfg.MinDurationMin)*time.Minute
}
