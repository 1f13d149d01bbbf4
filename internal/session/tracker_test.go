package session

import (
	"testing"
	"time"

	"github.com/madmonkey48/kh-allert-radar/internal/config"
	"github.com/madmonkey48/kh-allert-radar/internal/domain"
)

func snapshotOf(at time.Time, hazards ...domain.Hazard) domain.Snapshot {
	return domain.Snapshot{ObservedAt: at, Hazards: hazards}
}

func sessionConfig() config.SessionConfig {
	return config.SessionConfig{ReminderIntervalSec: 900}
}

func TestTrackerFullLifecycle(t *testing.T) {
	t.Parallel()

	tracker := NewTracker(sessionConfig())
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	events := tracker.Advance(snapshotOf(base,
		domain.Hazard{Location: "Салтівка", Category: domain.CategoryDrone},
	), base)
	if len(events) != 1 || events[0].Kind != domain.EventStart {
		t.Fatalf("expected start event, got %+v", events)
	}
	if events[0].Category != domain.CategoryDrone {
		t.Fatalf("expected drone category at start, got %q", events[0].Category)
	}

	next := base.Add(30 * time.Second)
	events = tracker.Advance(snapshotOf(next,
		domain.Hazard{Location: "Салтівка", Category: domain.CategoryDrone},
		domain.Hazard{Location: "ХТЗ", Category: domain.CategoryMissile},
	), next)
	if len(events) != 1 || events[0].Kind != domain.EventUpdate {
		t.Fatalf("expected update event, got %+v", events)
	}
	if len(events[0].Locations) != 1 || events[0].Locations[0] != "ХТЗ" {
		t.Fatalf("expected only the added location, got %v", events[0].Locations)
	}
	if events[0].Category != domain.CategoryMissile {
		t.Fatalf("expected category escalated to missile, got %q", events[0].Category)
	}

	next = base.Add(60 * time.Second)
	events = tracker.Advance(snapshotOf(next,
		domain.Hazard{Location: "ХТЗ", Category: domain.CategoryMissile},
	), next)
	if len(events) != 1 || events[0].Kind != domain.EventPartialEnd {
		t.Fatalf("expected partial-end event, got %+v", events)
	}
	if len(events[0].Locations) != 1 || events[0].Locations[0] != "Салтівка" {
		t.Fatalf("expected only the cleared location, got %v", events[0].Locations)
	}

	next = base.Add(90 * time.Second)
	events = tracker.Advance(snapshotOf(next), next)
	if len(events) != 1 || events[0].Kind != domain.EventEnd {
		t.Fatalf("expected end event, got %+v", events)
	}
	if events[0].Duration != 90*time.Second {
		t.Fatalf("expected 90s session duration, got %v", events[0].Duration)
	}

	view := tracker.View()
	if view.Active || len(view.Locations) != 0 {
		t.Fatalf("expected idle tracker after end, got %+v", view)
	}
}

func TestTrackerEmptySnapshotWhileIdle(t *testing.T) {
	t.Parallel()

	tracker := NewTracker(sessionConfig())
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if events := tracker.Advance(snapshotOf(now), now); len(events) != 0 {
		t.Fatalf("expected no events while idle, got %+v", events)
	}
}

func TestTrackerUnchangedSnapshotEmitsNothing(t *testing.T) {
	t.Parallel()

	tracker := NewTracker(sessionConfig())
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	snapshot := snapshotOf(base, domain.Hazard{Location: "Центр", Category: domain.CategoryDrone})

	tracker.Advance(snapshot, base)
	next := base.Add(5 * time.Second)
	if events := tracker.Advance(snapshotOf(next, snapshot.Hazards...), next); len(events) != 0 {
		t.Fatalf("expected no events for unchanged snapshot, got %+v", events)
	}
}

func TestTrackerReminderCadence(t *testing.T) {
	t.Parallel()

	tracker := NewTracker(sessionConfig())
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	hazard := domain.Hazard{Location: "Центр", Category: domain.CategoryDrone}

	tracker.Advance(snapshotOf(base, hazard), base)

	early := base.Add(899 * time.Second)
	if events := tracker.Advance(snapshotOf(early, hazard), early); len(events) != 0 {
		t.Fatalf("expected no reminder before interval, got %+v", events)
	}

	due := base.Add(900 * time.Second)
	events := tracker.Advance(snapshotOf(due, hazard), due)
	if len(events) != 1 || events[0].Kind != domain.EventReminder {
		t.Fatalf("expected reminder at interval, got %+v", events)
	}
	if events[0].Duration != 900*time.Second {
		t.Fatalf("expected 900s elapsed in reminder, got %v", events[0].Duration)
	}

	soonAfter := due.Add(5 * time.Second)
	if events := tracker.Advance(snapshotOf(soonAfter, hazard), soonAfter); len(events) != 0 {
		t.Fatalf("expected reminder cadence to reset, got %+v", events)
	}
}

func TestTrackerUpdateOnCategoryEscalation(t *testing.T) {
	t.Parallel()

	tracker := NewTracker(sessionConfig())
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tracker.Advance(snapshotOf(base,
		domain.Hazard{Location: "Центр", Category: domain.CategoryDrone},
	), base)

	// Same location set, escalated threat: the update must still go out.
	next := base.Add(10 * time.Second)
	events := tracker.Advance(snapshotOf(next,
		domain.Hazard{Location: "Центр", Category: domain.CategoryMissile},
	), next)
	if len(events) != 1 || events[0].Kind != domain.EventUpdate {
		t.Fatalf("expected update on escalation, got %+v", events)
	}
	if events[0].Category != domain.CategoryMissile {
		t.Fatalf("expected missile category in update, got %q", events[0].Category)
	}
	if len(events[0].Locations) != 1 || events[0].Locations[0] != "Центр" {
		t.Fatalf("expected active locations in update, got %v", events[0].Locations)
	}
}

func TestTrackerCategoryFollowsSnapshot(t *testing.T) {
	t.Parallel()

	tracker := NewTracker(sessionConfig())
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tracker.Advance(snapshotOf(base,
		domain.Hazard{Location: "Центр", Category: domain.CategoryMissile},
	), base)

	next := base.Add(10 * time.Second)
	events := tracker.Advance(snapshotOf(next,
		domain.Hazard{Location: "Центр", Category: domain.CategoryDrone},
	), next)
	if len(events) != 1 || events[0].Kind != domain.EventUpdate {
		t.Fatalf("expected update on category change, got %+v", events)
	}
	if events[0].Category != domain.CategoryDrone {
		t.Fatalf("expected drone category after de-escalation, got %q", events[0].Category)
	}
	if view := tracker.View(); view.Category != domain.CategoryDrone {
		t.Fatalf("expected tracked category to follow snapshot, got %q", view.Category)
	}
}

func TestTrackerPartialEndPerLocation(t *testing.T) {
	t.Parallel()

	tracker := NewTracker(sessionConfig())
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	hazard := func(location string) domain.Hazard {
		return domain.Hazard{Location: location, Category: domain.CategoryDrone}
	}

	tracker.Advance(snapshotOf(base, hazard("Центр"), hazard("Салтівка"), hazard("ХТЗ")), base)

	next := base.Add(30 * time.Second)
	events := tracker.Advance(snapshotOf(next, hazard("Центр")), next)
	if len(events) != 2 {
		t.Fatalf("expected one partial-end per cleared location, got %+v", events)
	}
	for _, event := range events {
		if event.Kind != domain.EventPartialEnd {
			t.Fatalf("expected partial-end events, got %+v", event)
		}
		if len(event.Locations) != 1 {
			t.Fatalf("expected single location per event, got %v", event.Locations)
		}
	}
	if events[0].Locations[0] != "Салтівка" || events[1].Locations[0] != "ХТЗ" {
		t.Fatalf("expected cleared locations in order, got %+v", events)
	}
}

func TestSuppressEnd(t *testing.T) {
	t.Parallel()

	cfg := config.SessionConfig{MinDurationMin: 3, SuppressShortEnd: true}
	if !SuppressEnd(cfg, 2*time.Minute) {
		t.Fatalf("expected short session suppressed")
	}
	if SuppressEnd(cfg, 3*time.Minute) {
		t.Fatalf("expected session at the floor to pass")
	}
	if SuppressEnd(config.SessionConfig{MinDurationMin: 3}, time.Minute) {
		t.Fatalf("expected suppression off by default")
	}
}
