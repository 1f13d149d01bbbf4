package domain

import (
	"sort"
	"time"
)

// ThreatCategory is one label from the fixed severity ladder.
// Params: category constants ordered by the classifier.
// Returns: normalized threat label used across the pipeline.
type ThreatCategory string

const (
	// CategoryMissile marks ballistic/cruise missile threats.
	CategoryMissile ThreatCategory = "missile"
	// CategoryAircraft marks tactical aviation activity.
	CategoryAircraft ThreatCategory = "aircraft"
	// CategoryDrone marks UAV threats.
	CategoryDrone ThreatCategory = "drone"
	// CategoryArtillery marks artillery shelling danger.
	CategoryArtillery ThreatCategory = "artillery"
	// CategoryExplosion marks reported explosions/impacts.
	CategoryExplosion ThreatCategory = "explosion"
	// CategoryStreetFighting marks urban combat warnings.
	CategoryStreetFighting ThreatCategory = "street_fighting"
	// CategoryAllClear marks stand-down signals in free text.
	CategoryAllClear ThreatCategory = "all_clear"
	// CategoryUnspecified marks hazards that matched no pattern.
	CategoryUnspecified ThreatCategory = "unspecified"
)

// AreaWide is the location unit denoting the whole area of interest.
const AreaWide = "area-wide"

// Hazard is one active (location unit, threat category) pair.
// Params: canonical location unit and classified category.
// Returns: one element of a snapshot's active set.
type Hazard struct {
	Location string         `json:"location"`
	Category ThreatCategory `json:"category"`
}

// Snapshot is one point-in-time observation of the hazard feed.
// Params: observation time, active pairs, and raw upstream region names.
// Returns: immutable input for the session state machine.
type Snapshot struct {
	ObservedAt time.Time `json:"observed_at"`
	Hazards    []Hazard  `json:"hazards"`
	RawRegions []string  `json:"raw_regions,omitempty"`
}

// Empty reports whether the snapshot carries no active hazard.
// Params: none.
// Returns: true when the active set is empty.
func (s Snapshot) Empty() bool {
	return len(s.Hazards) == 0
}

// Locations returns the deduplicated sorted location units of the snapshot.
// Params: none.
// Returns: sorted unique location unit list.
func (s Snapshot) Locations() []string {
	seen := make(map[string]struct{}, len(s.Hazards))
	out := make([]string, 0, len(s.Hazards))
	for _, hazard := range s.Hazards {
		if _, ok := seen[hazard.Location]; ok {
			continue
		}
		seen[hazard.Location] = struct{}{}
		out = append(out, hazard.Location)
	}
	sort.Strings(out)
	return out
}

// EventKind identifies one session lifecycle transition.
// Params: start/update/partial_end/end/reminder constants.
// Returns: transition tag for message routing.
type EventKind string

const (
	// EventStart marks an Idle to Active transition.
	EventStart EventKind = "start"
	// EventUpdate marks a change of type or location set while Active.
	EventUpdate EventKind = "update"
	// EventPartialEnd marks a stand-down for one location while others stay Active.
	EventPartialEnd EventKind = "partial_end"
	// EventEnd marks an Active to Idle transition.
	EventEnd EventKind = "end"
	// EventReminder marks a periodic still-active reminder.
	EventReminder EventKind = "reminder"
)

// SessionEvent is one discrete lifecycle event emitted by the tracker.
// Params: kind, current category/locations, and transition timestamps.
// Returns: payload for the message builder.
type SessionEvent struct {
	Kind      EventKind      `json:"kind"`
	Category  ThreatCategory `json:"category"`
	Locations []string       `json:"locations"`
	StartedAt time.Time      `json:"started_at"`
	Duration  time.Duration  `json:"duration,omitempty"`
	At        time.Time      `json:"at"`
}

// SessionView is a read-only copy of the live session state.
// Params: active flag, current category, location set, and start time.
// Returns: detached state for the status query surface.
type SessionView struct {
	Active    bool           `json:"active"`
	Category  ThreatCategory `json:"category,omitempty"`
	Locations []string       `json:"locations,omitempty"`
	StartedAt time.Time      `json:"started_at,omitempty"`
}

// DailyReport summarizes one closed local day of alert activity.
// Params: counters accumulated by the daily aggregator.
// Returns: payload for the daily report message.
type DailyReport struct {
	Day             time.Time              `json:"day"`
	AlertCount      int                    `json:"alert_count"`
	TotalDuration   time.Duration          `json:"total_duration"`
	AverageDuration time.Duration          `json:"average_duration"`
	PerType         map[ThreatCategory]int `json:"per_type"`
}

// RaidReport is one dispatched free-text threat report.
// Params: classified category, detected district/direction, and time.
// Returns: payload for the raid message template.
type RaidReport struct {
	Category  ThreatCategory `json:"category"`
	Level     int            `json:"level"`
	District  string         `json:"district,omitempty"`
	Direction string         `json:"direction,omitempty"`
	At        time.Time      `json:"at"`
}
