package session

import (
	"sync"
	"time"

	"github.com/madmonkey48/kh-allert-radar/internal/config"
	"github.com/madmonkey48/kh-allert-radar/internal/domain"
)

// Daily aggregates session activity per local day.
// The day boundary is midnight at a fixed offset from UTC.
// Params: offset from config.
// Returns: per-day alert counts and durations.
type Daily struct {
	mu     sync.Mutex
	offset time.Duration
	day    time.Time
	count  int
	total  time.Duration
	byType map[domain.ThreatCategory]int
}

// NewDaily builds an aggregator with an empty current day.
// Params: cfg holds the UTC offset defining the local day.
// Returns: aggregator ready for records.
func NewDaily(cfg config.DailyConfig) *Daily {
	return &Daily{
		offset: time.Duration(cfg.UTCOffsetHours) * time.Hour,
		byType: make(map[domain.ThreatCategory]int),
	}
}

// RecordStart counts one opened session on the current day.
// Params: category is the session's dominant category; at is the start time.
// Returns: nothing.
func (d *Daily) RecordStart(category domain.ThreatCategory, at time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ensureDay(at)
	d.count++
	d.byType[category]++
}

// RecordEnd accumulates the duration of one closed session.
// Params: duration is the session length; at is the end time.
// Returns: nothing.
func (d *Daily) RecordEnd(duration time.Duration, at time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ensureDay(at)
	d.total += duration
}

// Rollover closes the accumulated day when the boundary has passed.
// Params: now is the current time.
// Returns: report for the closed day and true, or zero and false.
func (d *Daily) Rollover(now time.Time) (domain.DailyReport, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	today := d.localDay(now)
	if d.day.IsZero() {
		d.day = today
		return domain.DailyReport{}, false
	}
	if today.Equal(d.day) {
		return domain.DailyReport{}, false
	}

	report := d.buildReport()
	d.day = today
	d.count = 0
	d.total = 0
	d.byType = make(map[domain.ThreatCategory]int)
	return report, true
}

// Current reports the running totals for the open day.
// Params: none.
// Returns: report for the not-yet-closed day.
func (d *Daily) Current() domain.DailyReport {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.buildReport()
}

// buildReport snapshots the accumulated day. Caller holds the lock.
func (d *Daily) buildReport() domain.DailyReport {
	report := domain.DailyReport{
		Day:           d.day,
		AlertCount:    d.count,
		TotalDuration: d.total,
		PerType:       make(map[domain.ThreatCategory]int, len(d.byType)),
	}
	if d.count > 0 {
		report.AverageDuration = d.total / time.Duration(d.count)
	}
	for category, count := range d.byType {
		report.PerType[category] = count
	}
	return report
}

// ensureDay pins the day on the first record. Caller holds the lock.
func (d *Daily) ensureDay(at time.Time) {
	if d.day.IsZero() {
		d.day = d.localDay(at)
	}
}

// localDay truncates a time to its local day at the configured offset.
// Params: at is any instant.
// Returns: midnight of the local day in UTC terms.
func (d *Daily) localDay(at time.Time) time.Time {
	shifted := at.UTC().Add(d.offset)
	return time.Date(shifted.Year(), shifted.Month(), shifted.Day(), 0, 0, 0, 0, time.UTC)
}
