// Package model contains domain models passed between layers.
package model

import "time"

// Entry is the persisted per-user leaderboard record.
// An entry is created implicitly on the first score update and is never
// deleted by this service.
type Entry struct {
	UserID string // opaque unique identifier, primary key

	// Score is the cumulative score, updated only by additive deltas.
	// It is unbounded in both directions.
	Score float64

	// StreakCount is the number of consecutive UTC calendar days with at
	// least one score update. It is >= 1 once the entry exists.
	StreakCount int64

	// LastActivity is the UTC calendar date of the most recent update.
	// The zero value means the entry has never been updated.
	LastActivity time.Time

	// Version guards conditional writes. A store rejects an upsert whose
	// Version does not match the stored one; version 0 means "create".
	Version int64
}

// HasActivity reports whether the entry has recorded at least one update.
func (e Entry) HasActivity() bool {
	return !e.LastActivity.IsZero()
}

// DateOf truncates t to its UTC calendar date (midnight UTC).
func DateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// SameDay reports whether a and b fall on the same UTC calendar date.
func SameDay(a, b time.Time) bool {
	return DateOf(a).Equal(DateOf(b))
}

// NextDay reports whether b is exactly the UTC calendar day after a.
func NextDay(a, b time.Time) bool {
	return DateOf(a).AddDate(0, 0, 1).Equal(DateOf(b))
}
