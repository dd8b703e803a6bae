// Package streak derives daily activity streak counts.
//
// The calculation is a pure function of the previous streak state and the
// current date. It performs no I/O and holds no state, so the storage
// backends share one definition of the streak transitions.
package streak

import (
	"time"

	"github.com/clouddev/leaderboard/internal/domain/model"
)

// Next returns the streak count after an update on today, given the
// previous count and the previous activity date.
//
// Transitions:
//   - zero last date (never updated): 1
//   - last date == today: count unchanged (a zero count is normalized to 1)
//   - last date == today-1: count+1
//   - anything else, past or future: reset to 1
//
// A late-arriving update whose stored date is ahead of today therefore
// resets the streak; the caller always persists today as the new activity
// date (last write wins).
func Next(current int64, last time.Time, today time.Time) int64 {
	switch {
	case last.IsZero():
		return 1
	case model.SameDay(last, today):
		if current > 0 {
			return current
		}
		return 1
	case model.NextDay(last, today):
		return current + 1
	default:
		return 1
	}
}
