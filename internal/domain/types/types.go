// Package types contains common types used across the application
package types

// RankedEntry is the read shape returned by ranking queries.
// Rank is positional (1-based), derived at query time and never persisted.
type RankedEntry struct {
	Rank        int64   `json:"rank"`
	UserID      string  `json:"userId"`
	DisplayName string  `json:"displayName,omitempty"`
	Score       float64 `json:"score"`
	Streak      int64   `json:"streak"`
}
