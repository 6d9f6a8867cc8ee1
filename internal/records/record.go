package records

import (
	"errors"
	"time"
)

// ErrNoPersonalRecord marks a (user, exercise) pair with no recorded
// best yet. Callers treat it as "no PR yet", not as a failure.
var ErrNoPersonalRecord = errors.New("no personal record")

// PersonalRecord is one entry in the append-only best-performance
// history for a (user, exercise) pair. The current best is the latest
// entry, and its volume only ever increases.
type PersonalRecord struct {
	ID         int       `json:"id"`
	UserID     int       `json:"userId"`
	ExerciseID int       `json:"exerciseId"`
	Weight     float64   `json:"weight"`
	Reps       int       `json:"reps"`
	Volume     float64   `json:"volume"`
	OneRepMax  float64   `json:"oneRepMax"`
	AchievedAt time.Time `json:"achievedAt"`
}
