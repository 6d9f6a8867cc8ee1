package activities

import (
	"errors"
	"time"
)

var ErrActivityNotFound = errors.New("activity not found")

// Activity is a non-strength session: a run, a hike, a yoga class.
// These never feed the personal record engine, they only keep the
// training log complete.
type Activity struct {
	ID              int        `json:"id"`
	UserID          int        `json:"-"`
	Type            string     `json:"type"`
	Name            string     `json:"name"`
	DurationMinutes *int       `json:"durationMinutes,omitempty"`
	Notes           string     `json:"notes,omitempty"`
	Metadata        string     `json:"metadata,omitempty"`
	StartedAt       time.Time  `json:"startedAt"`
	CompletedAt     *time.Time `json:"completedAt,omitempty"`
}

func (a *Activity) Active() bool {
	return a.CompletedAt == nil
}
