package workouts

import (
	"errors"
	"time"
)

var (
	ErrInvalidSetData  = errors.New("invalid set data")
	ErrWorkoutNotFound = errors.New("workout not found")
	// ErrActiveWorkoutExists rejects starting a session while another
	// one is still active for the same user.
	ErrActiveWorkoutExists = errors.New("active workout exists")
	ErrWorkoutCompleted    = errors.New("workout already completed")
	// ErrPersistenceConflict surfaces a concurrent-write race that
	// survived the retry.
	ErrPersistenceConflict = errors.New("persistence conflict")
)

type Workout struct {
	ID              int        `json:"id"`
	UserID          int        `json:"userId"`
	Category        string     `json:"category"`
	StartedAt       time.Time  `json:"startedAt"`
	CompletedAt     *time.Time `json:"completedAt,omitempty"`
	DurationMinutes *int       `json:"durationMinutes,omitempty"`
	TotalVolume     float64    `json:"totalVolume"`
}

func (w *Workout) Active() bool {
	return w.CompletedAt == nil
}

// WorkoutSet is immutable once logged. Bilateral sets carry Reps,
// unilateral sets carry LeftReps and RightReps.
type WorkoutSet struct {
	ID          int       `json:"id"`
	WorkoutID   int       `json:"workoutId"`
	ExerciseID  int       `json:"exerciseId"`
	SetNumber   int       `json:"setNumber"`
	Weight      float64   `json:"weight"`
	Reps        *int      `json:"reps,omitempty"`
	LeftReps    *int      `json:"leftReps,omitempty"`
	RightReps   *int      `json:"rightReps,omitempty"`
	RestSeconds *int      `json:"restSeconds,omitempty"`
	IsPR        bool      `json:"isPr"`
	CreatedAt   time.Time `json:"createdAt"`
}
