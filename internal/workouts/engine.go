package workouts

import (
	"fmt"
	"time"

	"github.com/liftlog/liftlog/internal/records"
)

// SetInput is a validated set payload as logged by the user. For
// bilateral exercises Reps is authoritative, for unilateral ones
// LeftReps and RightReps are.
type SetInput struct {
	Weight      float64 `json:"weight"`
	Reps        *int    `json:"reps,omitempty"`
	LeftReps    *int    `json:"leftReps,omitempty"`
	RightReps   *int    `json:"rightReps,omitempty"`
	RestSeconds *int    `json:"restSeconds,omitempty"`
}

// SetMetrics is the outcome of evaluating one logged set against the
// current best for its exercise.
type SetMetrics struct {
	EffectiveReps int     `json:"effectiveReps"`
	Volume        float64 `json:"volume"`
	OneRepMax     float64 `json:"oneRepMax"`
	IsNewPR       bool    `json:"isNewPr"`
}

// ValidateSet rejects malformed input before anything is written:
// negative weight, negative reps, or rep fields that do not match the
// laterality of the exercise.
func ValidateSet(in SetInput, unilateral bool) error {
	if in.Weight < 0 {
		return fmt.Errorf("%w: negative weight", ErrInvalidSetData)
	}

	if unilateral {
		if in.LeftReps == nil || in.RightReps == nil {
			return fmt.Errorf("%w: unilateral exercise needs left and right reps", ErrInvalidSetData)
		}
		if *in.LeftReps < 0 || *in.RightReps < 0 {
			return fmt.Errorf("%w: negative reps", ErrInvalidSetData)
		}
		return nil
	}

	if in.Reps == nil {
		return fmt.Errorf("%w: bilateral exercise needs reps", ErrInvalidSetData)
	}
	if *in.Reps < 0 {
		return fmt.Errorf("%w: negative reps", ErrInvalidSetData)
	}
	return nil
}

// EffectiveReps resolves the rep count used for volume and PR math.
// A unilateral lift counts the weaker side, since it is only as
// strong as its weaker limb. Rep fields ValidateSet would reject as
// missing count as zero.
func EffectiveReps(in SetInput, unilateral bool) int {
	if unilateral {
		if in.LeftReps == nil || in.RightReps == nil {
			return 0
		}
		if *in.LeftReps < *in.RightReps {
			return *in.LeftReps
		}
		return *in.RightReps
	}
	if in.Reps == nil {
		return 0
	}
	return *in.Reps
}

func SetVolume(weight float64, effectiveReps int) float64 {
	return weight * float64(effectiveReps)
}

// OneRepMax is the Epley estimate. Stored for display only, volume
// is the authoritative PR comparison metric.
func OneRepMax(weight float64, effectiveReps int) float64 {
	return weight * (1 + float64(effectiveReps)/30)
}

// IsNewPR holds when there is no previous best, or when the set's
// volume strictly exceeds it. Equal volume is not a new record.
func IsNewPR(setVolume float64, best *records.PersonalRecord) bool {
	if best == nil {
		return true
	}
	return setVolume > best.Volume
}

// EvaluateSet runs the full decision for one logged set: validation,
// effective reps, volume, 1RM estimate and PR status against the given
// current best (nil when the user has no history for the exercise).
// It is a pure function, persisting the outcome is the caller's job.
func EvaluateSet(in SetInput, unilateral bool, best *records.PersonalRecord) (SetMetrics, error) {
	if err := ValidateSet(in, unilateral); err != nil {
		return SetMetrics{}, err
	}

	effectiveReps := EffectiveReps(in, unilateral)
	volume := SetVolume(in.Weight, effectiveReps)

	return SetMetrics{
		EffectiveReps: effectiveReps,
		Volume:        volume,
		OneRepMax:     OneRepMax(in.Weight, effectiveReps),
		IsNewPR:       IsNewPR(volume, best),
	}, nil
}

// NewRecord builds the personal record row for a set that established
// a new best.
func NewRecord(userID, exerciseID int, in SetInput, metrics SetMetrics, achievedAt time.Time) records.PersonalRecord {
	return records.PersonalRecord{
		UserID:     userID,
		ExerciseID: exerciseID,
		Weight:     in.Weight,
		Reps:       metrics.EffectiveReps,
		Volume:     metrics.Volume,
		OneRepMax:  metrics.OneRepMax,
		AchievedAt: achievedAt,
	}
}
