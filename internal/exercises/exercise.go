package exercises

import (
	"errors"
	"time"
)

var ErrExerciseNotFound = errors.New("exercise not found")

// Workout day categories, one per training day of the split.
const (
	CategoryUpperA = "UpperA"
	CategoryLowerA = "LowerA"
	CategoryUpperB = "UpperB"
	CategoryLowerB = "LowerB"
)

func ValidCategory(category string) bool {
	switch category {
	case CategoryUpperA, CategoryLowerA, CategoryUpperB, CategoryLowerB:
		return true
	}
	return false
}

type Exercise struct {
	ID           int       `json:"id"`
	Name         string    `json:"name"`
	Category     string    `json:"category"`
	MuscleGroups []string  `json:"muscleGroups"`
	Instructions string    `json:"instructions,omitempty"`
	Tips         string    `json:"tips,omitempty"`
	Equipment    string    `json:"equipment,omitempty"`
	IsUnilateral bool      `json:"isUnilateral"`
	CreatedAt    time.Time `json:"createdAt"`
}
