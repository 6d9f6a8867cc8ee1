package users

import (
	"errors"
	"time"
)

var ErrUserNotFound = errors.New("user not found")

// User is an account together with its fitness profile. The profile
// fields drive the coaching advisor prompts and are all optional.
type User struct {
	ID           int       `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`

	Age          *int       `json:"age,omitempty"`
	HeightCm     *float64   `json:"heightCm,omitempty"`
	WeightKg     *float64   `json:"weightKg,omitempty"`
	Experience   string     `json:"experience,omitempty"`
	FitnessGoal  string     `json:"fitnessGoal,omitempty"`
	TargetDate   *time.Time `json:"targetDate,omitempty"`
	HealthNotes  string     `json:"healthNotes,omitempty"`
	Goals        []string   `json:"goals"`
	Streak       int        `json:"streak"`
	WeekStartDay string     `json:"weekStartDay"`
}

// ProfileUpdate carries the profile fields a user can change.
// Nil pointers mean "leave as is".
type ProfileUpdate struct {
	Name         *string    `json:"name,omitempty"`
	Age          *int       `json:"age,omitempty"`
	HeightCm     *float64   `json:"heightCm,omitempty"`
	WeightKg     *float64   `json:"weightKg,omitempty"`
	Experience   *string    `json:"experience,omitempty"`
	FitnessGoal  *string    `json:"fitnessGoal,omitempty"`
	TargetDate   *time.Time `json:"targetDate,omitempty"`
	HealthNotes  *string    `json:"healthNotes,omitempty"`
	Goals        []string   `json:"goals,omitempty"`
	WeekStartDay *string    `json:"weekStartDay,omitempty"`
}

func (u *User) ApplyUpdate(update ProfileUpdate) {
	if update.Name != nil {
		u.Name = *update.Name
	}
	if update.Age != nil {
		u.Age = update.Age
	}
	if update.HeightCm != nil {
		u.HeightCm = update.HeightCm
	}
	if update.WeightKg != nil {
		u.WeightKg = update.WeightKg
	}
	if update.Experience != nil {
		u.Experience = *update.Experience
	}
	if update.FitnessGoal != nil {
		u.FitnessGoal = *update.FitnessGoal
	}
	if update.TargetDate != nil {
		u.TargetDate = update.TargetDate
	}
	if update.HealthNotes != nil {
		u.HealthNotes = *update.HealthNotes
	}
	if update.Goals != nil {
		u.Goals = update.Goals
	}
	if update.WeekStartDay != nil {
		u.WeekStartDay = *update.WeekStartDay
	}
}
