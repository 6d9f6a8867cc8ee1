package workouts

import (
	"context"
	"sync"
	"time"

	"github.com/liftlog/liftlog/internal/records"
)

var _ workoutsStore = (*InMemStore)(nil)
var _ bestGetter = (*InMemStore)(nil)

// InMemStore is the in-process storage backend, used in tests and dev
// setups instead of postgres. All mutations run under one lock, which
// gives the same atomicity guarantees the durable backend gets from
// transactions.
type InMemStore struct {
	mu           sync.Mutex
	nextID       int
	workoutsByID map[int]*Workout
	setsByID     map[int]*WorkoutSet
	recordsByID  map[int]*records.PersonalRecord
}

func NewInMemStore() *InMemStore {
	return &InMemStore{
		nextID:       1,
		workoutsByID: make(map[int]*Workout),
		setsByID:     make(map[int]*WorkoutSet),
		recordsByID:  make(map[int]*records.PersonalRecord),
	}
}

func (s *InMemStore) Start(_ context.Context, userID int, category string, startedAt time.Time) (*Workout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, w := range s.workoutsByID {
		if w.UserID == userID && w.Active() {
			return nil, ErrActiveWorkoutExists
		}
	}

	workout := &Workout{
		ID:        s.newID(),
		UserID:    userID,
		Category:  category,
		StartedAt: startedAt,
	}
	s.workoutsByID[workout.ID] = workout

	copied := *workout
	return &copied, nil
}

func (s *InMemStore) Finish(_ context.Context, workoutID int, completedAt time.Time) (*Workout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	workout, ok := s.workoutsByID[workoutID]
	if !ok {
		return nil, ErrWorkoutNotFound
	}
	if !workout.Active() {
		return nil, ErrWorkoutCompleted
	}

	durationMinutes := int(completedAt.Sub(workout.StartedAt).Minutes())
	workout.CompletedAt = &completedAt
	workout.DurationMinutes = &durationMinutes

	copied := *workout
	return &copied, nil
}

func (s *InMemStore) RecordSet(
	_ context.Context,
	userID int,
	set WorkoutSet,
	metrics SetMetrics,
	newRecord *records.PersonalRecord,
) (*WorkoutSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	workout, ok := s.workoutsByID[set.WorkoutID]
	if !ok || workout.UserID != userID {
		return nil, ErrWorkoutNotFound
	}
	if !workout.Active() {
		return nil, ErrWorkoutCompleted
	}

	if set.SetNumber == 0 {
		maxSetNumber := 0
		for _, existing := range s.setsByID {
			if existing.WorkoutID == set.WorkoutID &&
				existing.ExerciseID == set.ExerciseID &&
				existing.SetNumber > maxSetNumber {
				maxSetNumber = existing.SetNumber
			}
		}
		set.SetNumber = maxSetNumber + 1
	}

	set.IsPR = metrics.IsNewPR
	if newRecord != nil {
		// same in-lock re-check the durable backend does, the
		// caller's snapshot of the best may be stale
		for _, record := range s.recordsByID {
			if record.UserID == newRecord.UserID &&
				record.ExerciseID == newRecord.ExerciseID &&
				record.Volume >= newRecord.Volume {
				newRecord = nil
				set.IsPR = false
				break
			}
		}
	}

	set.ID = s.newID()
	s.setsByID[set.ID] = &set

	if newRecord != nil {
		record := *newRecord
		record.ID = s.newID()
		s.recordsByID[record.ID] = &record
	}

	workout.TotalVolume += metrics.Volume

	copied := set
	return &copied, nil
}

func (s *InMemStore) Get(_ context.Context, workoutID int) (*Workout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	workout, ok := s.workoutsByID[workoutID]
	if !ok {
		return nil, ErrWorkoutNotFound
	}

	copied := *workout
	return &copied, nil
}

func (s *InMemStore) List(_ context.Context, userID int) ([]Workout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	found := make([]Workout, 0)
	for _, w := range s.workoutsByID {
		if w.UserID == userID {
			found = append(found, *w)
		}
	}
	return found, nil
}

func (s *InMemStore) ListSets(_ context.Context, workoutID int) ([]WorkoutSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sets := make([]WorkoutSet, 0)
	for _, set := range s.setsByID {
		if set.WorkoutID == workoutID {
			sets = append(sets, *set)
		}
	}
	return sets, nil
}

// CurrentBest returns the latest stored record for the user and
// exercise, so the store doubles as the records backend in tests.
func (s *InMemStore) CurrentBest(_ context.Context, userID, exerciseID int) (*records.PersonalRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var best *records.PersonalRecord
	for _, record := range s.recordsByID {
		if record.UserID != userID || record.ExerciseID != exerciseID {
			continue
		}
		if best == nil || record.ID > best.ID {
			best = record
		}
	}
	if best == nil {
		return nil, records.ErrNoPersonalRecord
	}

	copied := *best
	return &copied, nil
}

func (s *InMemStore) newID() int {
	id := s.nextID
	s.nextID++
	return id
}
