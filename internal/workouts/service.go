package workouts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/liftlog/liftlog/internal/exercises"
	"github.com/liftlog/liftlog/internal/records"
	"github.com/liftlog/liftlog/internal/telemetry/metrics"
	"github.com/liftlog/liftlog/internal/telemetry/tracing"
	"github.com/liftlog/liftlog/internal/users"
	"github.com/liftlog/liftlog/pkg"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

//go:generate mockgen -source=$GOFILE -destination=service_mocks_test.go -package=workouts_test

type workoutsStore interface {
	Start(ctx context.Context, userID int, category string, startedAt time.Time) (*Workout, error)
	Finish(ctx context.Context, workoutID int, completedAt time.Time) (*Workout, error)
	RecordSet(ctx context.Context, userID int, set WorkoutSet, metrics SetMetrics, newRecord *records.PersonalRecord) (*WorkoutSet, error)
	Get(ctx context.Context, workoutID int) (*Workout, error)
	List(ctx context.Context, userID int) ([]Workout, error)
	ListSets(ctx context.Context, workoutID int) ([]WorkoutSet, error)
}

type exercisesGetter interface {
	Get(ctx context.Context, id int) (*exercises.Exercise, error)
}

type bestGetter interface {
	CurrentBest(ctx context.Context, userID, exerciseID int) (*records.PersonalRecord, error)
}

type profileStore interface {
	Get(ctx context.Context, id int) (*users.User, error)
	UpdateStreak(ctx context.Context, userID, streak int) error
}

// Service orchestrates the workout lifecycle around the pure set
// evaluation logic: it resolves the exercise, snapshots the current
// best, evaluates the set and hands the outcome to the store as one
// atomic write.
type Service struct {
	store          workoutsStore
	exercisesRepo  exercisesGetter
	recordsRepo    bestGetter
	usersRepo      profileStore
	metricsManager *metrics.Manager
	now            func() time.Time
}

func NewService(
	store workoutsStore,
	exercisesRepo exercisesGetter,
	recordsRepo bestGetter,
	usersRepo profileStore,
	metricsManager *metrics.Manager,
) *Service {
	return &Service{
		store:          store,
		exercisesRepo:  exercisesRepo,
		recordsRepo:    recordsRepo,
		usersRepo:      usersRepo,
		metricsManager: metricsManager,
		now:            time.Now,
	}
}

func (s *Service) StartWorkout(ctx context.Context, userID int, category string) (_ *Workout, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.workouts.start")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if !exercises.ValidCategory(category) {
		return nil, fmt.Errorf("%w: invalid category %q", ErrInvalidSetData, category)
	}

	workout, err := s.store.Start(ctx, userID, category, s.now())
	if err != nil {
		return nil, err
	}

	s.metricsManager.CounterWorkoutsStarted.Inc()
	return workout, nil
}

func (s *Service) FinishWorkout(ctx context.Context, userID, workoutID int) (_ *Workout, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.workouts.finish")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	workout, err := s.store.Get(ctx, workoutID)
	if err != nil {
		return nil, err
	}
	if workout.UserID != userID {
		return nil, ErrWorkoutNotFound
	}

	finished, err := s.store.Finish(ctx, workoutID, s.now())
	if err != nil {
		return nil, err
	}

	s.bumpStreak(ctx, userID, finished)
	s.metricsManager.CounterWorkoutsFinished.Inc()
	return finished, nil
}

// RecordSet runs the full set-logging flow: validate against the
// exercise's laterality, snapshot the current best, decide PR status
// and persist set, record and volume atomically. The snapshot here is
// advisory, the store re-decides PR status against the records it
// sees inside its own lock and that decision wins. A storage-level
// write conflict is retried once with a fresh snapshot, a second
// conflict surfaces as ErrPersistenceConflict.
func (s *Service) RecordSet(
	ctx context.Context,
	userID, workoutID, exerciseID int,
	in SetInput,
) (_ *WorkoutSet, _ SetMetrics, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.workouts.recordset")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("workout.id", workoutID))
	span.SetAttributes(attribute.Int("exercise.id", exerciseID))

	exercise, err := s.exercisesRepo.Get(ctx, exerciseID)
	if err != nil {
		return nil, SetMetrics{}, err
	}

	for attempt := 0; ; attempt++ {
		best, err := s.recordsRepo.CurrentBest(ctx, userID, exerciseID)
		if err != nil && !errors.Is(err, records.ErrNoPersonalRecord) {
			return nil, SetMetrics{}, err
		}

		setMetrics, err := EvaluateSet(in, exercise.IsUnilateral, best)
		if err != nil {
			return nil, SetMetrics{}, err
		}

		var newRecord *records.PersonalRecord
		if setMetrics.IsNewPR {
			record := NewRecord(userID, exerciseID, in, setMetrics, s.now())
			newRecord = &record
		}

		addedSet, err := s.store.RecordSet(ctx, userID, WorkoutSet{
			WorkoutID:   workoutID,
			ExerciseID:  exerciseID,
			Weight:      in.Weight,
			Reps:        in.Reps,
			LeftReps:    in.LeftReps,
			RightReps:   in.RightReps,
			RestSeconds: in.RestSeconds,
			CreatedAt:   s.now(),
		}, setMetrics, newRecord)
		if err != nil {
			if pkg.IsSerializationError(err) {
				if attempt == 0 {
					log.Warnf("record set for workout %d: write conflict, retrying", workoutID)
					continue
				}
				return nil, SetMetrics{}, fmt.Errorf("%w: %w", ErrPersistenceConflict, err)
			}
			return nil, SetMetrics{}, err
		}

		setMetrics.IsNewPR = addedSet.IsPR

		s.metricsManager.CounterSetsLogged.Inc()
		if setMetrics.IsNewPR {
			s.metricsManager.CounterPersonalRecords.Inc()
		}
		return addedSet, setMetrics, nil
	}
}

func (s *Service) Workouts(ctx context.Context, userID int) ([]Workout, error) {
	return s.store.List(ctx, userID)
}

func (s *Service) WorkoutSets(ctx context.Context, userID, workoutID int) (_ []WorkoutSet, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.workouts.sets")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	workout, err := s.store.Get(ctx, workoutID)
	if err != nil {
		return nil, err
	}
	if workout.UserID != userID {
		return nil, ErrWorkoutNotFound
	}

	return s.store.ListSets(ctx, workoutID)
}

// bumpStreak advances the streak only for the first workout completed
// on a given day. Best effort, a failure never fails the finish flow.
func (s *Service) bumpStreak(ctx context.Context, userID int, finished *Workout) {
	if finished.CompletedAt == nil {
		return
	}

	all, err := s.store.List(ctx, userID)
	if err != nil {
		log.Errorf("bump streak, list workouts for user %d: %s", userID, err)
		return
	}
	for _, w := range all {
		if w.ID == finished.ID || w.CompletedAt == nil {
			continue
		}
		if sameDay(*w.CompletedAt, *finished.CompletedAt) {
			return
		}
	}

	user, err := s.usersRepo.Get(ctx, userID)
	if err != nil {
		log.Errorf("bump streak, get user %d: %s", userID, err)
		return
	}
	if err := s.usersRepo.UpdateStreak(ctx, userID, user.Streak+1); err != nil {
		log.Errorf("bump streak for user %d: %s", userID, err)
	}
}

func sameDay(t1, t2 time.Time) bool {
	y1, m1, d1 := t1.Date()
	y2, m2, d2 := t2.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}
