package workouts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/liftlog/liftlog/internal/records"
	"github.com/liftlog/liftlog/internal/telemetry/tracing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
)

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

// Start opens a new workout session. A user can have at most one
// active session, starting a second one fails with
// ErrActiveWorkoutExists.
func (r *Repo) Start(ctx context.Context, userID int, category string, startedAt time.Time) (_ *Workout, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.start")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("user.id", userID))
	span.SetAttributes(attribute.String("category", category))

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			if rollbackErr := tx.Rollback(ctx); rollbackErr != nil {
				err = fmt.Errorf("failed to rollback transaction: %w: %w", rollbackErr, err)
			}
		} else {
			err = tx.Commit(ctx)
		}
	}()

	var activeCount int
	if err = tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM workout
		WHERE user_id = $1 AND completed_at IS NULL
	`, userID).Scan(&activeCount); err != nil {
		return nil, err
	}
	if activeCount > 0 {
		err = ErrActiveWorkoutExists
		return nil, err
	}

	workout := Workout{
		UserID:    userID,
		Category:  category,
		StartedAt: startedAt,
	}
	if err = tx.QueryRow(ctx, `
		INSERT INTO workout (user_id, category, started_at, total_volume)
		VALUES ($1, $2, $3, 0)
		RETURNING id
	`, userID, category, startedAt).Scan(&workout.ID); err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Int("workout.id", workout.ID))
	return &workout, nil
}

// Finish marks a workout completed and stores the session duration in
// minutes. A completed workout is never reopened.
func (r *Repo) Finish(ctx context.Context, workoutID int, completedAt time.Time) (_ *Workout, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.finish")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("workout.id", workoutID))

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			if rollbackErr := tx.Rollback(ctx); rollbackErr != nil {
				err = fmt.Errorf("failed to rollback transaction: %w: %w", rollbackErr, err)
			}
		} else {
			err = tx.Commit(ctx)
		}
	}()

	workout, err := getWorkoutForUpdate(ctx, tx, workoutID)
	if err != nil {
		return nil, err
	}
	if !workout.Active() {
		err = ErrWorkoutCompleted
		return nil, err
	}

	durationMinutes := int(completedAt.Sub(workout.StartedAt).Minutes())
	if _, err = tx.Exec(ctx, `
		UPDATE workout SET completed_at = $1, duration_minutes = $2
		WHERE id = $3
	`, completedAt, durationMinutes, workoutID); err != nil {
		return nil, err
	}

	workout.CompletedAt = &completedAt
	workout.DurationMinutes = &durationMinutes
	return workout, nil
}

// RecordSet persists one logged set, the optional new personal record
// and the workout volume increment as a single transaction. The
// workout row is locked first so concurrent submissions for the same
// session serialize on it, and the caller's PR decision is re-checked
// against the stored records inside that lock: a record only lands
// when its volume still strictly exceeds every persisted one, so the
// best never regresses no matter how submissions interleave.
func (r *Repo) RecordSet(
	ctx context.Context,
	userID int,
	set WorkoutSet,
	metrics SetMetrics,
	newRecord *records.PersonalRecord,
) (_ *WorkoutSet, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.recordset")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("user.id", userID))
	span.SetAttributes(attribute.Int("workout.id", set.WorkoutID))
	span.SetAttributes(attribute.Int("exercise.id", set.ExerciseID))
	span.SetAttributes(attribute.Bool("set.is_pr", metrics.IsNewPR))

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			if rollbackErr := tx.Rollback(ctx); rollbackErr != nil {
				err = fmt.Errorf("failed to rollback transaction: %w: %w", rollbackErr, err)
			}
		} else {
			err = tx.Commit(ctx)
		}
	}()

	workout, err := getWorkoutForUpdate(ctx, tx, set.WorkoutID)
	if err != nil {
		return nil, err
	}
	if workout.UserID != userID {
		err = ErrWorkoutNotFound
		return nil, err
	}
	if !workout.Active() {
		err = ErrWorkoutCompleted
		return nil, err
	}

	if set.SetNumber == 0 {
		if err = tx.QueryRow(ctx, `
			SELECT COALESCE(MAX(set_number), 0) + 1 FROM workout_set
			WHERE workout_id = $1 AND exercise_id = $2
		`, set.WorkoutID, set.ExerciseID).Scan(&set.SetNumber); err != nil {
			return nil, err
		}
	}

	set.IsPR = metrics.IsNewPR
	if newRecord != nil {
		// the caller decided PR status from a snapshot taken before
		// this lock was acquired, a concurrent submission may have
		// raised the best in between
		var bestVolume float64
		if err = tx.QueryRow(ctx, `
			SELECT COALESCE(MAX(volume), -1) FROM personal_record
			WHERE user_id = $1 AND exercise_id = $2
		`, newRecord.UserID, newRecord.ExerciseID).Scan(&bestVolume); err != nil {
			return nil, err
		}
		if newRecord.Volume <= bestVolume {
			newRecord = nil
			set.IsPR = false
		}
	}

	if err = tx.QueryRow(ctx, `
		INSERT INTO workout_set
			(workout_id, exercise_id, set_number, weight, reps, left_reps, right_reps, rest_seconds, is_pr, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`,
		set.WorkoutID, set.ExerciseID, set.SetNumber,
		set.Weight, set.Reps, set.LeftReps, set.RightReps,
		set.RestSeconds, set.IsPR, set.CreatedAt,
	).Scan(&set.ID); err != nil {
		return nil, err
	}

	if newRecord != nil {
		// append-only, the previous best stays in the history
		if _, err = tx.Exec(ctx, `
			INSERT INTO personal_record
				(user_id, exercise_id, weight, reps, volume, one_rep_max, achieved_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`,
			newRecord.UserID, newRecord.ExerciseID,
			newRecord.Weight, newRecord.Reps,
			newRecord.Volume, newRecord.OneRepMax,
			newRecord.AchievedAt,
		); err != nil {
			return nil, err
		}
	}

	if _, err = tx.Exec(ctx, `
		UPDATE workout SET total_volume = total_volume + $1
		WHERE id = $2
	`, metrics.Volume, set.WorkoutID); err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Int("set.id", set.ID))
	return &set, nil
}

func (r *Repo) Get(ctx context.Context, workoutID int) (_ *Workout, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("workout.id", workoutID))

	rows, err := r.db.Query(
		ctx,
		`SELECT id, user_id, category, started_at, completed_at, duration_minutes, total_volume
			FROM workout WHERE id = $1;`,
		workoutID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	found, err := rows2workouts(rows)
	if err != nil {
		return nil, err
	}

	if len(found) != 1 {
		return nil, ErrWorkoutNotFound
	}

	return &found[0], nil
}

// List returns a user's workouts, newest first.
func (r *Repo) List(ctx context.Context, userID int) (_ []Workout, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.list")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("user.id", userID))

	rows, err := r.db.Query(
		ctx,
		`SELECT id, user_id, category, started_at, completed_at, duration_minutes, total_volume
			FROM workout WHERE user_id = $1
			ORDER BY started_at DESC;`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	return rows2workouts(rows)
}

// ListSets returns the sets of a workout in logged order.
func (r *Repo) ListSets(ctx context.Context, workoutID int) (_ []WorkoutSet, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.listsets")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("workout.id", workoutID))

	rows, err := r.db.Query(
		ctx,
		`SELECT id, workout_id, exercise_id, set_number, weight, reps, left_reps, right_reps, rest_seconds, is_pr, created_at
			FROM workout_set WHERE workout_id = $1
			ORDER BY created_at, id;`,
		workoutID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	var sets []WorkoutSet
	for rows.Next() {
		var s WorkoutSet
		if err := rows.Scan(
			&s.ID, &s.WorkoutID, &s.ExerciseID, &s.SetNumber,
			&s.Weight, &s.Reps, &s.LeftReps, &s.RightReps,
			&s.RestSeconds, &s.IsPR, &s.CreatedAt,
		); err != nil {
			return nil, err
		}
		sets = append(sets, s)
	}

	if sets == nil {
		sets = make([]WorkoutSet, 0)
	}

	return sets, nil
}

// RecentSets returns the user's latest sets of one exercise across
// all workouts, newest first.
func (r *Repo) RecentSets(ctx context.Context, userID, exerciseID, limit int) (_ []WorkoutSet, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.recentsets")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(
		attribute.Int("user.id", userID),
		attribute.Int("exercise.id", exerciseID),
	)

	rows, err := r.db.Query(
		ctx,
		`SELECT ws.id, ws.workout_id, ws.exercise_id, ws.set_number, ws.weight, ws.reps, ws.left_reps, ws.right_reps, ws.rest_seconds, ws.is_pr, ws.created_at
			FROM workout_set ws
			JOIN workout w ON w.id = ws.workout_id
			WHERE w.user_id = $1 AND ws.exercise_id = $2
			ORDER BY ws.created_at DESC, ws.id DESC
			LIMIT $3;`,
		userID, exerciseID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sets := make([]WorkoutSet, 0)
	for rows.Next() {
		var s WorkoutSet
		if err := rows.Scan(
			&s.ID, &s.WorkoutID, &s.ExerciseID, &s.SetNumber,
			&s.Weight, &s.Reps, &s.LeftReps, &s.RightReps,
			&s.RestSeconds, &s.IsPR, &s.CreatedAt,
		); err != nil {
			return nil, err
		}
		sets = append(sets, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sets, nil
}

func getWorkoutForUpdate(ctx context.Context, tx pgx.Tx, workoutID int) (*Workout, error) {
	var w Workout
	err := tx.QueryRow(ctx, `
		SELECT id, user_id, category, started_at, completed_at, duration_minutes, total_volume
		FROM workout WHERE id = $1
		FOR UPDATE
	`, workoutID).Scan(
		&w.ID, &w.UserID, &w.Category, &w.StartedAt,
		&w.CompletedAt, &w.DurationMinutes, &w.TotalVolume,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWorkoutNotFound
		}
		return nil, err
	}
	return &w, nil
}

func rows2workouts(rows pgx.Rows) ([]Workout, error) {
	var found []Workout
	for rows.Next() {
		var w Workout
		if err := rows.Scan(
			&w.ID, &w.UserID, &w.Category, &w.StartedAt,
			&w.CompletedAt, &w.DurationMinutes, &w.TotalVolume,
		); err != nil {
			return nil, err
		}
		found = append(found, w)
	}

	if found == nil {
		found = make([]Workout, 0)
	}

	return found, nil
}
