package records

import (
	"context"
	"fmt"

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

// CurrentBest returns the latest personal record for the given user
// and exercise, or ErrNoPersonalRecord when there is no history yet.
func (r *Repo) CurrentBest(ctx context.Context, userID, exerciseID int) (_ *PersonalRecord, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.records.currentbest")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("user.id", userID))
	span.SetAttributes(attribute.Int("exercise.id", exerciseID))

	rows, err := r.db.Query(
		ctx,
		`
			SELECT id, user_id, exercise_id, weight, reps, volume, one_rep_max, achieved_at
			FROM personal_record
			WHERE user_id = $1 AND exercise_id = $2
			ORDER BY achieved_at DESC, id DESC
			LIMIT 1;`,
		userID, exerciseID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	found, err := r.rows2records(rows)
	if err != nil {
		return nil, err
	}

	if len(found) == 0 {
		return nil, ErrNoPersonalRecord
	}

	return &found[0], nil
}

// ListBests returns the current best per exercise for a user,
// newest achievement first.
func (r *Repo) ListBests(ctx context.Context, userID int) (_ []PersonalRecord, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.records.listbests")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("user.id", userID))

	rows, err := r.db.Query(
		ctx,
		`
			SELECT DISTINCT ON (exercise_id)
				id, user_id, exercise_id, weight, reps, volume, one_rep_max, achieved_at
			FROM personal_record
			WHERE user_id = $1
			ORDER BY exercise_id, achieved_at DESC, id DESC;`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	found, err := r.rows2records(rows)
	if err != nil {
		return nil, fmt.Errorf("rows2records: %w", err)
	}
	return found, nil
}

// History returns all records for a user and exercise, newest first.
func (r *Repo) History(ctx context.Context, userID, exerciseID int) (_ []PersonalRecord, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.records.history")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("user.id", userID))
	span.SetAttributes(attribute.Int("exercise.id", exerciseID))

	rows, err := r.db.Query(
		ctx,
		`
			SELECT id, user_id, exercise_id, weight, reps, volume, one_rep_max, achieved_at
			FROM personal_record
			WHERE user_id = $1 AND exercise_id = $2
			ORDER BY achieved_at DESC, id DESC;`,
		userID, exerciseID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return r.rows2records(rows)
}

func (r *Repo) rows2records(rows pgx.Rows) ([]PersonalRecord, error) {
	var found []PersonalRecord
	for rows.Next() {
		var pr PersonalRecord
		if err := rows.Scan(
			&pr.ID, &pr.UserID, &pr.ExerciseID,
			&pr.Weight, &pr.Reps, &pr.Volume, &pr.OneRepMax,
			&pr.AchievedAt,
		); err != nil {
			return nil, err
		}
		found = append(found, pr)
	}

	if found == nil {
		found = make([]PersonalRecord, 0)
	}

	return found, nil
}
