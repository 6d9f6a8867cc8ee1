package activities

import (
	"context"
	"math"
	"time"

	"github.com/liftlog/liftlog/internal/telemetry/tracing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
)

const activityColumns = "id, user_id, type, name, duration_minutes, notes, metadata, started_at, completed_at"

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Add(ctx context.Context, activity Activity) (_ *Activity, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "activitiesRepo.add")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	var id int
	err = r.db.QueryRow(ctx,
		`INSERT INTO activity (user_id, type, name, duration_minutes, notes, metadata, started_at, completed_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id`,
		activity.UserID, activity.Type, activity.Name, activity.DurationMinutes,
		activity.Notes, activity.Metadata, activity.StartedAt, activity.CompletedAt,
	).Scan(&id)
	if err != nil {
		return nil, err
	}

	activity.ID = id
	return &activity, nil
}

func (r *Repo) Get(ctx context.Context, id int) (_ *Activity, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "activitiesRepo.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("activity.id", id))

	rows, err := r.db.Query(ctx,
		`SELECT `+activityColumns+` FROM activity WHERE id = $1`, id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	found, err := rows2activities(rows)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, ErrActivityNotFound
	}
	return &found[0], nil
}

func (r *Repo) List(ctx context.Context, userID int) (_ []Activity, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "activitiesRepo.list")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("user.id", userID))

	rows, err := r.db.Query(ctx,
		`SELECT `+activityColumns+` FROM activity WHERE user_id = $1
			ORDER BY started_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return rows2activities(rows)
}

// Finish marks the activity as completed. A missing duration is
// derived from the start timestamp, rounded up to a full minute.
func (r *Repo) Finish(ctx context.Context, id int, completedAt time.Time) (_ *Activity, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "activitiesRepo.finish")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("activity.id", id))

	activity, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if activity.DurationMinutes == nil {
		duration := int(math.Ceil(completedAt.Sub(activity.StartedAt).Minutes()))
		if duration < 0 {
			duration = 0
		}
		activity.DurationMinutes = &duration
	}
	activity.CompletedAt = &completedAt

	tag, err := r.db.Exec(ctx,
		`UPDATE activity SET completed_at = $1, duration_minutes = $2 WHERE id = $3`,
		activity.CompletedAt, activity.DurationMinutes, id,
	)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrActivityNotFound
	}

	return activity, nil
}

func rows2activities(rows pgx.Rows) ([]Activity, error) {
	found := make([]Activity, 0)
	for rows.Next() {
		var a Activity
		if err := rows.Scan(
			&a.ID, &a.UserID, &a.Type, &a.Name, &a.DurationMinutes,
			&a.Notes, &a.Metadata, &a.StartedAt, &a.CompletedAt,
		); err != nil {
			return nil, err
		}
		found = append(found, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return found, nil
}
