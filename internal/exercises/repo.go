package exercises

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/liftlog/liftlog/internal/telemetry/tracing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
)

type ListParams struct {
	Category  string
	Equipment string
}

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

func (r *Repo) Add(ctx context.Context, exercise Exercise) (_ *Exercise, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.exercises.add")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if exercise.CreatedAt.IsZero() {
		exercise.CreatedAt = time.Now()
	}
	if exercise.MuscleGroups == nil {
		exercise.MuscleGroups = []string{}
	}

	rows, err := r.db.Query(
		ctx,
		`INSERT INTO exercise
				(name, category, muscle_groups, instructions, tips, equipment, is_unilateral, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id;`,
		exercise.Name, exercise.Category, exercise.MuscleGroups,
		exercise.Instructions, exercise.Tips, exercise.Equipment,
		exercise.IsUnilateral, exercise.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if !rows.Next() {
		return nil, errors.New("unexpected error [no rows next]")
	}

	var id int
	if err := rows.Scan(&id); err != nil {
		return nil, fmt.Errorf("rows scan: %w", err)
	}

	span.SetAttributes(attribute.Int("exercise.id", id))

	exercise.ID = id
	return &exercise, nil
}

func (r *Repo) Get(ctx context.Context, id int) (_ *Exercise, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.exercises.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", id))

	rows, err := r.db.Query(
		ctx,
		`
			SELECT
				id, name, category, muscle_groups, instructions, tips, equipment, is_unilateral, created_at
			FROM exercise
			WHERE id = $1;`,
		id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	found, err := r.rows2exercises(rows)
	if err != nil {
		return nil, err
	}

	if len(found) != 1 {
		return nil, ErrExerciseNotFound
	}

	return &found[0], nil
}

// List returns the exercise library, optionally narrowed down
// to a single training day category or equipment type.
func (r *Repo) List(ctx context.Context, params ListParams) (_ []Exercise, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.exercises.list")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("category", params.Category))
	span.SetAttributes(attribute.String("equipment", params.Equipment))

	rows, err := r.db.Query(
		ctx,
		`
			SELECT
				id, name, category, muscle_groups, instructions, tips, equipment, is_unilateral, created_at
			FROM exercise
				WHERE ($1::text = '' OR category = $1)
				AND ($2::text = '' OR equipment = $2)
			ORDER BY category, name;`,
		params.Category, params.Equipment,
	)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	found, err := r.rows2exercises(rows)
	if err != nil {
		return nil, fmt.Errorf("rows2exercises: %w", err)
	}
	return found, nil
}

func (r *Repo) rows2exercises(rows pgx.Rows) ([]Exercise, error) {
	var found []Exercise
	for rows.Next() {
		var e Exercise
		var instructions, tips, equipment *string
		if err := rows.Scan(
			&e.ID, &e.Name, &e.Category, &e.MuscleGroups,
			&instructions, &tips, &equipment,
			&e.IsUnilateral, &e.CreatedAt,
		); err != nil {
			return nil, err
		}

		if instructions != nil {
			e.Instructions = *instructions
		}
		if tips != nil {
			e.Tips = *tips
		}
		if equipment != nil {
			e.Equipment = *equipment
		}
		if e.MuscleGroups == nil {
			e.MuscleGroups = []string{}
		}

		found = append(found, e)
	}

	if found == nil {
		found = make([]Exercise, 0)
	}

	return found, nil
}
