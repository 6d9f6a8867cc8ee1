package users

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

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

func (r *Repo) Add(ctx context.Context, user User) (_ *User, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.users.add")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	if user.Goals == nil {
		user.Goals = []string{}
	}
	if user.WeekStartDay == "" {
		user.WeekStartDay = "monday"
	}

	rows, err := r.db.Query(
		ctx,
		`INSERT INTO app_user
				(email, name, password_hash, age, height_cm, weight_kg, experience,
				fitness_goal, target_date, health_notes, goals, streak, week_start_day, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
			RETURNING id;`,
		user.Email, user.Name, user.PasswordHash,
		user.Age, user.HeightCm, user.WeightKg, user.Experience,
		user.FitnessGoal, user.TargetDate, user.HealthNotes,
		user.Goals, user.Streak, user.WeekStartDay, user.CreatedAt,
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

	span.SetAttributes(attribute.Int("user.id", id))

	user.ID = id
	return &user, nil
}

func (r *Repo) Get(ctx context.Context, id int) (_ *User, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.users.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", id))

	rows, err := r.db.Query(
		ctx,
		`SELECT `+userColumns+` FROM app_user WHERE id = $1;`,
		id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	found, err := r.rows2users(rows)
	if err != nil {
		return nil, err
	}

	if len(found) != 1 {
		return nil, ErrUserNotFound
	}

	return &found[0], nil
}

func (r *Repo) GetByEmail(ctx context.Context, email string) (_ *User, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.users.getbyemail")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(
		ctx,
		`SELECT `+userColumns+` FROM app_user WHERE email = $1;`,
		email,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	found, err := r.rows2users(rows)
	if err != nil {
		return nil, err
	}

	if len(found) != 1 {
		return nil, ErrUserNotFound
	}

	return &found[0], nil
}

func (r *Repo) Update(ctx context.Context, user *User) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.users.update")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", user.ID))

	tag, err := r.db.Exec(
		ctx,
		`UPDATE app_user SET
				name = $1, age = $2, height_cm = $3, weight_kg = $4, experience = $5,
				fitness_goal = $6, target_date = $7, health_notes = $8, goals = $9,
				streak = $10, week_start_day = $11
			WHERE id = $12;`,
		user.Name, user.Age, user.HeightCm, user.WeightKg, user.Experience,
		user.FitnessGoal, user.TargetDate, user.HealthNotes, user.Goals,
		user.Streak, user.WeekStartDay, user.ID,
	)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	return nil
}

// UpdateStreak sets the workout streak counter for a user.
func (r *Repo) UpdateStreak(ctx context.Context, userID, streak int) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.users.updatestreak")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", userID))
	span.SetAttributes(attribute.Int("streak", streak))

	tag, err := r.db.Exec(
		ctx,
		`UPDATE app_user SET streak = $1 WHERE id = $2;`,
		streak, userID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

const userColumns = `id, email, name, password_hash, age, height_cm, weight_kg, experience,
	fitness_goal, target_date, health_notes, goals, streak, week_start_day, created_at`

func (r *Repo) rows2users(rows pgx.Rows) ([]User, error) {
	var found []User
	for rows.Next() {
		var u User
		var age *int
		var heightCm, weightKg *float64
		var experience, fitnessGoal, healthNotes *string
		var targetDate *time.Time
		if err := rows.Scan(
			&u.ID, &u.Email, &u.Name, &u.PasswordHash,
			&age, &heightCm, &weightKg, &experience,
			&fitnessGoal, &targetDate, &healthNotes,
			&u.Goals, &u.Streak, &u.WeekStartDay, &u.CreatedAt,
		); err != nil {
			return nil, err
		}

		u.Age = age
		u.HeightCm = heightCm
		u.WeightKg = weightKg
		u.TargetDate = targetDate
		if experience != nil {
			u.Experience = *experience
		}
		if fitnessGoal != nil {
			u.FitnessGoal = *fitnessGoal
		}
		if healthNotes != nil {
			u.HealthNotes = *healthNotes
		}
		if u.Goals == nil {
			u.Goals = []string{}
		}

		found = append(found, u)
	}

	if found == nil {
		found = make([]User, 0)
	}

	return found, nil
}
