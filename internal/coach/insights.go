package coach

import (
	"context"
	"time"

	"github.com/liftlog/liftlog/internal/telemetry/tracing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	InsightTypeProgression = "progression"
	InsightTypeEquipment   = "equipment-analysis"
)

// Insight is one stored advisor response. The table is append-only,
// insights are never updated or deleted.
type Insight struct {
	ID        int       `json:"id"`
	UserID    int       `json:"-"`
	Type      string    `json:"type"`
	Content   string    `json:"content"`
	Metadata  string    `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type InsightsRepo struct {
	db *pgxpool.Pool
}

func NewInsightsRepo(db *pgxpool.Pool) *InsightsRepo {
	return &InsightsRepo{db: db}
}

func (r *InsightsRepo) Add(ctx context.Context, insight Insight) (_ *Insight, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "insightsRepo.add")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	var id int
	err = r.db.QueryRow(ctx,
		`INSERT INTO ai_insight (user_id, type, content, metadata, created_at)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id`,
		insight.UserID, insight.Type, insight.Content, insight.Metadata, insight.CreatedAt,
	).Scan(&id)
	if err != nil {
		return nil, err
	}

	insight.ID = id
	return &insight, nil
}

func (r *InsightsRepo) List(ctx context.Context, userID int, insightType string) (_ []Insight, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "insightsRepo.list")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(ctx,
		`SELECT id, user_id, type, content, metadata, created_at
			FROM ai_insight
			WHERE user_id = $1 AND ($2::text = '' OR type = $2)
			ORDER BY created_at DESC, id DESC`,
		userID, insightType,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return rows2insights(rows)
}

func rows2insights(rows pgx.Rows) ([]Insight, error) {
	insights := make([]Insight, 0)
	for rows.Next() {
		var insight Insight
		if err := rows.Scan(
			&insight.ID, &insight.UserID, &insight.Type,
			&insight.Content, &insight.Metadata, &insight.CreatedAt,
		); err != nil {
			return nil, err
		}
		insights = append(insights, insight)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return insights, nil
}
