package records

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/liftlog/liftlog/internal/middleware"
	"github.com/liftlog/liftlog/internal/telemetry/tracing"
	"github.com/liftlog/liftlog/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

//go:generate mockgen -source=$GOFILE -destination=records_mocks_test.go -package=records_test

type recordsRepo interface {
	CurrentBest(ctx context.Context, userID, exerciseID int) (*PersonalRecord, error)
	ListBests(ctx context.Context, userID int) ([]PersonalRecord, error)
	History(ctx context.Context, userID, exerciseID int) ([]PersonalRecord, error)
}

type ListResponse struct {
	Records []PersonalRecord `json:"records"`
	Total   int              `json:"total"`
}

type Handler struct {
	repo recordsRepo
}

func NewHandler(repo recordsRepo) *Handler {
	return &Handler{
		repo: repo,
	}
}

// HandleList returns the current best per exercise for the logged in user.
func (handler *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.records.list")
	defer span.End()

	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	bests, err := handler.repo.ListBests(ctx, userID)
	if err != nil {
		log.Errorf("list records for user %d: %s", userID, err)
		http.Error(w, "failed to get records", http.StatusInternalServerError)
		return
	}

	listRespJson, err := json.Marshal(ListResponse{
		Records: bests,
		Total:   len(bests),
	})
	if err != nil {
		log.Errorf("marshal records error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, listRespJson, http.StatusOK)
}

// HandleHistory returns the full record history for one exercise.
func (handler *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.records.history")
	defer span.End()

	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	vars := mux.Vars(r)
	exerciseIDStr := vars["exerciseID"]
	if exerciseIDStr == "" {
		http.Error(w, "error, exercise id empty", http.StatusBadRequest)
		return
	}
	exerciseID, err := strconv.Atoi(exerciseIDStr)
	if err != nil {
		http.Error(w, "error, exercise id NaN", http.StatusBadRequest)
		return
	}

	history, err := handler.repo.History(ctx, userID, exerciseID)
	if err != nil {
		if errors.Is(err, ErrNoPersonalRecord) {
			http.Error(w, "no records", http.StatusNotFound)
			return
		}
		log.Errorf("record history for user %d, exercise %d: %s", userID, exerciseID, err)
		http.Error(w, "failed to get record history", http.StatusInternalServerError)
		return
	}

	historyJson, err := json.Marshal(ListResponse{
		Records: history,
		Total:   len(history),
	})
	if err != nil {
		log.Errorf("marshal record history error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, historyJson, http.StatusOK)
}
