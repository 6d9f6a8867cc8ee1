package activities

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/liftlog/liftlog/internal/middleware"
	"github.com/liftlog/liftlog/internal/telemetry/tracing"
	"github.com/liftlog/liftlog/pkg"

	log "github.com/sirupsen/logrus"
)

//go:generate mockgen -source=$GOFILE -destination=handler_mocks_test.go -package=activities_test

type activitiesRepo interface {
	Add(ctx context.Context, activity Activity) (*Activity, error)
	Get(ctx context.Context, id int) (*Activity, error)
	List(ctx context.Context, userID int) ([]Activity, error)
	Finish(ctx context.Context, id int, completedAt time.Time) (*Activity, error)
}

type Handler struct {
	repo activitiesRepo
	now  func() time.Time
}

func NewHandler(repo activitiesRepo) *Handler {
	return &Handler{
		repo: repo,
		now:  time.Now,
	}
}

type AddActivityRequest struct {
	Type            string `json:"type"`
	Name            string `json:"name"`
	DurationMinutes *int   `json:"durationMinutes,omitempty"`
	Notes           string `json:"notes,omitempty"`
	Metadata        string `json:"metadata,omitempty"`
}

type ListResponse struct {
	Activities []Activity `json:"activities"`
	Total      int        `json:"total"`
}

func (handler *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.activities.list")
	defer span.End()

	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "no user id in token", http.StatusUnauthorized)
		return
	}

	activities, err := handler.repo.List(ctx, userID)
	if err != nil {
		log.Errorf("list activities: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	listRespJson, err := json.Marshal(ListResponse{
		Activities: activities,
		Total:      len(activities),
	})
	if err != nil {
		log.Errorf("marshal activities: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, listRespJson, http.StatusOK)
}

func (handler *Handler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.activities.add")
	defer span.End()

	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "no user id in token", http.StatusUnauthorized)
		return
	}

	var apiReq AddActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&apiReq); err != nil {
		log.Errorf("add activity, unmarshal json params: %s", err)
		http.Error(w, "parse request error", http.StatusBadRequest)
		return
	}

	if apiReq.Type == "" || apiReq.Name == "" {
		http.Error(w, "activity type and name are required", http.StatusBadRequest)
		return
	}
	if apiReq.DurationMinutes != nil && *apiReq.DurationMinutes < 0 {
		http.Error(w, "duration must not be negative", http.StatusBadRequest)
		return
	}

	added, err := handler.repo.Add(ctx, Activity{
		UserID:          userID,
		Type:            apiReq.Type,
		Name:            apiReq.Name,
		DurationMinutes: apiReq.DurationMinutes,
		Notes:           apiReq.Notes,
		Metadata:        apiReq.Metadata,
		StartedAt:       handler.now(),
	})
	if err != nil {
		log.Errorf("add activity: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	addedBytes, err := json.Marshal(added)
	if err != nil {
		log.Errorf("marshal added activity: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, addedBytes, http.StatusCreated)
}

func (handler *Handler) HandleFinish(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.activities.finish")
	defer span.End()

	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "no user id in token", http.StatusUnauthorized)
		return
	}

	vars := mux.Vars(r)
	activityID, err := strconv.Atoi(vars["id"])
	if err != nil {
		http.Error(w, "invalid activity id", http.StatusBadRequest)
		return
	}

	activity, err := handler.repo.Get(ctx, activityID)
	if err != nil {
		if errors.Is(err, ErrActivityNotFound) {
			http.Error(w, "activity not found", http.StatusNotFound)
			return
		}
		log.Errorf("finish activity, get %d: %s", activityID, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	if activity.UserID != userID {
		http.Error(w, "activity not found", http.StatusNotFound)
		return
	}
	if !activity.Active() {
		http.Error(w, "activity already completed", http.StatusConflict)
		return
	}

	finished, err := handler.repo.Finish(ctx, activityID, handler.now())
	if err != nil {
		log.Errorf("finish activity %d: %s", activityID, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	finishedJson, err := json.Marshal(finished)
	if err != nil {
		log.Errorf("marshal finished activity: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, finishedJson, http.StatusOK)
}
