package workouts

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/liftlog/liftlog/internal/exercises"
	"github.com/liftlog/liftlog/internal/middleware"
	"github.com/liftlog/liftlog/internal/telemetry/tracing"
	"github.com/liftlog/liftlog/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

//go:generate mockgen -source=$GOFILE -destination=handler_mocks_test.go -package=workouts_test

type workoutsService interface {
	StartWorkout(ctx context.Context, userID int, category string) (*Workout, error)
	FinishWorkout(ctx context.Context, userID, workoutID int) (*Workout, error)
	RecordSet(ctx context.Context, userID, workoutID, exerciseID int, in SetInput) (*WorkoutSet, SetMetrics, error)
	Workouts(ctx context.Context, userID int) ([]Workout, error)
	WorkoutSets(ctx context.Context, userID, workoutID int) ([]WorkoutSet, error)
}

type StartWorkoutRequest struct {
	Category string `json:"category"`
}

type LogSetRequest struct {
	ExerciseID int `json:"exerciseId"`
	SetInput
}

type LogSetResponse struct {
	Set     WorkoutSet `json:"set"`
	Metrics SetMetrics `json:"metrics"`
}

type ListResponse struct {
	Workouts []Workout `json:"workouts"`
	Total    int       `json:"total"`
}

type ListSetsResponse struct {
	Sets  []WorkoutSet `json:"sets"`
	Total int          `json:"total"`
}

type Handler struct {
	service workoutsService
}

func NewHandler(service workoutsService) *Handler {
	return &Handler{
		service: service,
	}
}

func (handler *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.list")
	defer span.End()

	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	found, err := handler.service.Workouts(ctx, userID)
	if err != nil {
		log.Errorf("list workouts for user %d: %s", userID, err)
		http.Error(w, "failed to get workouts", http.StatusInternalServerError)
		return
	}

	listRespJson, err := json.Marshal(ListResponse{
		Workouts: found,
		Total:    len(found),
	})
	if err != nil {
		log.Errorf("marshal workouts error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, listRespJson, http.StatusOK)
}

func (handler *Handler) HandleStart(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.start")
	defer span.End()

	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	var startReq StartWorkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&startReq); err != nil {
		log.Tracef("start workout, unmarshal json params: %s", err)
		http.Error(w, "start workout failed", http.StatusBadRequest)
		return
	}

	workout, err := handler.service.StartWorkout(ctx, userID, startReq.Category)
	if err != nil {
		switch {
		case errors.Is(err, ErrActiveWorkoutExists):
			http.Error(w, "error, active workout exists", http.StatusConflict)
		case errors.Is(err, ErrInvalidSetData):
			http.Error(w, "error, invalid category", http.StatusBadRequest)
		default:
			log.Errorf("start workout for user %d: %s", userID, err)
			http.Error(w, "error, failed to start workout", http.StatusInternalServerError)
		}
		return
	}

	workoutJson, err := json.Marshal(workout)
	if err != nil {
		log.Errorf("marshal workout error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	log.Debugf("workout %d started for user %d", workout.ID, userID)
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, workoutJson, http.StatusCreated)
}

func (handler *Handler) HandleFinish(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.finish")
	defer span.End()

	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	workoutID, err := workoutIDFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	workout, err := handler.service.FinishWorkout(ctx, userID, workoutID)
	if err != nil {
		switch {
		case errors.Is(err, ErrWorkoutNotFound):
			http.Error(w, "workout not found", http.StatusNotFound)
		case errors.Is(err, ErrWorkoutCompleted):
			http.Error(w, "error, workout already completed", http.StatusConflict)
		default:
			log.Errorf("finish workout %d for user %d: %s", workoutID, userID, err)
			http.Error(w, "error, failed to finish workout", http.StatusInternalServerError)
		}
		return
	}

	workoutJson, err := json.Marshal(workout)
	if err != nil {
		log.Errorf("marshal workout error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	log.Debugf("workout %d finished for user %d", workoutID, userID)
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, workoutJson, http.StatusOK)
}

func (handler *Handler) HandleListSets(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.listsets")
	defer span.End()

	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	workoutID, err := workoutIDFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	sets, err := handler.service.WorkoutSets(ctx, userID, workoutID)
	if err != nil {
		if errors.Is(err, ErrWorkoutNotFound) {
			http.Error(w, "workout not found", http.StatusNotFound)
			return
		}
		log.Errorf("list sets for workout %d: %s", workoutID, err)
		http.Error(w, "failed to get sets", http.StatusInternalServerError)
		return
	}

	setsRespJson, err := json.Marshal(ListSetsResponse{
		Sets:  sets,
		Total: len(sets),
	})
	if err != nil {
		log.Errorf("marshal sets error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, setsRespJson, http.StatusOK)
}

func (handler *Handler) HandleLogSet(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.logset")
	defer span.End()

	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	workoutID, err := workoutIDFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var logSetReq LogSetRequest
	if err := json.NewDecoder(r.Body).Decode(&logSetReq); err != nil {
		log.Tracef("log set, unmarshal json params: %s", err)
		http.Error(w, "log set failed", http.StatusBadRequest)
		return
	}

	addedSet, setMetrics, err := handler.service.RecordSet(
		ctx, userID, workoutID, logSetReq.ExerciseID, logSetReq.SetInput,
	)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidSetData):
			http.Error(w, "error, invalid set data", http.StatusBadRequest)
		case errors.Is(err, ErrWorkoutNotFound), errors.Is(err, exercises.ErrExerciseNotFound):
			http.Error(w, "workout or exercise not found", http.StatusNotFound)
		case errors.Is(err, ErrWorkoutCompleted):
			http.Error(w, "error, workout already completed", http.StatusConflict)
		case errors.Is(err, ErrPersistenceConflict):
			http.Error(w, "error, too much contention, try again", http.StatusConflict)
		default:
			log.Errorf("log set for workout %d: %s", workoutID, err)
			http.Error(w, "error, failed to log set", http.StatusInternalServerError)
		}
		return
	}

	logSetRespJson, err := json.Marshal(LogSetResponse{
		Set:     *addedSet,
		Metrics: setMetrics,
	})
	if err != nil {
		log.Errorf("marshal log set response: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	log.Debugf("set %d logged for workout %d (pr: %t)", addedSet.ID, workoutID, setMetrics.IsNewPR)
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, logSetRespJson, http.StatusCreated)
}

func workoutIDFromRequest(r *http.Request) (int, error) {
	vars := mux.Vars(r)
	idStr := vars["id"]
	if idStr == "" {
		return 0, errors.New("error, id empty")
	}
	id, err := strconv.Atoi(idStr)
	if err != nil {
		return 0, errors.New("error, id NaN")
	}
	return id, nil
}
