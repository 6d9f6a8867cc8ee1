package exercises

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/liftlog/liftlog/internal/telemetry/tracing"
	"github.com/liftlog/liftlog/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

//go:generate mockgen -source=$GOFILE -destination=exercises_mocks_test.go -package=exercises_test

type exercisesRepo interface {
	Add(ctx context.Context, exercise Exercise) (*Exercise, error)
	Get(ctx context.Context, id int) (*Exercise, error)
	List(ctx context.Context, params ListParams) ([]Exercise, error)
}

type ListResponse struct {
	Exercises []Exercise `json:"exercises"`
	Total     int        `json:"total"`
}

type Handler struct {
	repo exercisesRepo
}

func NewHandler(repo exercisesRepo) *Handler {
	return &Handler{
		repo: repo,
	}
}

func (handler *Handler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.exercises.new")
	defer span.End()

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	var exercise Exercise
	if err := json.NewDecoder(r.Body).Decode(&exercise); err != nil {
		log.Tracef("new exercise, unmarshal json params: %s", err)
		http.Error(w, "add exercise failed", http.StatusBadRequest)
		return
	}

	if exercise.Name == "" {
		http.Error(w, "error, exercise name empty", http.StatusBadRequest)
		return
	}
	if !ValidCategory(exercise.Category) {
		http.Error(w, "error, invalid category", http.StatusBadRequest)
		return
	}

	addedExercise, err := handler.repo.Add(ctx, exercise)
	if err != nil {
		log.Errorf("failed to add new exercise [%s], [%s]: %s", exercise.Category, exercise.Name, err)
		http.Error(w, "error, failed to add new exercise", http.StatusInternalServerError)
		return
	}

	addedExJson, err := json.Marshal(addedExercise)
	if err != nil {
		log.Errorf("failed to marshal new exercise: %s", err)
		http.Error(w, "error, failed to add new exercise", http.StatusInternalServerError)
		return
	}

	log.Debugf("new exercise added: %s", addedExJson)
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, addedExJson, http.StatusCreated)
}

func (handler *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.exercises.get")
	defer span.End()

	vars := mux.Vars(r)
	idStr := vars["id"]
	if idStr == "" {
		http.Error(w, "error, id empty", http.StatusBadRequest)
		return
	}
	id, err := strconv.Atoi(idStr)
	if err != nil {
		http.Error(w, "error, id NaN", http.StatusBadRequest)
		return
	}

	e, err := handler.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrExerciseNotFound) {
			http.Error(w, "exercise not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to get exercise %d: %s", id, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	exJson, err := json.Marshal(e)
	if err != nil {
		log.Errorf("failed to marshal exercise: %s", err)
		http.Error(w, "failed to marshal exercise", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, exJson, http.StatusOK)
}

func (handler *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.exercises.list")
	defer span.End()

	category := r.URL.Query().Get("category")
	if category != "" && !ValidCategory(category) {
		http.Error(w, "error, invalid category", http.StatusBadRequest)
		return
	}

	listParams := ListParams{
		Category:  category,
		Equipment: r.URL.Query().Get("equipment"),
	}

	found, err := handler.repo.List(ctx, listParams)
	if err != nil {
		log.Errorf("list exercises error: %s", err)
		http.Error(w, "failed to get exercises", http.StatusInternalServerError)
		return
	}

	listResponseJson, err := json.Marshal(ListResponse{
		Exercises: found,
		Total:     len(found),
	})
	if err != nil {
		log.Errorf("marshal exercises error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, listResponseJson, http.StatusOK)
}
