package coach

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/liftlog/liftlog/internal/exercises"
	"github.com/liftlog/liftlog/internal/middleware"
	"github.com/liftlog/liftlog/internal/telemetry/tracing"
	"github.com/liftlog/liftlog/internal/users"
	"github.com/liftlog/liftlog/internal/workouts"
	"github.com/liftlog/liftlog/pkg"

	log "github.com/sirupsen/logrus"
)

const (
	maxEquipmentImages    = 5
	maxEquipmentImageSize = 10 << 20 // 10 MB per image
)

//go:generate mockgen -source=$GOFILE -destination=handler_mocks_test.go -package=coach_test

type advisor interface {
	GetProgression(ctx context.Context, userID, exerciseID int, req ProgressionRequest) (*ProgressionSuggestion, error)
	AnalyzeEquipment(ctx context.Context, images [][]byte) ([]EquipmentSuggestion, error)
}

type insightsStore interface {
	Add(ctx context.Context, insight Insight) (*Insight, error)
	List(ctx context.Context, userID int, insightType string) ([]Insight, error)
}

type exercisesGetter interface {
	Get(ctx context.Context, id int) (*exercises.Exercise, error)
}

type profileGetter interface {
	Get(ctx context.Context, id int) (*users.User, error)
}

type setsHistory interface {
	RecentSets(ctx context.Context, userID, exerciseID, limit int) ([]workouts.WorkoutSet, error)
}

type Handler struct {
	advisor       advisor
	insights      insightsStore
	exercisesRepo exercisesGetter
	usersRepo     profileGetter
	history       setsHistory
	now           func() time.Time
}

func NewHandler(
	advisor advisor,
	insights insightsStore,
	exercisesRepo exercisesGetter,
	usersRepo profileGetter,
	history setsHistory,
) *Handler {
	return &Handler{
		advisor:       advisor,
		insights:      insights,
		exercisesRepo: exercisesRepo,
		usersRepo:     usersRepo,
		history:       history,
		now:           time.Now,
	}
}

type ProgressionApiRequest struct {
	ExerciseID int `json:"exerciseId"`
}

func (handler *Handler) HandleProgression(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.coach.progression")
	defer span.End()

	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "no user id in token", http.StatusUnauthorized)
		return
	}

	var apiReq ProgressionApiRequest
	if err := json.NewDecoder(r.Body).Decode(&apiReq); err != nil {
		log.Errorf("progression, unmarshal json params: %s", err)
		http.Error(w, "parse request error", http.StatusBadRequest)
		return
	}

	exercise, err := handler.exercisesRepo.Get(ctx, apiReq.ExerciseID)
	if err != nil {
		if errors.Is(err, exercises.ErrExerciseNotFound) {
			http.Error(w, "exercise not found", http.StatusNotFound)
			return
		}
		log.Errorf("progression, get exercise: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	profile, err := handler.usersRepo.Get(ctx, userID)
	if err != nil {
		log.Errorf("progression, get profile: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	recentSets, err := handler.history.RecentSets(ctx, userID, exercise.ID, progressionHistoryDepth)
	if err != nil {
		log.Errorf("progression, get set history: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	suggestion, err := handler.advisor.GetProgression(ctx, userID, exercise.ID, ProgressionRequest{
		ExerciseName: exercise.Name,
		IsUnilateral: exercise.IsUnilateral,
		RecentSets:   recentSets,
		Profile:      profile,
	})
	if err != nil {
		log.Errorf("progression, advisor: %s", err)
		http.Error(w, "coaching advisor unavailable", http.StatusServiceUnavailable)
		return
	}

	handler.saveInsight(ctx, userID, InsightTypeProgression, suggestion, exercise.Name)

	suggestionJson, err := json.Marshal(suggestion)
	if err != nil {
		log.Errorf("marshal progression suggestion: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, suggestionJson, http.StatusOK)
}

func (handler *Handler) HandleEquipmentAnalysis(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.coach.equipment")
	defer span.End()

	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "no user id in token", http.StatusUnauthorized)
		return
	}

	if err := r.ParseMultipartForm(maxEquipmentImages * maxEquipmentImageSize); err != nil {
		log.Errorf("equipment analysis, parse multipart form: %s", err)
		http.Error(w, "parse request error", http.StatusBadRequest)
		return
	}

	files := r.MultipartForm.File["images"]
	if len(files) == 0 {
		http.Error(w, "no images provided", http.StatusBadRequest)
		return
	}
	if len(files) > maxEquipmentImages {
		http.Error(w, fmt.Sprintf("too many images, max %d", maxEquipmentImages), http.StatusBadRequest)
		return
	}

	images := make([][]byte, 0, len(files))
	for _, fileHeader := range files {
		file, err := fileHeader.Open()
		if err != nil {
			log.Errorf("equipment analysis, open image: %s", err)
			http.Error(w, "read image error", http.StatusBadRequest)
			return
		}
		imgBytes, err := io.ReadAll(io.LimitReader(file, maxEquipmentImageSize))
		_ = file.Close()
		if err != nil {
			log.Errorf("equipment analysis, read image: %s", err)
			http.Error(w, "read image error", http.StatusBadRequest)
			return
		}
		images = append(images, imgBytes)
	}

	suggestions, err := handler.advisor.AnalyzeEquipment(ctx, images)
	if err != nil {
		log.Errorf("equipment analysis, advisor: %s", err)
		http.Error(w, "coaching advisor unavailable", http.StatusServiceUnavailable)
		return
	}

	handler.saveInsight(ctx, userID, InsightTypeEquipment, suggestions, fmt.Sprintf("%d images", len(images)))

	suggestionsJson, err := json.Marshal(suggestions)
	if err != nil {
		log.Errorf("marshal equipment suggestions: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, suggestionsJson, http.StatusOK)
}

func (handler *Handler) HandleListInsights(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.coach.insights")
	defer span.End()

	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "no user id in token", http.StatusUnauthorized)
		return
	}

	insights, err := handler.insights.List(ctx, userID, r.URL.Query().Get("type"))
	if err != nil {
		log.Errorf("list insights: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	listRespJson, err := json.Marshal(InsightsResponse{
		Insights: insights,
		Total:    len(insights),
	})
	if err != nil {
		log.Errorf("marshal insights: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, listRespJson, http.StatusOK)
}

type InsightsResponse struct {
	Insights []Insight `json:"insights"`
	Total    int       `json:"total"`
}

// saveInsight stores the advisor response for the user's history. A
// failed save only gets logged, the suggestion is still served.
func (handler *Handler) saveInsight(ctx context.Context, userID int, insightType string, content any, metadata string) {
	contentBytes, err := json.Marshal(content)
	if err != nil {
		log.Errorf("save insight, marshal content: %s", err)
		return
	}
	if _, err := handler.insights.Add(ctx, Insight{
		UserID:    userID,
		Type:      insightType,
		Content:   string(contentBytes),
		Metadata:  metadata,
		CreatedAt: handler.now(),
	}); err != nil {
		log.Errorf("save insight [%s] for user %d: %s", insightType, userID, err)
	}
}
