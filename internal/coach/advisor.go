package coach

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/liftlog/liftlog/internal/telemetry/metrics"
	"github.com/liftlog/liftlog/internal/telemetry/tracing"
	"github.com/liftlog/liftlog/internal/users"
	"github.com/liftlog/liftlog/internal/workouts"

	"github.com/coocood/freecache"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/codes"
)

// ErrAdvisorUnavailable covers every way the coaching call can fail:
// network, timeout, quota, malformed model output. Callers fall back
// to "no suggestion available", it is never fatal to the logging flow.
var ErrAdvisorUnavailable = errors.New("advisor unavailable")

const (
	oneHour                 = 60 * 60
	progressionCacheExpire  = oneHour * 1
	progressionHistoryDepth = 5
)

type SuggestedSet struct {
	Weight float64 `json:"weight"`
	Reps   *int    `json:"reps,omitempty"`
	RepsL  *int    `json:"repsL,omitempty"`
	RepsR  *int    `json:"repsR,omitempty"`
}

type ProgressionSuggestion struct {
	Sets        []SuggestedSet `json:"sets"`
	Alternative string         `json:"alternative,omitempty"`
}

type EquipmentSuggestion struct {
	Name       string `json:"name"`
	MainMuscle string `json:"mainMuscle"`
	// Description lists primary and secondary muscles as HTML
	Description string `json:"description"`
	Tip         string `json:"tip"`
}

type ProgressionRequest struct {
	ExerciseName string
	IsUnilateral bool
	RecentSets   []workouts.WorkoutSet
	Profile      *users.User
}

// Advisor calls the generative model REST API and turns its output
// into typed suggestions. Every call is bounded by the configured
// timeout, a slow or broken model never hangs the caller.
type Advisor struct {
	baseURL        string // https://generativelanguage.googleapis.com
	apiKey         string
	model          string
	timeout        time.Duration
	cache          *freecache.Cache
	httpClient     *http.Client
	metricsManager *metrics.Manager
}

func NewAdvisor(
	baseURL, apiKey, model string,
	timeout time.Duration,
	httpClient *http.Client,
	metricsManager *metrics.Manager,
) *Advisor {
	megabyte := 1024 * 1024
	cacheSize := 10 * megabyte

	return &Advisor{
		baseURL:        baseURL,
		apiKey:         apiKey,
		model:          model,
		timeout:        timeout,
		cache:          freecache.NewCache(cacheSize),
		httpClient:     httpClient,
		metricsManager: metricsManager,
	}
}

// GetProgression asks the model for the next session's sets for one
// exercise. Responses are cached for an hour per (user, exercise).
func (a *Advisor) GetProgression(ctx context.Context, userID, exerciseID int, req ProgressionRequest) (_ *ProgressionSuggestion, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "advisor.progression")
	defer span.End()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, fmt.Sprintf("progression suggestion for: %s", req.ExerciseName))
		}
	}()

	cacheKey := fmt.Sprintf("progression::%d::%d", userID, exerciseID)
	if cachedBytes, err := a.cache.Get([]byte(cacheKey)); err == nil {
		log.Tracef("found progression for %s in cache", req.ExerciseName)
		suggestion := &ProgressionSuggestion{}
		if err = json.Unmarshal(cachedBytes, suggestion); err == nil {
			return suggestion, nil
		}
		log.Errorf("failed to unmarshal cached progression for %s: %s", req.ExerciseName, err)
	}

	prompt := progressionPrompt(req)
	responseText, err := a.generateContent(ctx, []part{{Text: prompt}})
	if err != nil {
		return nil, err
	}

	suggestion := &ProgressionSuggestion{}
	if err := json.Unmarshal(stripFences(responseText), suggestion); err != nil {
		return nil, fmt.Errorf("%w: unmarshal suggestion: %w", ErrAdvisorUnavailable, err)
	}

	if suggestionBytes, err := json.Marshal(suggestion); err == nil {
		if err := a.cache.Set([]byte(cacheKey), suggestionBytes, progressionCacheExpire); err != nil {
			log.Errorf("failed to cache progression for %s: %s", req.ExerciseName, err)
		}
	}

	return suggestion, nil
}

// AnalyzeEquipment identifies gym equipment on the given photos and
// proposes exercises for it. Never cached, every photo set is new.
func (a *Advisor) AnalyzeEquipment(ctx context.Context, images [][]byte) (_ []EquipmentSuggestion, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "advisor.equipment")
	defer span.End()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "equipment analyzed")
		}
	}()

	if len(images) == 0 {
		return nil, fmt.Errorf("%w: no images provided", ErrAdvisorUnavailable)
	}

	parts := []part{{Text: equipmentPrompt}}
	for _, img := range images {
		parts = append(parts, part{
			InlineData: &inlineData{
				MimeType: "image/jpeg",
				Data:     base64.StdEncoding.EncodeToString(img),
			},
		})
	}

	responseText, err := a.generateContent(ctx, parts)
	if err != nil {
		return nil, err
	}

	var suggestions []EquipmentSuggestion
	if err := json.Unmarshal(stripFences(responseText), &suggestions); err != nil {
		return nil, fmt.Errorf("%w: unmarshal suggestions: %w", ErrAdvisorUnavailable, err)
	}

	return suggestions, nil
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type generateContentRequest struct {
	Contents []struct {
		Parts []part `json:"parts"`
	} `json:"contents"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (a *Advisor) generateContent(ctx context.Context, parts []part) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	a.metricsManager.CounterAdvisorCalls.Inc()
	callStart := time.Now()
	defer func() {
		a.metricsManager.HistAdvisorCallDuration.Observe(time.Since(callStart).Seconds())
	}()

	var genReq generateContentRequest
	genReq.Contents = make([]struct {
		Parts []part `json:"parts"`
	}, 1)
	genReq.Contents[0].Parts = parts

	reqBytes, err := json.Marshal(genReq)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	apiURL := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", a.baseURL, a.model, a.apiKey)
	req, err := http.NewRequestWithContext(ctx, "POST", apiURL, bytes.NewReader(reqBytes))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		a.metricsManager.CounterAdvisorFailures.Inc()
		return "", fmt.Errorf("%w: http client do: %w", ErrAdvisorUnavailable, err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		a.metricsManager.CounterAdvisorFailures.Inc()
		return "", fmt.Errorf("%w: read response: %w", ErrAdvisorUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		a.metricsManager.CounterAdvisorFailures.Inc()
		return "", fmt.Errorf("%w: status %d: %s", ErrAdvisorUnavailable, resp.StatusCode, respBytes)
	}

	var genResp generateContentResponse
	if err := json.Unmarshal(respBytes, &genResp); err != nil {
		a.metricsManager.CounterAdvisorFailures.Inc()
		return "", fmt.Errorf("%w: unmarshal response: %w", ErrAdvisorUnavailable, err)
	}

	if len(genResp.Candidates) == 0 || len(genResp.Candidates[0].Content.Parts) == 0 {
		a.metricsManager.CounterAdvisorFailures.Inc()
		return "", fmt.Errorf("%w: no candidates in response", ErrAdvisorUnavailable)
	}

	return genResp.Candidates[0].Content.Parts[0].Text, nil
}

// stripFences removes the markdown code fences models like to wrap
// JSON output in, despite being told not to.
func stripFences(text string) []byte {
	text = strings.TrimSpace(text)
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	return []byte(strings.TrimSpace(text))
}

func progressionPrompt(req ProgressionRequest) string {
	var sb strings.Builder
	sb.WriteString("You are an expert fitness coach. ")

	if req.Profile != nil {
		profileJson, err := json.Marshal(map[string]any{
			"age":         req.Profile.Age,
			"weight":      req.Profile.WeightKg,
			"height":      req.Profile.HeightCm,
			"fitnessGoal": req.Profile.FitnessGoal,
			"healthNotes": req.Profile.HealthNotes,
			"experience":  req.Profile.Experience,
		})
		if err == nil {
			sb.WriteString(fmt.Sprintf("The user's profile is: %s. Pay close attention to any health notes. ", profileJson))
		}
	}

	recentSets := req.RecentSets
	if len(recentSets) > progressionHistoryDepth {
		recentSets = recentSets[:progressionHistoryDepth]
	}
	historyJson, _ := json.Marshal(recentSets)

	sb.WriteString(fmt.Sprintf(
		"Analyze their performance trend for the exercise %q. Their history is: %s. ",
		req.ExerciseName, historyJson,
	))
	sb.WriteString("Return your response as a single, minified JSON object containing one key: \"sets\". The value must be an array of objects. ")
	sb.WriteString("Do not include any other text, explanations, or markdown formatting. ")

	if req.IsUnilateral {
		sb.WriteString(`Each set object must have "weight", "repsL", and "repsR" keys. Example: {"sets":[{"weight":16,"repsL":10,"repsR":10}]}`)
	} else {
		sb.WriteString(`Each set object must have "weight" and "reps" keys. Example: {"sets":[{"weight":55,"reps":8}]}`)
	}

	if req.Profile != nil &&
		strings.Contains(strings.ToLower(req.Profile.HealthNotes), "back") &&
		containsAny(strings.ToLower(req.ExerciseName), "squat", "deadlift", "row") {
		sb.WriteString(` IMPORTANT: The user has a sore back. Prioritize safety. You may suggest lower weight, fewer reps, or a safer alternative exercise if appropriate. If suggesting an alternative, return it in the JSON under an "alternative" key.`)
	}

	return sb.String()
}

const equipmentPrompt = `You are an expert fitness coach creating an exercise library for a user based on photos of their gym.
Analyse the equipment in the following images. For the key pieces of equipment, generate a list of common and effective exercises.
For EACH exercise you identify, you MUST return a JSON object with the following exact keys: "name", "mainMuscle", "description", "tip".
- name: The name of the exercise (e.g., "Barbell Squat").
- mainMuscle: The primary muscle groups worked (e.g., "Quads, Glutes, Hamstrings").
- description: A list of the primary and secondary muscles worked, formatted as HTML.
- tip: A short, actionable "pro-tip".
Return your final response as a single, minified JSON array containing all the exercise objects. Do not include any other text, explanations, or markdown formatting.`

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
