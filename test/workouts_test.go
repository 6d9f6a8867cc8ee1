package test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/liftlog/liftlog/internal/exercises"
	"github.com/liftlog/liftlog/internal/records"
	"github.com/liftlog/liftlog/internal/workouts"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (s *IntegrationTestSuite) doAuthorizedRequest(
	ctx context.Context,
	token, method, path string,
	body any,
) *http.Response {
	t := s.T()
	t.Helper()

	var bodyReader io.Reader
	if body != nil {
		bodyJson, err := json.Marshal(body)
		require.NoError(t, err)
		bodyReader = bytes.NewReader(bodyJson)
	}

	req, err := http.NewRequestWithContext(ctx, method, serverEndpoint+path, bodyReader)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "test-agent")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-LIFTLOG-TOKEN", token)

	resp, err := s.httpClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeResponse[T any](t *testing.T, resp *http.Response, expectedStatus int) T {
	t.Helper()
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, expectedStatus, resp.StatusCode, "body: %s", respBytes)

	var decoded T
	require.NoError(t, json.Unmarshal(respBytes, &decoded))
	return decoded
}

func (s *IntegrationTestSuite) addExercise(ctx context.Context, token string, exercise exercises.Exercise) exercises.Exercise {
	resp := s.doAuthorizedRequest(ctx, token, "POST", "/exercises", exercise)
	return decodeResponse[exercises.Exercise](s.T(), resp, http.StatusCreated)
}

func intRef(i int) *int { return &i }

func (s *IntegrationTestSuite) TestWorkoutFlow() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	authResp, _ := registerTestUser(ctx, t)
	token := authResp.Token

	legPress := s.addExercise(ctx, token, exercises.Exercise{
		Name:         "Leg Press",
		Category:     exercises.CategoryLowerA,
		MuscleGroups: []string{"quads", "glutes"},
		Equipment:    "machine",
	})
	lateralRaise := s.addExercise(ctx, token, exercises.Exercise{
		Name:         "Cable Lateral Raise",
		Category:     exercises.CategoryUpperA,
		MuscleGroups: []string{"side delts"},
		Equipment:    "cable",
		IsUnilateral: true,
	})

	// exercise library is public
	t.Run("list exercises without token", func(t *testing.T) {
		req, err := http.NewRequestWithContext(ctx, "GET", serverEndpoint+"/exercises?category="+exercises.CategoryLowerA, nil)
		require.NoError(t, err)
		req.Header.Set("User-Agent", "test-agent")

		resp, err := s.httpClient.Do(req)
		require.NoError(t, err)
		listResp := decodeResponse[exercises.ListResponse](t, resp, http.StatusOK)
		require.Equal(t, 1, listResp.Total)
		assert.Equal(t, "Leg Press", listResp.Exercises[0].Name)
	})

	resp := s.doAuthorizedRequest(ctx, token, "POST", "/workouts", workouts.StartWorkoutRequest{Category: exercises.CategoryLowerA})
	workout := decodeResponse[workouts.Workout](t, resp, http.StatusCreated)
	require.NotZero(t, workout.ID)
	assert.Nil(t, workout.CompletedAt)

	t.Run("second active workout rejected", func(t *testing.T) {
		resp := s.doAuthorizedRequest(ctx, token, "POST", "/workouts", workouts.StartWorkoutRequest{Category: exercises.CategoryLowerA})
		require.NoError(t, resp.Body.Close())
		require.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	setsPath := fmt.Sprintf("/workouts/%d/sets", workout.ID)

	t.Run("first set is a record", func(t *testing.T) {
		resp := s.doAuthorizedRequest(ctx, token, "POST", setsPath, workouts.LogSetRequest{
			ExerciseID: legPress.ID,
			SetInput:   workouts.SetInput{Weight: 50, Reps: intRef(20)},
		})
		logResp := decodeResponse[workouts.LogSetResponse](t, resp, http.StatusCreated)
		assert.Equal(t, 1000.0, logResp.Metrics.Volume)
		assert.Equal(t, 20, logResp.Metrics.EffectiveReps)
		assert.True(t, logResp.Metrics.IsNewPR)
		assert.True(t, logResp.Set.IsPR)
		assert.Equal(t, 1, logResp.Set.SetNumber)
	})

	t.Run("higher volume beats the best", func(t *testing.T) {
		resp := s.doAuthorizedRequest(ctx, token, "POST", setsPath, workouts.LogSetRequest{
			ExerciseID: legPress.ID,
			SetInput:   workouts.SetInput{Weight: 55, Reps: intRef(20)},
		})
		logResp := decodeResponse[workouts.LogSetResponse](t, resp, http.StatusCreated)
		assert.Equal(t, 1100.0, logResp.Metrics.Volume)
		assert.True(t, logResp.Metrics.IsNewPR)
		assert.Equal(t, 2, logResp.Set.SetNumber)
	})

	t.Run("lower volume is no record", func(t *testing.T) {
		resp := s.doAuthorizedRequest(ctx, token, "POST", setsPath, workouts.LogSetRequest{
			ExerciseID: legPress.ID,
			SetInput:   workouts.SetInput{Weight: 50, Reps: intRef(15)},
		})
		logResp := decodeResponse[workouts.LogSetResponse](t, resp, http.StatusCreated)
		assert.Equal(t, 750.0, logResp.Metrics.Volume)
		assert.False(t, logResp.Metrics.IsNewPR)
	})

	t.Run("unilateral set counts the weaker side", func(t *testing.T) {
		resp := s.doAuthorizedRequest(ctx, token, "POST", setsPath, workouts.LogSetRequest{
			ExerciseID: lateralRaise.ID,
			SetInput:   workouts.SetInput{Weight: 10, LeftReps: intRef(10), RightReps: intRef(6)},
		})
		logResp := decodeResponse[workouts.LogSetResponse](t, resp, http.StatusCreated)
		assert.Equal(t, 6, logResp.Metrics.EffectiveReps)
		assert.Equal(t, 60.0, logResp.Metrics.Volume)
		assert.True(t, logResp.Metrics.IsNewPR, "first ever set of an exercise is a record")
	})

	t.Run("invalid set rejected", func(t *testing.T) {
		resp := s.doAuthorizedRequest(ctx, token, "POST", setsPath, workouts.LogSetRequest{
			ExerciseID: legPress.ID,
			SetInput:   workouts.SetInput{Weight: -5, Reps: intRef(10)},
		})
		require.NoError(t, resp.Body.Close())
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("unknown exercise rejected", func(t *testing.T) {
		resp := s.doAuthorizedRequest(ctx, token, "POST", setsPath, workouts.LogSetRequest{
			ExerciseID: 987654,
			SetInput:   workouts.SetInput{Weight: 50, Reps: intRef(10)},
		})
		require.NoError(t, resp.Body.Close())
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("list sets", func(t *testing.T) {
		resp := s.doAuthorizedRequest(ctx, token, "GET", setsPath, nil)
		setsResp := decodeResponse[workouts.ListSetsResponse](t, resp, http.StatusOK)
		require.Equal(t, 4, setsResp.Total)
	})

	resp = s.doAuthorizedRequest(ctx, token, "PUT", fmt.Sprintf("/workouts/%d/finish", workout.ID), nil)
	finished := decodeResponse[workouts.Workout](t, resp, http.StatusOK)
	require.NotNil(t, finished.CompletedAt)
	require.NotNil(t, finished.DurationMinutes)
	assert.Equal(t, 1000.0+1100.0+750.0+60.0, finished.TotalVolume)

	t.Run("no sets on a finished workout", func(t *testing.T) {
		resp := s.doAuthorizedRequest(ctx, token, "POST", setsPath, workouts.LogSetRequest{
			ExerciseID: legPress.ID,
			SetInput:   workouts.SetInput{Weight: 60, Reps: intRef(10)},
		})
		require.NoError(t, resp.Body.Close())
		require.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("records show current bests", func(t *testing.T) {
		resp := s.doAuthorizedRequest(ctx, token, "GET", "/records", nil)
		recordsResp := decodeResponse[records.ListResponse](t, resp, http.StatusOK)
		require.Equal(t, 2, recordsResp.Total)

		bestByExercise := make(map[int]float64)
		for _, record := range recordsResp.Records {
			bestByExercise[record.ExerciseID] = record.Volume
		}
		assert.Equal(t, 1100.0, bestByExercise[legPress.ID])
		assert.Equal(t, 60.0, bestByExercise[lateralRaise.ID])
	})

	t.Run("record history keeps the beaten best", func(t *testing.T) {
		resp := s.doAuthorizedRequest(ctx, token, "GET", fmt.Sprintf("/records/exercise/%d", legPress.ID), nil)
		historyResp := decodeResponse[records.ListResponse](t, resp, http.StatusOK)
		require.Len(t, historyResp.Records, 2)
		assert.Equal(t, 1100.0, historyResp.Records[0].Volume)
		assert.Equal(t, 1000.0, historyResp.Records[1].Volume)
	})

	t.Run("total volume matches persisted sets", func(t *testing.T) {
		var setVolumeSum float64
		require.NoError(t, s.DB.QueryRow(
			`SELECT COALESCE(SUM(weight * LEAST(COALESCE(reps, 2147483647), COALESCE(left_reps, 2147483647), COALESCE(right_reps, 2147483647))), 0)
				FROM workout_set WHERE workout_id = $1`,
			workout.ID,
		).Scan(&setVolumeSum))

		var totalVolume float64
		require.NoError(t, s.DB.QueryRow(
			`SELECT total_volume FROM workout WHERE id = $1`, workout.ID,
		).Scan(&totalVolume))

		assert.Equal(t, setVolumeSum, totalVolume)
	})

	t.Run("another user sees nothing", func(t *testing.T) {
		otherAuth, _ := registerTestUser(ctx, t)

		resp := s.doAuthorizedRequest(ctx, otherAuth.Token, "GET", "/workouts", nil)
		listResp := decodeResponse[workouts.ListResponse](t, resp, http.StatusOK)
		assert.Zero(t, listResp.Total)

		resp = s.doAuthorizedRequest(ctx, otherAuth.Token, "GET", setsPath, nil)
		require.NoError(t, resp.Body.Close())
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}
