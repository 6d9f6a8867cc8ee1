package test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (s *IntegrationTestSuite) TestRegisterAndLogin() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	authResp, creds := registerTestUser(ctx, t)

	t.Run("login with fresh creds", func(t *testing.T) {
		loginResp := doLogin(ctx, t, creds.Email, creds.Password)
		assert.Equal(t, authResp.UserID, loginResp.UserID)
		assert.NotEqual(t, authResp.Token, loginResp.Token)
	})

	t.Run("wrong password", func(t *testing.T) {
		loginReqJson, err := json.Marshal(map[string]string{
			"email":    creds.Email,
			"password": "bad-password",
		})
		require.NoError(t, err)

		req, err := http.NewRequestWithContext(ctx, "POST", fmt.Sprintf("%s/a/login", serverEndpoint), bytes.NewBuffer(loginReqJson))
		require.NoError(t, err)
		req.Header.Set("User-Agent", "test-agent")
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.httpClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)

		respBytes, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, "error, wrong credentials", strings.TrimSpace(string(respBytes)))
	})

	t.Run("email taken", func(t *testing.T) {
		regReqJson, err := json.Marshal(registerRequest{
			Email:    creds.Email,
			Name:     "Somebody Else",
			Password: "another-pass-123",
		})
		require.NoError(t, err)

		req, err := http.NewRequestWithContext(ctx, "POST", fmt.Sprintf("%s/a/register", serverEndpoint), bytes.NewBuffer(regReqJson))
		require.NoError(t, err)
		req.Header.Set("User-Agent", "test-agent")
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.httpClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("logout kills the session", func(t *testing.T) {
		loginResp := doLogin(ctx, t, creds.Email, creds.Password)

		req, err := http.NewRequestWithContext(ctx, "GET", fmt.Sprintf("%s/a/logout", serverEndpoint), nil)
		require.NoError(t, err)
		req.Header.Set("User-Agent", "test-agent")
		req.Header.Set("X-LIFTLOG-TOKEN", loginResp.Token)

		resp, err := s.httpClient.Do(req)
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close())
		require.Equal(t, http.StatusOK, resp.StatusCode)

		// the dead token gets rejected now
		req, err = http.NewRequestWithContext(ctx, "GET", fmt.Sprintf("%s/me", serverEndpoint), nil)
		require.NoError(t, err)
		req.Header.Set("User-Agent", "test-agent")
		req.Header.Set("X-LIFTLOG-TOKEN", loginResp.Token)

		resp, err = s.httpClient.Do(req)
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close())
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func (s *IntegrationTestSuite) TestProfile() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	authResp, creds := registerTestUser(ctx, t)

	getProfile := func(t *testing.T) map[string]any {
		req, err := http.NewRequestWithContext(ctx, "GET", fmt.Sprintf("%s/me", serverEndpoint), nil)
		require.NoError(t, err)
		req.Header.Set("User-Agent", "test-agent")
		req.Header.Set("X-LIFTLOG-TOKEN", authResp.Token)

		resp, err := s.httpClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var profile map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&profile))
		return profile
	}

	t.Run("get fresh profile", func(t *testing.T) {
		profile := getProfile(t)
		assert.Equal(t, creds.Email, profile["email"])
		assert.Equal(t, creds.Name, profile["name"])
		assert.Nil(t, profile["age"])
	})

	t.Run("update profile", func(t *testing.T) {
		updateJson := `{"age": 31, "weightKg": 82.5, "fitnessGoal": "hypertrophy", "healthNotes": "sore lower back"}`
		req, err := http.NewRequestWithContext(ctx, "PATCH", fmt.Sprintf("%s/me", serverEndpoint), strings.NewReader(updateJson))
		require.NoError(t, err)
		req.Header.Set("User-Agent", "test-agent")
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-LIFTLOG-TOKEN", authResp.Token)

		resp, err := s.httpClient.Do(req)
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close())
		require.Equal(t, http.StatusOK, resp.StatusCode)

		profile := getProfile(t)
		assert.Equal(t, float64(31), profile["age"])
		assert.Equal(t, 82.5, profile["weightKg"])
		assert.Equal(t, "hypertrophy", profile["fitnessGoal"])
		// untouched fields stay as they were
		assert.Equal(t, creds.Name, profile["name"])
	})

	t.Run("no token", func(t *testing.T) {
		req, err := http.NewRequestWithContext(ctx, "GET", fmt.Sprintf("%s/me", serverEndpoint), nil)
		require.NoError(t, err)
		req.Header.Set("User-Agent", "test-agent")

		resp, err := s.httpClient.Do(req)
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close())
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func (s *IntegrationTestSuite) TestLoginRateLimiting() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// simulate a login brute force attack; config allows
	// 10 login attempts per minute, the 11th gets 429
	loginReqJson, err := json.Marshal(map[string]string{
		"email":    "nobody@example.com",
		"password": "bad-pass",
	})
	require.NoError(t, err)

	for i := 1; i <= 15; i++ {
		req, err := http.NewRequestWithContext(ctx, "POST", fmt.Sprintf("%s/a/login", serverEndpoint), bytes.NewBuffer(loginReqJson))
		require.NoError(t, err)
		req.Header.Set("User-Agent", "test-agent")
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.httpClient.Do(req)
		require.NoError(t, err)

		if i <= 10 {
			require.Equal(t, http.StatusBadRequest, resp.StatusCode, "iteration: %d", i)
		} else {
			require.Equal(t, http.StatusTooManyRequests, resp.StatusCode, "iteration: %d", i)
			respBytes, err := io.ReadAll(resp.Body)
			require.NoError(t, err, "iteration: %d", i)
			assert.Contains(t, string(respBytes), "retry after", "iteration: %d", i)
		}

		assert.NoError(t, resp.Body.Close())
	}
}
