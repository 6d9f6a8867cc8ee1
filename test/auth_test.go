package test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/require"
)

type registerRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type authResponse struct {
	Token  string `json:"token"`
	UserID int    `json:"userId"`
}

// registerTestUser creates a fresh account and returns its session
// token, user id and credentials for follow-up logins.
func registerTestUser(ctx context.Context, t *testing.T) (authResponse, registerRequest) {
	t.Helper()

	regReq := registerRequest{
		Email:    gofakeit.Email(),
		Name:     gofakeit.Name(),
		Password: "str0ng-test-pass",
	}
	regReqJson, err := json.Marshal(regReq)
	require.NoError(t, err)

	req, err := http.NewRequestWithContext(
		ctx,
		"POST", fmt.Sprintf("%s/a/register", serverEndpoint),
		bytes.NewBuffer(regReqJson),
	)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "test-agent")
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NotEmpty(t, respBytes)

	var authResp authResponse
	require.NoError(t, json.Unmarshal(respBytes, &authResp))
	require.NotEmpty(t, authResp.Token)
	require.NotZero(t, authResp.UserID)

	return authResp, regReq
}

func doLogin(ctx context.Context, t *testing.T, email, password string) authResponse {
	t.Helper()

	loginReqJson, err := json.Marshal(map[string]string{
		"email":    email,
		"password": password,
	})
	require.NoError(t, err)

	req, err := http.NewRequestWithContext(
		ctx,
		"POST", fmt.Sprintf("%s/a/login", serverEndpoint),
		bytes.NewBuffer(loginReqJson),
	)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "test-agent")
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var authResp authResponse
	require.NoError(t, json.Unmarshal(respBytes, &authResp))
	require.NotEmpty(t, authResp.Token)

	return authResp
}
