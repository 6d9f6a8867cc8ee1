package auth

import "context"

var _ Checker = (*Service)(nil)
var _ Checker = (*TestChecker)(nil)

// Checker resolves a session token to a user, as an explicit
// (userID, error) result instead of a callback.
type Checker interface {
	UserID(ctx context.Context, token string) (int, error)
}

// TestChecker is used in unit and dev testing instead of redis-backed sessions.
type TestChecker struct {
	Tokens map[string]int
}

func NewTestChecker() *TestChecker {
	return &TestChecker{Tokens: make(map[string]int)}
}

func (tc *TestChecker) UserID(_ context.Context, token string) (int, error) {
	userID, ok := tc.Tokens[token]
	if !ok {
		return 0, ErrNotLoggedIn
	}
	return userID, nil
}
