package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/liftlog/liftlog/pkg"

	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultTTL       = 24 * 7 * time.Hour
	sessionKeyPrefix = "liftlog-session||"
	tokensSetKey     = "liftlog-sessions"
)

var ErrNotLoggedIn = errors.New("not logged in")

// Service issues and revokes opaque session tokens, stored in redis as
// "<user id>||<created at unix>" under the token key.
type Service struct {
	redisClient *redis.Client
	ttl         time.Duration
	// ability to inject random string generator func for tokens (for unit and dev testing)
	RandStringFunc func(s int) (string, error)
}

func NewService(ttl time.Duration, redisClient *redis.Client) *Service {
	return &Service{
		ttl:            ttl,
		redisClient:    redisClient,
		RandStringFunc: pkg.GenerateRandomString,
	}
}

func (s *Service) NewSession(ctx context.Context, userID int, createdAt time.Time) (string, error) {
	token, err := s.RandStringFunc(35)
	if err != nil {
		return "", err
	}

	sessionKey := sessionKeyPrefix + token
	sessionVal := fmt.Sprintf("%d||%d", userID, createdAt.Unix())
	if err := s.redisClient.Set(ctx, sessionKey, sessionVal, 0).Err(); err != nil {
		return "", err
	}

	// add token to the list of sessions
	if err := s.redisClient.SAdd(ctx, tokensSetKey, token).Err(); err != nil {
		return "", err
	}

	return token, nil
}

// UserID resolves a session token to the owning user. Returns ErrNotLoggedIn
// for unknown or expired tokens.
func (s *Service) UserID(ctx context.Context, token string) (int, error) {
	cmd := s.redisClient.Get(ctx, sessionKeyPrefix+token)
	if err := cmd.Err(); err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrNotLoggedIn
		}
		return 0, err
	}

	userID, createdAt, err := parseSessionValue(cmd.Val())
	if err != nil {
		return 0, err
	}

	if time.Since(createdAt) > s.ttl {
		return 0, ErrNotLoggedIn
	}

	return userID, nil
}

func (s *Service) Logout(ctx context.Context, token string) error {
	sessionKey := sessionKeyPrefix + token
	cmd := s.redisClient.Get(ctx, sessionKey)
	if err := cmd.Err(); err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrNotLoggedIn
		}
		return err
	}

	if err := s.redisClient.Del(ctx, sessionKey).Err(); err != nil {
		return err
	}

	// remove token from the list of sessions
	return s.redisClient.SRem(ctx, tokensSetKey, token).Err()
}

// ScanAndClean will run through all sessions, check the TTL, and clean them if old
func (s *Service) ScanAndClean(ctx context.Context) {
	cmd := s.redisClient.SMembers(ctx, tokensSetKey)
	if err := cmd.Err(); err != nil {
		log.Errorf("auth service, scan and clean, get sessions: %s", err)
		return
	}

	sessionTokens := cmd.Val()
	if len(sessionTokens) == 0 {
		log.Debugln("auth service, scan and clean abort, no sessions")
		return
	}

	log.Debugf("auth service, scan and clean [%d sessions] start ...", len(sessionTokens))
	var toRemove []string
	for _, token := range sessionTokens {
		cmd := s.redisClient.Get(ctx, sessionKeyPrefix+token)
		if err := cmd.Err(); err != nil {
			if errors.Is(err, redis.Nil) {
				// session key gone, drop the dangling set member
				toRemove = append(toRemove, token)
				continue
			}
			log.Errorf("auth service, scan and clean token %s: %s", token, err)
			continue
		}

		_, createdAt, err := parseSessionValue(cmd.Val())
		if err != nil {
			log.Errorf("auth service, scan and clean token %s: %s", token, err)
			continue
		}

		if time.Since(createdAt) > s.ttl {
			toRemove = append(toRemove, token)
		}
	}

	for _, token := range toRemove {
		if err := s.redisClient.Del(ctx, sessionKeyPrefix+token).Err(); err != nil {
			log.Errorf("auth service, clean token %s: %s", token, err)
			continue
		}
		if err := s.redisClient.SRem(ctx, tokensSetKey, token).Err(); err != nil {
			log.Errorf("auth service, clean token %s: %s", token, err)
		}
	}

	log.Debugf("auth service, scan and clean done, removed %d sessions", len(toRemove))
}

func parseSessionValue(val string) (userID int, createdAt time.Time, err error) {
	parts := strings.Split(val, "||")
	if len(parts) != 2 {
		return 0, time.Time{}, fmt.Errorf("malformed session value: %s", val)
	}
	userID, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("malformed session user id: %w", err)
	}
	createdAtUnix, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("malformed session created at: %w", err)
	}
	return userID, time.Unix(createdAtUnix, 0), nil
}
