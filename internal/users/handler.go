package users

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/liftlog/liftlog/internal/middleware"
	"github.com/liftlog/liftlog/internal/telemetry/tracing"
	"github.com/liftlog/liftlog/pkg"

	log "github.com/sirupsen/logrus"
)

//go:generate mockgen -source=$GOFILE -destination=users_mocks_test.go -package=users_test

type usersRepo interface {
	Get(ctx context.Context, id int) (*User, error)
	Update(ctx context.Context, user *User) error
}

type Handler struct {
	repo usersRepo
}

func NewHandler(repo usersRepo) *Handler {
	return &Handler{
		repo: repo,
	}
}

func (handler *Handler) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.users.profile")
	defer span.End()

	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	user, err := handler.repo.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			http.Error(w, "user not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to get user %d: %s", userID, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	userJson, err := json.Marshal(user)
	if err != nil {
		log.Errorf("failed to marshal user: %s", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, userJson, http.StatusOK)
}

func (handler *Handler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.users.update")
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

	var update ProfileUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		log.Tracef("update profile, unmarshal json params: %s", err)
		http.Error(w, "update profile failed", http.StatusBadRequest)
		return
	}

	user, err := handler.repo.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			http.Error(w, "user not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to get user %d: %s", userID, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	user.ApplyUpdate(update)

	if err := handler.repo.Update(ctx, user); err != nil {
		log.Errorf("failed to update user %d: %s", userID, err)
		http.Error(w, "error, failed to update profile", http.StatusInternalServerError)
		return
	}

	userJson, err := json.Marshal(user)
	if err != nil {
		log.Errorf("failed to marshal user: %s", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	log.Debugf("user %d profile updated", userID)
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, userJson, http.StatusOK)
}
