package users

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/liftlog/liftlog/internal/middleware"
	"github.com/liftlog/liftlog/internal/telemetry/metrics"
	"github.com/liftlog/liftlog/internal/telemetry/tracing"
	"github.com/liftlog/liftlog/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

//go:generate mockgen -source=$GOFILE -destination=auth_handler_mocks_test.go -package=users_test

type accountsRepo interface {
	Add(ctx context.Context, user User) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
}

type sessions interface {
	NewSession(ctx context.Context, userID int, createdAt time.Time) (string, error)
	Logout(ctx context.Context, token string) error
}

// AuthHandler serves the register, login and logout endpoints.
type AuthHandler struct {
	repo     accountsRepo
	sessions sessions
}

func NewAuthHandler(repo accountsRepo, sessions sessions) *AuthHandler {
	return &AuthHandler{
		repo:     repo,
		sessions: sessions,
	}
}

func (handler *AuthHandler) SetupRoutes(
	mainRouter *mux.Router,
	rateLimiter middleware.RequestRateLimiter,
	allowedLoginsPerMin int,
	metricsManager *metrics.Manager,
) {
	loginSubrouter := mainRouter.PathPrefix("/a").Subrouter()
	loginSubrouter.
		HandleFunc("/register", handler.handleRegister).
		Methods("POST", "OPTIONS").Name("register")
	loginSubrouter.
		HandleFunc("/login", handler.handleLogin).
		Methods("POST", "OPTIONS").Name("login")
	loginSubrouter.
		HandleFunc("/logout", handler.handleLogout).
		Methods("GET", "OPTIONS").Name("logout")

	// rate limit the login-register endpoints to prevent abuse
	loginSubrouter.Use(middleware.RateLimit(rateLimiter, "login", allowedLoginsPerMin, metricsManager))
	loginSubrouter.Use(middleware.Cors())
}

type registerRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

func (handler *AuthHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "authHandler.register")
	defer span.End()

	if r.Method == http.MethodOptions {
		w.Header().Add("Allow", "POST, OPTIONS")
		w.WriteHeader(http.StatusOK)
		return
	}

	var registerReq registerRequest
	if err := json.NewDecoder(r.Body).Decode(&registerReq); err != nil {
		log.Errorf("register, unmarshal json params: %s", err)
		http.Error(w, "register failed", http.StatusBadRequest)
		return
	}

	if registerReq.Email == "" {
		http.Error(w, "error, email empty", http.StatusBadRequest)
		return
	}
	if registerReq.Name == "" {
		http.Error(w, "error, name empty", http.StatusBadRequest)
		return
	}
	if len(registerReq.Password) < 8 {
		http.Error(w, "error, password too short", http.StatusBadRequest)
		return
	}

	passwordHash, err := pkg.HashPassword(registerReq.Password)
	if err != nil {
		log.Errorf("register failed, hash password: %s", err)
		http.Error(w, "register failed", http.StatusInternalServerError)
		return
	}

	addedUser, err := handler.repo.Add(ctx, User{
		Email:        registerReq.Email,
		Name:         registerReq.Name,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
	})
	if err != nil {
		if pkg.IsUniqueViolationError(err) {
			http.Error(w, "error, email taken", http.StatusConflict)
			return
		}
		log.Errorf("register failed, add user: %s", err)
		http.Error(w, "register failed", http.StatusInternalServerError)
		return
	}

	token, err := handler.sessions.NewSession(ctx, addedUser.ID, time.Now())
	if err != nil {
		log.Errorf("register, generate token error: %s", err)
		http.Error(w, "generate token error", http.StatusInternalServerError)
		return
	}

	log.Tracef("new user registered: %d", addedUser.ID)
	pkg.WriteResponseBytes(
		w, pkg.ContentType.JSON,
		[]byte(fmt.Sprintf(`{"token": "%s", "userId": %d}`, token, addedUser.ID)),
		http.StatusCreated,
	)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (handler *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "authHandler.login")
	defer span.End()

	if r.Method == http.MethodOptions {
		w.Header().Add("Allow", "POST, OPTIONS")
		w.WriteHeader(http.StatusOK)
		return
	}

	var loginReq loginRequest
	if r.Header.Get("Content-Type") == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&loginReq); err != nil {
			log.Errorf("login, unmarshal json params: %s", err)
			http.Error(w, "login failed", http.StatusBadRequest)
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			log.Errorf("login failed, parse form error: %s", err)
			http.Error(w, "parse form error", http.StatusInternalServerError)
			return
		}
		loginReq = loginRequest{
			Email:    r.Form.Get("email"),
			Password: r.Form.Get("password"),
		}
	}

	if loginReq.Email == "" {
		http.Error(w, "error, email empty", http.StatusBadRequest)
		return
	}
	if loginReq.Password == "" {
		http.Error(w, "error, password empty", http.StatusBadRequest)
		return
	}

	user, err := handler.repo.GetByEmail(ctx, loginReq.Email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			log.Tracef("[email] failed login attempt for: %s", loginReq.Email)
			http.Error(w, "error, wrong credentials", http.StatusBadRequest)
			return
		}
		log.Errorf("login failed, get user: %s", err)
		http.Error(w, "login failed", http.StatusInternalServerError)
		return
	}

	if !pkg.CheckPasswordHash(loginReq.Password, user.PasswordHash) {
		log.Tracef("[password] failed login attempt for user: %d", user.ID)
		http.Error(w, "error, wrong credentials", http.StatusBadRequest)
		return
	}

	token, err := handler.sessions.NewSession(ctx, user.ID, time.Now())
	if err != nil {
		log.Errorf("login failed, generate token error: %s", err)
		http.Error(w, "generate token error", http.StatusInternalServerError)
		return
	}

	log.Tracef("new login success for user %d", user.ID)
	pkg.WriteJSONResponseOK(w, fmt.Sprintf(`{"token": "%s", "userId": %d}`, token, user.ID))
}

func (handler *AuthHandler) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "authHandler.logout")
	defer span.End()

	if r.Method == http.MethodOptions {
		w.Header().Add("Allow", "GET, OPTIONS")
		w.WriteHeader(http.StatusOK)
		return
	}

	authToken := r.Header.Get(middleware.AuthTokenHeader)
	if authToken == "" {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	if err := handler.sessions.Logout(ctx, authToken); err != nil {
		log.Tracef("[failed logout] => %s: %s", r.URL.Path, err)
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	log.Printf("logout for [%s] success", authToken)
	pkg.WriteTextResponseOK(w, "logged-out")
}
