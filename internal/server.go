package internal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/IBM/pgxpoolprometheus"
	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redis_rate/v9"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/liftlog/liftlog/internal/activities"
	"github.com/liftlog/liftlog/internal/auth"
	"github.com/liftlog/liftlog/internal/coach"
	"github.com/liftlog/liftlog/internal/config"
	"github.com/liftlog/liftlog/internal/db"
	"github.com/liftlog/liftlog/internal/exercises"
	"github.com/liftlog/liftlog/internal/middleware"
	"github.com/liftlog/liftlog/internal/records"
	"github.com/liftlog/liftlog/internal/telemetry/metrics"
	"github.com/liftlog/liftlog/internal/telemetry/tracing"
	"github.com/liftlog/liftlog/internal/users"
	"github.com/liftlog/liftlog/internal/workouts"
	"github.com/liftlog/liftlog/pkg"
)

type Server struct {
	httpServer        *http.Server
	metricsHttpServer *http.Server
	versionInfo       string

	config  *config.Config
	dbPool  *pgxpool.Pool
	advisor *coach.Advisor

	redisClient *redis.Client
	authService *auth.Service

	// metrics
	metricsManager *metrics.Manager
	promRegistry   *prometheus.Registry
	otelShutdown   func()
}

type NewServerParams struct {
	Config                  *config.Config
	GeminiAPIKey            string
	VersionInfo             string
	RedisPassword           string
	HoneycombTracingEnabled bool
}

func NewServer(
	ctx context.Context,
	params NewServerParams,
) (*Server, error) {
	dbPool, err := db.NewDBPool(ctx, db.NewDBPoolParams{
		DBHost:         params.Config.PostgresHost,
		DBPort:         params.Config.PostgresPort,
		DBName:         params.Config.PostgresDBName,
		TracingEnabled: params.HoneycombTracingEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("new db pool: %w", err)
	}

	if err := dbPool.Ping(ctx); err != nil {
		log.Warnf("failed to ping db: %s", err)
	}

	pgxpoolCollector := pgxpoolprometheus.NewCollector(
		dbPool,
		map[string]string{"db_name": "liftlog_db"},
	)
	promRegistry := metrics.SetupPrometheus(pgxpoolCollector)
	metricsManager := metrics.NewManager("liftlog", "backend", promRegistry)
	metricsManager.GaugeLifeSignal.Set(0)

	rdb := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(params.Config.RedisHost, params.Config.RedisPort),
		Password: params.RedisPassword,
		DB:       0, // use default DB
	})

	rdbStatus := rdb.Ping(ctx)
	if err := rdbStatus.Err(); err != nil {
		log.Errorf("--> failed to ping redis: %s", err)
	} else {
		log.Debugf("redis ping: %s", rdbStatus.Val())
	}

	authService := auth.NewService(auth.DefaultTTL, rdb)
	go func() {
		for range time.Tick(time.Hour * 8) {
			authService.ScanAndClean(ctx)
		}
	}()

	// use honeycomb distro to setup OpenTelemetry SDK
	otelShutdown, err := tracing.HoneycombSetup(params.HoneycombTracingEnabled, "liftlog-backend", rdb)
	if err != nil {
		return nil, err
	}

	tracedHttpClient := &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	return &Server{
		config:      params.Config,
		dbPool:      dbPool,
		versionInfo: params.VersionInfo,
		advisor: coach.NewAdvisor(
			params.Config.AdvisorBaseURL,
			params.GeminiAPIKey,
			params.Config.AdvisorModel,
			time.Duration(params.Config.AdvisorTimeoutSeconds)*time.Second,
			tracedHttpClient,
			metricsManager,
		),

		redisClient: rdb,
		authService: authService,

		// telemetry
		metricsManager: metricsManager,
		promRegistry:   promRegistry,
		otelShutdown:   otelShutdown,
	}, nil
}

func (s *Server) routerSetup() *mux.Router {
	r := mux.NewRouter()
	r.Use(otelmux.Middleware("main-router"))

	r.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		pkg.WriteTextResponseOK(w, "I'm OK, thanks ;)")
	}).Methods("GET").Name("root")
	r.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		pkg.WriteTextResponseOK(w, s.versionInfo)
	}).Methods("GET").Name("version")

	usersRepo := users.NewRepo(s.dbPool)
	exercisesRepo := exercises.NewRepo(s.dbPool)
	recordsRepo := records.NewRepo(s.dbPool)
	workoutsRepo := workouts.NewRepo(s.dbPool)

	reqRateLimiter := redis_rate.NewLimiter(s.redisClient)
	authHandler := users.NewAuthHandler(usersRepo, s.authService)
	authHandler.SetupRoutes(r, reqRateLimiter, s.config.LoginRateLimitAllowedPerMin, s.metricsManager)

	usersHandler := users.NewHandler(usersRepo)
	r.HandleFunc("/me", usersHandler.HandleGetProfile).Methods("GET", "OPTIONS").Name("get-profile")
	r.HandleFunc("/me", usersHandler.HandleUpdateProfile).Methods("PATCH", "OPTIONS").Name("update-profile")

	exercisesHandler := exercises.NewHandler(exercisesRepo)
	r.HandleFunc("/exercises", exercisesHandler.HandleList).Methods("GET", "OPTIONS").Name("list-exercises")
	r.HandleFunc("/exercises", exercisesHandler.HandleAdd).Methods("POST", "OPTIONS").Name("new-exercise")
	r.HandleFunc("/exercises/{id}", exercisesHandler.HandleGet).Methods("GET", "OPTIONS").Name("get-exercise")

	workoutsService := workouts.NewService(
		workoutsRepo, exercisesRepo, recordsRepo, usersRepo, s.metricsManager,
	)
	workoutsHandler := workouts.NewHandler(workoutsService)
	r.HandleFunc("/workouts", workoutsHandler.HandleList).Methods("GET", "OPTIONS").Name("list-workouts")
	r.HandleFunc("/workouts", workoutsHandler.HandleStart).Methods("POST", "OPTIONS").Name("start-workout")
	r.HandleFunc("/workouts/{id}/finish", workoutsHandler.HandleFinish).Methods("PUT", "OPTIONS").Name("finish-workout")
	r.HandleFunc("/workouts/{id}/sets", workoutsHandler.HandleListSets).Methods("GET", "OPTIONS").Name("list-sets")
	r.HandleFunc("/workouts/{id}/sets", workoutsHandler.HandleLogSet).Methods("POST", "OPTIONS").Name("log-set")

	recordsHandler := records.NewHandler(recordsRepo)
	r.HandleFunc("/records", recordsHandler.HandleList).Methods("GET", "OPTIONS").Name("list-records")
	r.HandleFunc("/records/exercise/{exerciseID}", recordsHandler.HandleHistory).Methods("GET", "OPTIONS").Name("records-history")

	coachHandler := coach.NewHandler(
		s.advisor,
		coach.NewInsightsRepo(s.dbPool),
		exercisesRepo,
		usersRepo,
		workoutsRepo,
	)
	r.HandleFunc("/coach/progression", coachHandler.HandleProgression).Methods("POST", "OPTIONS").Name("coach-progression")
	r.HandleFunc("/coach/equipment", coachHandler.HandleEquipmentAnalysis).Methods("POST", "OPTIONS").Name("coach-equipment")
	r.HandleFunc("/coach/insights", coachHandler.HandleListInsights).Methods("GET", "OPTIONS").Name("coach-insights")

	activitiesHandler := activities.NewHandler(activities.NewRepo(s.dbPool))
	r.HandleFunc("/activities", activitiesHandler.HandleList).Methods("GET", "OPTIONS").Name("list-activities")
	r.HandleFunc("/activities", activitiesHandler.HandleAdd).Methods("POST", "OPTIONS").Name("new-activity")
	r.HandleFunc("/activities/{id}/finish", activitiesHandler.HandleFinish).Methods("PUT", "OPTIONS").Name("finish-activity")

	// all the rest - unhandled paths
	r.HandleFunc("/{unknown}", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}).Methods("GET", "POST", "PUT", "OPTIONS").Name("unknown")

	authMiddleware := middleware.NewAuthMiddlewareHandler(s.authService)

	r.Use(middleware.PanicRecovery(s.metricsManager))
	r.Use(middleware.LogRequest())
	r.Use(middleware.RequestMetrics(s.metricsManager))
	r.Use(middleware.Cors())
	r.Use(authMiddleware.AuthCheck())
	r.Use(middleware.DrainAndCloseRequest())

	return r
}

func (s *Server) Serve(host string, port int) {
	router := s.routerSetup()

	ipAndPort := net.JoinHostPort(host, strconv.Itoa(port))
	s.httpServer = &http.Server{
		Handler:      router,
		Addr:         ipAndPort,
		WriteTimeout: time.Minute,
		ReadTimeout:  time.Minute,
		ConnState:    s.connStateMetrics,
	}

	metricsRouter := mux.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.HandlerFor(
		s.promRegistry,
		promhttp.HandlerOpts{},
	))
	metricsAddr := net.JoinHostPort(s.config.PrometheusMetricsHost, s.config.PrometheusMetricsPort)
	s.metricsHttpServer = &http.Server{
		Addr:    metricsAddr,
		Handler: metricsRouter,
	}

	go func() {
		log.Infof(" > server listening on: [%s]", ipAndPort)
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("main service, listen and serve: %s", err)
		}
	}()

	go func() {
		log.Debugf(" > metrics listening on: [%s]", metricsAddr)
		err := s.metricsHttpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("metrics service, listen and serve: %s", err)
		}
	}()

	s.metricsManager.GaugeLifeSignal.Set(1)
}

func (s *Server) GracefulShutdown() {
	log.Debug("graceful shutdown initiated ...")

	s.metricsManager.GaugeLifeSignal.Set(0)

	s.otelShutdown()
	log.Trace("otel shut down ...")

	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			log.Errorf("failed to close redis client conn: %s", err)
		}
	}

	if s.dbPool != nil {
		log.Debugln("closing db pool ...")
		s.dbPool.Close() // blocking operation
		log.Debugln("db pool closed")
	}

	maxWaitDuration := time.Second * 15
	ctx, timeoutCancel := context.WithTimeout(context.Background(), maxWaitDuration)
	defer timeoutCancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Error(" >>> failed to gracefully shutdown http server")
	}
	log.Warnln("server shut down")

	if err := s.metricsHttpServer.Shutdown(ctx); err != nil {
		log.Error(" >>> failed to gracefully shutdown metrics http server")
	}
	log.Warnln("metrics server shut down")
}

func (s *Server) connStateMetrics(_ net.Conn, state http.ConnState) {
	switch state {
	case http.StateNew:
		s.metricsManager.GaugeRequests.Add(1)
	case http.StateClosed:
		s.metricsManager.GaugeRequests.Add(-1)
	default:
		// do nothing
	}
}
