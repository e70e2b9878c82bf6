package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/linesmerrill/donation-checkin-api/api"
	"github.com/linesmerrill/donation-checkin-api/api/scheduler"
	"github.com/linesmerrill/donation-checkin-api/config"
	"github.com/linesmerrill/donation-checkin-api/databases"
	"github.com/linesmerrill/donation-checkin-api/models"
	"github.com/linesmerrill/donation-checkin-api/tokens"
	"github.com/linesmerrill/donation-checkin-api/verification"
)

// App stores the router and db connection, so it can be reused
type App struct {
	Router   *mux.Router
	Config   config.Config
	Hub      *Hub
	Limiter  api.RateLimiter
	dbHelper databases.DatabaseHelper
	client   databases.ClientHelper
	redis    *redis.Client
	sched    *scheduler.Scheduler
}

// New creates a new mux router and all the routes
func (a *App) New() *mux.Router {
	// setup go-guardian for middleware
	m := &api.MiddlewareDB{DB: databases.NewOperatorDatabase(a.dbHelper)}
	m.SetupGoGuardian()

	if a.Hub == nil {
		a.Hub = NewHub(nil)
	}
	if a.Limiter == nil {
		a.Limiter = api.NewLocalLimiter(a.Config.VerifyRatePerSecond)
	}
	requestTimeout := a.Config.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = 15 * time.Second
	}
	timeout := api.TimeoutMiddleware(requestTimeout)
	protected := func(h http.HandlerFunc) http.Handler {
		return timeout(m.Middleware(h))
	}

	metrics := api.GetMetrics()
	rdb := databases.NewRegistrationDatabase(a.dbHelper)
	reg := Registration{DB: rdb, Allocator: tokens.NewAllocator()}
	v := Verify{
		Engine:  verification.NewEngine(rdb, a.Config.VerifyTimeout),
		Limiter: a.Limiter,
		Hub:     a.Hub,
		Metrics: metrics,
	}
	feed := Feed{Hub: a.Hub, AllowedOrigins: a.Config.CORSAllowedOrigins}
	mh := MetricsHandler{Metrics: metrics}

	r := mux.NewRouter()
	r.Use(api.MetricsMiddleware)

	// healthchex
	r.HandleFunc("/health", a.healthCheckHandler).Methods("GET")

	apiCreate := r.PathPrefix("/api/v1").Subrouter()

	apiCreate.Handle("/auth/token", timeout(m.Middleware(http.HandlerFunc(m.CreateToken)))).Methods("POST")
	apiCreate.Handle("/auth/logout", protected(m.RevokeToken)).Methods("DELETE")

	apiCreate.Handle("/registrations", timeout(http.HandlerFunc(reg.CreateRegistrationHandler))).Methods("POST")
	apiCreate.Handle("/registrations/{registration_id}", protected(reg.RegistrationByIDHandler)).Methods("GET")
	apiCreate.Handle("/registrations/{registration_id}/qr", timeout(http.HandlerFunc(reg.RegistrationQRHandler))).Methods("GET")
	apiCreate.Handle("/events/{event_id}/registrations", protected(reg.EventRegistrationsHandler)).Methods("GET")
	// websocket upgrades cannot pass through the timeout writer
	apiCreate.Handle("/events/{event_id}/feed", bearerFromQuery(m.Middleware(http.HandlerFunc(feed.FeedHandler)))).Methods("GET")

	apiCreate.Handle("/verify/{token}", protected(v.LookupTokenHandler)).Methods("GET")
	apiCreate.Handle("/verify", protected(v.VerifyTokenHandler)).Methods("POST")

	apiCreate.Handle("/metrics", protected(mh.GetMetricsHandler)).Methods("GET")

	// swagger docs hosted at "/"
	r.PathPrefix("/").Handler(http.StripPrefix("/", http.FileServer(http.Dir("./docs/"))))
	return r
}

// Initialize is invoked by main to connect with the database and create a router
func (a *App) Initialize() error {
	client, err := databases.NewClient(&a.Config)
	if err != nil {
		// if we fail to create a new database client, then kill the pod
		zap.S().With(err).Error("failed to create new client")
		return err
	}

	a.client = client
	a.dbHelper = databases.NewDatabase(&a.Config, client)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	err = client.Connect(ctx)
	if err != nil {
		// if we fail to connect to the database, then kill the pod
		zap.S().With(err).Error("failed to connect to database")
		return err
	}
	zap.S().Info("donation-checkin-api has connected to the database")

	rdb := databases.NewRegistrationDatabase(a.dbHelper)
	if err := rdb.EnsureIndexes(ctx); err != nil {
		zap.S().Errorw("failed to ensure registration indexes", "error", err)
		return err
	}

	a.initializeRedis(ctx)

	a.sched = scheduler.NewScheduler(client, rdb)
	if err := a.sched.Start(a.Config.HealthCheckSchedule); err != nil {
		zap.S().Errorw("failed to start scheduler", "error", err)
		return err
	}

	// initialize api router
	a.initializeRoutes()
	return nil
}

// initializeRedis wires the shared rate limiter and feed relay. Without Redis
// New falls back to a per instance limiter and local broadcast.
func (a *App) initializeRedis(ctx context.Context) {
	if a.Config.RedisAddr == "" {
		zap.S().Info("REDIS_ADDR not set, using in-process rate limiting and feed")
		return
	}
	rc, err := api.NewRedisClient(ctx, a.Config.RedisAddr, a.Config.RedisPassword)
	if err != nil {
		zap.S().Warnw("redis unavailable, continuing without it", "error", err)
		return
	}
	a.redis = rc
	a.Limiter = api.NewRedisLimiter(rc, a.Config.VerifyRatePerSecond, time.Second)

	relay := NewRedisFeed(rc)
	hub := NewHub(relay)
	if err := relay.Run(context.Background(), hub); err != nil {
		zap.S().Warnw("feed relay unavailable, broadcasting locally", "error", err)
		hub = NewHub(nil)
	}
	a.Hub = hub
}

// Close stops background jobs and disconnects from the stores
func (a *App) Close(ctx context.Context) {
	if a.sched != nil {
		a.sched.Stop()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			zap.S().Warnw("failed to close redis client", "error", err)
		}
	}
	if a.client != nil {
		if err := a.client.Disconnect(ctx); err != nil {
			zap.S().Warnw("failed to disconnect from database", "error", err)
		}
	}
}

func (a *App) initializeRoutes() {
	a.Router = a.New()
}

func (a *App) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	resp := models.HealthCheckResponse{Alive: true}
	// the store job probes on a schedule, /health reports its last result
	if a.sched != nil {
		resp.Database = a.sched.Healthy()
	} else if a.client != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		resp.Database = a.client.Ping(ctx) == nil
	}
	writeJSON(w, http.StatusOK, resp)
}

// bearerFromQuery lets browser websocket clients, which cannot set headers,
// pass the bearer token as ?access_token=
func bearerFromQuery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			if t := r.URL.Query().Get("access_token"); t != "" {
				r.Header.Set("Authorization", "Bearer "+t)
			}
		}
		next.ServeHTTP(w, r)
	})
}
