package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/gorilla/handlers"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	httpHandler "github.com/s-renren/Fireworks-Display-Online/internal/handler/http"
	wsHandler "github.com/s-renren/Fireworks-Display-Online/internal/handler/websocket"
	"github.com/s-renren/Fireworks-Display-Online/internal/hub"
	gormpersistence "github.com/s-renren/Fireworks-Display-Online/internal/infra/persistence/gorm"
	"github.com/s-renren/Fireworks-Display-Online/internal/infra/persistence/memory"
	"github.com/s-renren/Fireworks-Display-Online/internal/infra/setup"
	redisstate "github.com/s-renren/Fireworks-Display-Online/internal/infra/state/redis"
	"github.com/s-renren/Fireworks-Display-Online/internal/metrics"
	"github.com/s-renren/Fireworks-Display-Online/internal/middleware"
	"github.com/s-renren/Fireworks-Display-Online/internal/repository"
	"github.com/s-renren/Fireworks-Display-Online/internal/service"
	"github.com/s-renren/Fireworks-Display-Online/internal/tasks"
	"github.com/s-renren/Fireworks-Display-Online/internal/worker"
)

// App holds every long-lived component.
type App struct {
	Config      *Config
	Log         *logrus.Logger
	DB          *gorm.DB // nil with the memory driver
	RedisClient *redis.Client
	AsynqClient *asynq.Client
	AsynqServer *worker.WorkerServer
	Scheduler   *asynq.Scheduler
	Hub         *hub.Hub
	HttpServer  *http.Server
	Metrics     *metrics.Metrics

	stopHub context.CancelFunc
}

// NewApp loads the configuration and wires the application.
func NewApp() (*App, error) {
	cfg, err := LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return nil, err
	}

	log := NewLogger(cfg)
	log.Info("Configuration loaded successfully")

	log.Info("Initializing infrastructure...")
	var (
		db         *gorm.DB
		transactor repository.Transactor
		userRepo   repository.UserRepository
	)
	switch cfg.StorageDriver {
	case setup.DriverMemory:
		store := memory.NewStore()
		transactor, userRepo = store, store.Users()
		log.Warn("Using the in-memory store; state is lost on restart")
	default:
		if db, err = setup.InitDB(cfg.DB); err != nil {
			return nil, fmt.Errorf("failed to init DB: %w", err)
		}
		if err = setup.MigrateDB(db); err != nil {
			return nil, fmt.Errorf("failed to migrate DB: %w", err)
		}
		transactor, userRepo = gormpersistence.NewGormTransactor(db), gormpersistence.NewGormUserRepository(db)
		log.WithField("driver", cfg.StorageDriver).Info("Database initialized and migrated")
	}

	redisClient, err := setup.InitRedis(context.Background(), cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("failed to init Redis: %w", err)
	}
	redisClientOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
	asynqClient := asynq.NewClient(redisClientOpt)
	eventBus := redisstate.NewRoomEventBus(redisClient, cfg.KeyPrefix)
	m := metrics.New()
	log.Info("Infrastructure initialized successfully")

	authService, err := service.NewAuthService(userRepo, cfg.JWTSecret, cfg.JWTExpiryHours)
	if err != nil {
		return nil, fmt.Errorf("failed to create AuthService: %w", err)
	}
	roomService := service.NewRoomService(transactor, tasks.NewEventDispatcher(asynqClient), m)

	hubInstance := hub.NewHub(eventBus)
	workerServer := worker.NewWorkerServer(redisClientOpt, cfg.WorkerConcurrency, eventBus, roomService, m, log)

	router := NewRouter(cfg, log, Routes{
		Auth:      httpHandler.NewAuthHandler(authService),
		Rooms:     httpHandler.NewRoomHandler(roomService, authService),
		WebSocket: wsHandler.NewWebSocketHandler(hubInstance, roomService, originChecker(cfg.CORSAllowedOrigins)),
		Metrics:   m.Handler(),
		RateLimit: middleware.RateLimit(redisClient, cfg.KeyPrefix, cfg.RateLimitMax, cfg.RateLimitWindow),
	})

	cors := handlers.CORS(
		handlers.AllowedOrigins(cfg.CORSAllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-Requested-With"}),
		handlers.AllowCredentials(),
	)
	httpServer := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           cors(router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info("Application assembled successfully")
	return &App{
		Config:      cfg,
		Log:         log,
		DB:          db,
		RedisClient: redisClient,
		AsynqClient: asynqClient,
		AsynqServer: workerServer,
		Scheduler:   asynq.NewScheduler(redisClientOpt, &asynq.SchedulerOpts{Location: time.UTC}),
		Hub:         hubInstance,
		HttpServer:  httpServer,
		Metrics:     m,
	}, nil
}

// NewLogger builds the application logger: JSON in production, text otherwise.
func NewLogger(cfg *Config) *logrus.Logger {
	log := logrus.New()
	if cfg.AppEnv == "production" {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	log.SetOutput(os.Stdout)

	// Services log through the package-level logger.
	logrus.SetFormatter(log.Formatter)
	logrus.SetLevel(level)
	logrus.SetOutput(os.Stdout)
	return log
}

// Routes are the handlers mounted by NewRouter.
type Routes struct {
	Auth      *httpHandler.AuthHandler
	Rooms     *httpHandler.RoomHandler
	WebSocket *wsHandler.WebSocketHandler
	Metrics   http.Handler
	RateLimit gin.HandlerFunc // optional
}

// NewRouter builds the gin engine.
func NewRouter(cfg *Config, log *logrus.Logger, r Routes) *gin.Engine {
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(log))

	router.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"message": "pong"}) })
	if r.Metrics != nil {
		router.GET("/metrics", gin.WrapH(r.Metrics))
	}

	api := router.Group("/api")
	if r.RateLimit != nil {
		api.Use(r.RateLimit)
	}
	authRoutes := api.Group("/auth")
	{
		authRoutes.POST("/register", r.Auth.Register)
		authRoutes.POST("/login", r.Auth.Login)
	}
	r.Rooms.RegisterRoutes(api.Group("/rooms", middleware.Auth(cfg.JWTSecret)))

	if r.WebSocket != nil {
		router.GET("/ws/rooms/:roomId/events", middleware.Auth(cfg.JWTSecret), r.WebSocket.HandleRoomEvents)
	}
	return router
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}

// Start launches the hub, the worker, the scheduler and the HTTP server.
func (a *App) Start() {
	hubCtx, cancel := context.WithCancel(context.Background())
	a.stopHub = cancel
	go a.Hub.Run(hubCtx)

	go a.AsynqServer.Start()
	a.Log.Info("Asynq worker server routine started")

	a.registerPeriodicTasks()

	go func() {
		a.Log.Infof("HTTP server starting to listen on %s", a.HttpServer.Addr)
		if err := a.HttpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Log.Fatalf("Failed to start HTTP server: %v", err)
		}
		a.Log.Info("HTTP server stopped listening.")
	}()
}

func (a *App) registerPeriodicTasks() {
	schedule := a.Config.OccupancySchedule
	entryID, err := a.Scheduler.Register(schedule, tasks.NewRoomOccupancyTask())
	if err != nil {
		a.Log.Errorf("Could not register periodic occupancy task: %v", err)
		return
	}
	a.Log.Infof("Periodic occupancy task registered with schedule '%s' (EntryID: %s)", schedule, entryID)

	if err := a.Scheduler.Start(); err != nil {
		a.Log.Errorf("Asynq scheduler failed to start: %v", err)
		return
	}
	a.Log.Info("Asynq scheduler started")
}

// Shutdown stops every component in reverse dependency order.
func (a *App) Shutdown() {
	a.Log.Info("Shutting down application...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.HttpServer.Shutdown(ctx); err != nil {
		a.Log.Errorf("Error shutting down HTTP server: %v", err)
	} else {
		a.Log.Info("HTTP server shut down gracefully.")
	}

	if a.stopHub != nil {
		a.stopHub()
	}
	if a.Scheduler != nil {
		a.Scheduler.Shutdown()
	}
	if a.AsynqServer != nil {
		a.AsynqServer.Shutdown()
	}
	if a.AsynqClient != nil {
		if err := a.AsynqClient.Close(); err != nil {
			a.Log.Errorf("Error closing Asynq client: %v", err)
		}
	}
	if a.RedisClient != nil {
		if err := a.RedisClient.Close(); err != nil {
			a.Log.Errorf("Error closing Redis connection: %v", err)
		}
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				a.Log.Errorf("Error closing database connection: %v", err)
			}
		}
	}

	a.Log.Info("Application shutdown complete.")
}

// LoggerMiddleware logs one line per request.
func LoggerMiddleware(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		c.Next()

		statusCode := c.Writer.Status()
		path := c.Request.URL.Path
		if query := c.Request.URL.Query(); len(query) > 0 {
			if query.Has("token") {
				query.Set("token", "REDACTED")
			}
			path = path + "?" + query.Encode()
		}
		entry := log.WithFields(logrus.Fields{
			"status_code": statusCode,
			"latency_ms":  time.Since(startTime).Milliseconds(),
			"client_ip":   c.ClientIP(),
			"method":      c.Request.Method,
			"path":        path,
		})

		if errorMessage := c.Errors.ByType(gin.ErrorTypePrivate).String(); errorMessage != "" {
			entry.Error(errorMessage)
			return
		}
		switch {
		case statusCode >= 500:
			entry.Error("Server error")
		case statusCode >= 400:
			entry.Warn("Client error")
		default:
			entry.Info("Request handled")
		}
	}
}
