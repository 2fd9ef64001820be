package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"quizzify_backend/internal/config"
	"quizzify_backend/internal/controller"
	"quizzify_backend/internal/repository"
	"quizzify_backend/internal/service"
	"quizzify_backend/internal/util"
	"quizzify_backend/pkg/database"
	"quizzify_backend/pkg/logger"
	"quizzify_backend/pkg/monitoring"
	"quizzify_backend/pkg/security"
	"quizzify_backend/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config *config.Config
	Router *gin.Engine
	DB     *gorm.DB
	Redis  *redis.Client

	services *services
	limiter  *security.Limiter
	tracer   *sdktrace.TracerProvider

	mu              sync.Mutex
	configCallbacks []func(*config.Config)
}

type repositories struct {
	user      *repository.UserRepository
	progress  *repository.ProgressRepository
	quiz      *repository.QuizRepository
	flashcard *repository.FlashcardRepository
	homework  *repository.HomeworkRepository
}

type services struct {
	ai          *service.AIService
	storage     *service.StorageService
	auth        *service.AuthService
	user        *service.UserService
	entitlement *service.EntitlementService
	progress    *service.ProgressService
	quiz        *service.QuizService
	flashcard   *service.FlashcardService
	homework    *service.HomeworkService
}

type controllers struct {
	auth      *controller.AuthController
	user      *controller.UserController
	progress  *controller.ProgressController
	quiz      *controller.QuizController
	flashcard *controller.FlashcardController
	homework  *controller.HomeworkController
	health    *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.configCallbacks = append(a.configCallbacks, callback)
}

// ReloadConfig 由配置监听器调用；数据库等连接参数需重启生效
func (a *App) ReloadConfig(cfg *config.Config) {
	a.mu.Lock()
	callbacks := append([]func(*config.Config){}, a.configCallbacks...)
	a.mu.Unlock()

	for _, cb := range callbacks {
		cb(cfg)
	}
	logger.Log.Info("Configuration reloaded")
}

func (a *App) initRepositories(db *gorm.DB, rdb *redis.Client) *repositories {
	return &repositories{
		user:      repository.NewUserRepository(db),
		progress:  repository.NewProgressRepository(db, rdb),
		quiz:      repository.NewQuizRepository(db),
		flashcard: repository.NewFlashcardRepository(db),
		homework:  repository.NewHomeworkRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, db *gorm.DB) *services {
	s := &services{}

	s.ai = service.NewAIService(cfg.AI)
	s.storage = service.NewStorageService(cfg)
	s.auth = service.NewAuthService(repos.user, repos.progress, cfg)
	s.user = service.NewUserService(repos.user, repos.progress)
	s.entitlement = service.NewEntitlementService(repos.user, repos.progress)
	s.progress = service.NewProgressService(repos.user, repos.progress, repos.quiz)
	s.quiz = service.NewQuizService(db, repos.quiz, s.entitlement, s.progress, s.ai)
	s.flashcard = service.NewFlashcardService(db, repos.flashcard, repos.user, s.entitlement, s.ai)
	s.homework = service.NewHomeworkService(repos.homework, repos.user, s.entitlement, s.storage, s.ai)

	a.RegisterConfigCallback(func(c *config.Config) {
		s.ai.UpdateConfig(c.AI)
		logger.Log.Info("AI gateway settings updated", zap.String("model", c.AI.Model))
	})
	return s
}

func (a *App) initControllers(s *services, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		auth:      controller.NewAuthController(s.auth),
		user:      controller.NewUserController(s.user),
		progress:  controller.NewProgressController(s.progress, s.entitlement),
		quiz:      controller.NewQuizController(s.quiz),
		flashcard: controller.NewFlashcardController(s.flashcard),
		homework:  controller.NewHomeworkController(s.homework),
		health:    controller.NewHealthController(db, rdb),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())

	a.limiter = security.NewLimiter(cfg.RateLimit.MaxRequests, cfg.RateLimit.RateWindow())
	router.Use(a.limiter.Middleware())
	a.RegisterConfigCallback(func(c *config.Config) {
		a.limiter.Reconfigure(c.RateLimit.MaxRequests, c.RateLimit.RateWindow())
		logger.Log.Info("Rate limit updated", zap.Int("max_requests", c.RateLimit.MaxRequests))
	})

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// New 用已建立的连接组装应用，rdb 可为 nil
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client) *App {
	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
	}

	repos := app.initRepositories(db, rdb)
	app.services = app.initServices(repos, cfg, db)
	controllers := app.initControllers(app.services, db, rdb)

	monitoring.Init()

	router := gin.New()
	router.Use(gin.Recovery())
	app.Router = router

	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, controllers, cfg)

	if cfg.Storage.Type == util.StorageLocal {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}
	return app
}

// NewApp 初始化日志、数据库、Redis 和追踪后组装应用
func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)
	logger.Log.Info("Logger initialized successfully")

	if cfg.Server.Mode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.InitDB(&cfg.Database, cfg.Server.Mode == gin.DebugMode)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
	}

	// release 模式默认不自动迁移
	if cfg.ForceMigrate || cfg.Server.Mode != gin.ReleaseMode {
		if err := database.Migrate(db); err != nil {
			logger.Log.Fatal("Failed to migrate database", zap.Error(err))
		}
	}

	// Redis 仅作缓存，不可用时继续运行
	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Warn("Redis unavailable, progress cache disabled", zap.Error(err))
		rdb = nil
	}

	app := New(cfg, db, rdb)

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer(cfg.Tracing, cfg.Server.Mode)
		if err != nil {
			logger.Log.Error("Failed to initialize tracing", zap.Error(err))
		} else {
			app.tracer = tp
		}
	}
	return app
}

func (a *App) Run(ctx context.Context) {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go a.limiter.RunSweeper(ctx)

	srv := &http.Server{
		Addr:              ":" + a.Config.Server.Port,
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Error("listen failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Log.Info("Shutting down server...")

	// 等待进行中的请求结束（AI 调用可能较慢），最多 30 秒
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}

	if a.tracer != nil {
		if err := a.tracer.Shutdown(shutdownCtx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		a.Redis.Close()
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		sqlDB.Close()
	}

	logger.Log.Info("Server exiting")
	_ = logger.Log.Sync()
	_ = os.Stdout.Sync()
}
