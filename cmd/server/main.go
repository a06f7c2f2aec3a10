package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"graderservice/internal/access"
	"graderservice/internal/autograde"
	"graderservice/internal/cache"
	"graderservice/internal/config"
	"graderservice/internal/data"
	"graderservice/internal/db"
	"graderservice/internal/gitproto"
	"graderservice/internal/gitrepo"
	"graderservice/internal/handler"
	"graderservice/internal/identity"
	"graderservice/internal/kafka"
	"graderservice/internal/lifecycle"
	"graderservice/internal/logging"
	"graderservice/internal/middleware"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	zapLogger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	logger := logging.New(zapLogger)
	defer func() { _ = logger.Sync() }()

	cfg, err := config.New()
	if err != nil {
		logger.Fatal(ctx, "cannot create config", zap.Error(err))
	}

	pool, err := db.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal(ctx, "cannot connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	redisConn := redis.NewClient(&redis.Options{
		Addr: cfg.RedisURL,
	})
	defer redisConn.Close()
	redisCache := cache.NewRedisCache(redisConn)

	producer, err := kafka.NewProducer(kafka.Config{Brokers: cfg.KafkaBrokers})
	if err != nil {
		logger.Fatal(ctx, "cannot create kafka producer", zap.Error(err))
	}
	defer producer.Close()

	lectureRepo := data.NewLectureRepository(pool)
	assignmentRepo := data.NewAssignmentRepository(pool)
	submissionRepo := data.NewSubmissionRepository(pool)
	roleRepo := cache.NewCachedRoleRepository(data.NewRoleRepository(pool), redisCache, cfg.RoleCacheTTL)

	resolver, err := gitrepo.NewResolver(cfg.GitRoot, cfg.GitDefaultBranch, lectureRepo, assignmentRepo, logger)
	if err != nil {
		logger.Fatal(ctx, "cannot open git root", zap.Error(err))
	}
	gate := access.NewGate(roleRepo, logger)
	tasks := autograde.NewGate(redisCache, producer, cfg.AutogradeTopic, cfg.AutogradeClaimTTL, logger)
	coordinator := lifecycle.NewCoordinator(assignmentRepo, submissionRepo, tasks, logger)

	runner := gitproto.NewRunner(cfg.GitBinary, cfg.TransferIdleTimeout, cfg.MaxConcurrentTransfers, logger)
	gitHandler := handler.NewGitHandler(resolver, gate,
		gitproto.NewSmartServer(runner, logger),
		gitproto.NewDumbServer(logger),
		coordinator, logger)
	assignmentHandler := handler.NewAssignmentHandler(resolver, gate, coordinator, submissionRepo)

	authMiddleware := middleware.NewAuthMiddleware(identity.NewTokenAuthenticator(cfg.JWTSecret), cfg.AuthRealm)
	r := chi.NewRouter()
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/lectures/{lecture_code}/assignments/{assignment_name}", func(r chi.Router) {
		gitHandler.RegisterRoutes(r, authMiddleware)
	})

	r.Route("/api/lectures/{lecture_code}/assignments/{assignment_name}", func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler {
			return http.MaxBytesHandler(next, 1<<20)
		})
		assignmentHandler.RegisterRoutes(r, authMiddleware)
	})

	consumer := autograde.NewResultConsumer(
		kafka.NewReader(cfg.KafkaBrokers, cfg.KafkaGroupID, cfg.AutogradeResultTopic),
		coordinator, logger,
	)
	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error(ctx, "grading result consumer stopped", zap.Error(err))
		}
	}()

	port := fmt.Sprintf(":%d", cfg.HTTPPort)
	logger.Info(ctx, "Starting server",
		zap.String("port", port),
		zap.String("git_root", resolver.Root()),
	)

	// No write timeout: pack transfers are bounded by the idle timeout instead.
	srv := &http.Server{
		Addr:              port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal(ctx, "cannot start http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info(ctx, "Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "server forced to shutdown", zap.Error(err))
	}
	<-consumerDone
	logger.Info(ctx, "Server stopped")
}
