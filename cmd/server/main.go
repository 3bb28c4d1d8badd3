package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quizclash/internal/api"
	"quizclash/internal/api/handler"
	"quizclash/internal/app/service"
	"quizclash/internal/common/security"
	"quizclash/internal/domain/repository"
	"quizclash/internal/platform/config"
	"quizclash/internal/platform/database"
	"quizclash/internal/platform/queue"
	"quizclash/internal/realtime"

	"github.com/lmittmann/tint"
)

func main() {
	config.Load()
	security.InitJWT()

	logger := slog.New(tint.NewHandler(os.Stdout, &tint.Options{Level: slog.LevelDebug}))
	slog.SetDefault(logger)

	database.Connect()
	defer database.Close()
	logger.Info("database connected")

	queue.ConnectRedis()
	defer queue.CloseRedis()
	logger.Info("redis connected")

	userRepo := repository.NewPgUserRepository(database.DB)
	quizRepo := repository.NewPgQuizRepository(database.DB)
	resultRepo := repository.NewPgResultRepository(database.DB)
	challengeRepo := repository.NewPgChallengeRepository(database.DB)

	notifier := queue.NewNotifier(queue.RDB)

	authService := service.NewAuthService(userRepo)
	challengeService := service.NewChallengeService(
		challengeRepo, userRepo, quizRepo, resultRepo, notifier, database.DB, logger)

	hub := realtime.NewHub(logger)
	sessions := realtime.NewSessionRegistry()

	subCtx, subCancel := context.WithCancel(context.Background())
	defer subCancel()
	go hub.RunSubscriber(subCtx, notifier.Subscribe(subCtx))
	logger.Info("challenge event subscriber started")

	authHandler := handler.NewAuthHandler(authService)
	challengeHandler := handler.NewChallengeHandler(challengeService)
	realtimeHandler := handler.NewRealtimeHandler(
		logger, hub, sessions, challengeService, quizRepo, resultRepo, notifier)

	router := api.NewRouter(authHandler, challengeHandler, realtimeHandler)

	server := &http.Server{
		Addr:        ":" + config.AppConfig.APIPort,
		Handler:     router,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("server starting", "port", config.AppConfig.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v\n", config.AppConfig.APIPort, err)
		}
	}()

	<-stop

	logger.Info("shutting down server")
	subCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server shutdown failed: %v", err)
	}
	logger.Info("server stopped gracefully")
}
