package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/mihomelab/xiaoai-broadcast/adapters/llm"
	"github.com/mihomelab/xiaoai-broadcast/adapters/miai"
	"github.com/mihomelab/xiaoai-broadcast/adapters/news"
	"github.com/mihomelab/xiaoai-broadcast/domain/entities"
	"github.com/mihomelab/xiaoai-broadcast/internal/api"
	"github.com/mihomelab/xiaoai-broadcast/internal/auth"
	"github.com/mihomelab/xiaoai-broadcast/internal/playback"
	"github.com/mihomelab/xiaoai-broadcast/internal/tokenstore"
	"github.com/mihomelab/xiaoai-broadcast/usecase"
)

func main() {
	_ = godotenv.Load()

	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	secret, err := auth.SecretFromEnv()
	if err != nil {
		logger.Fatal("control API secret missing", zap.Error(err))
	}

	client, err := connectSpeaker(context.Background(), logger)
	if err != nil {
		logger.Fatal("failed to connect to speaker cloud", zap.Error(err))
	}

	playbackService := usecase.NewPlaybackService(client, playback.Config{}, logger)
	broadcaster := buildBroadcaster(playbackService, logger)

	// Create Echo instance
	e := echo.New()

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	api.InitRoutes(e, client, broadcaster, secret, logger)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Graceful shutdown
	go func() {
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Control server started", zap.String("port", port))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

// connectSpeaker establishes the session (persisted bundle first, password
// login as the fallback) and pins the target device.
func connectSpeaker(ctx context.Context, logger *zap.Logger) (*miai.Client, error) {
	client := miai.NewClient(miai.NewConfigFromEnv(), logger)
	store := tokenstore.NewFileStore("", logger)

	freshLogin := false
	if bundle, err := store.Load(); err == nil {
		if _, err := client.RestoreSession(bundle); err != nil {
			return nil, err
		}
	} else {
		logger.Info("No usable token bundle, logging in with account credentials")
		if _, err := client.Login(ctx); err != nil {
			return nil, err
		}
		freshLogin = true
	}

	sel := miai.Selector{
		ByID:            os.Getenv("XIAOMI_DEVICE_ID"),
		ByNameSubstring: os.Getenv("XIAOMI_DEVICE_NAME"),
	}
	if _, err := client.UseDevice(ctx, sel); err != nil {
		return nil, err
	}

	if freshLogin {
		session, err := client.CurrentSession()
		if err != nil {
			return nil, err
		}
		if err := store.Save(session.Bundle(client.KnownDevices())); err != nil {
			logger.Warn("Failed to persist token bundle", zap.Error(err))
		}
	}
	return client, nil
}

// buildBroadcaster wires the news pipeline when its sources are configured,
// otherwise the broadcast endpoint reports itself unavailable.
func buildBroadcaster(playbackService *usecase.PlaybackService, logger *zap.Logger) api.Broadcaster {
	newsSource, err := news.NewJisuNews(news.NewJisuConfigFromEnv(), logger)
	if err != nil {
		logger.Warn("News source not configured, broadcast disabled", zap.Error(err))
		return unavailableBroadcaster{}
	}

	model, err := llm.NewGemini(llm.NewGeminiConfigFromEnv(), logger)
	if err != nil {
		logger.Warn("LLM not configured, broadcast disabled", zap.Error(err))
		return unavailableBroadcaster{}
	}

	papers := news.NewArxiv(news.NewArxivConfigFromEnv(), logger)
	return usecase.NewBroadcastService(newsSource, papers, model, playbackService, logger)
}

type unavailableBroadcaster struct{}

func (unavailableBroadcaster) Run(context.Context) (*entities.RunReport, error) {
	return nil, fmt.Errorf("broadcast pipeline is not configured")
}
