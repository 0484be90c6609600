// Package main запускает HTTP-сервер сервиса Kuriftu Rewards.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kuriftu/rewards-system/internal/catalog"
	"github.com/kuriftu/rewards-system/internal/chat"
	"github.com/kuriftu/rewards-system/internal/config"
	"github.com/kuriftu/rewards-system/internal/handler"
	"github.com/kuriftu/rewards-system/internal/middleware"
	"github.com/kuriftu/rewards-system/internal/repository"
	"github.com/kuriftu/rewards-system/internal/service"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	cat, err := catalog.Load()
	if err != nil {
		sugar.Fatalw("catalog load error", "error", err.Error())
	}

	var repo service.Repository
	if cfg.DatabaseURI != "" {
		repo, err = repository.NewPostgresRepository(cfg.DatabaseURI)
		if err != nil {
			sugar.Fatalw("database initialization error", "error", err.Error())
		}
	} else {
		// Без строки подключения сервис работает на хранилище в памяти.
		sugar.Warn("database URI is empty, falling back to in-memory storage")
		repo = repository.NewMemoryRepository()
	}
	defer repo.Close()

	var chatClient *chat.Client
	if cfg.ChatAPIAddress != "" {
		chatClient = chat.NewClient(cfg.ChatAPIAddress, cfg.ChatAPIKey)
	}

	svc := service.NewService(repo, cat, chatClient, logger)
	defer svc.Close()

	authMiddleware := middleware.NewAuthMiddleware(cfg.AuthSecret)
	h := handler.NewHandler(svc, logger, authMiddleware)

	r := h.SetupRouter()

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Запуск фоновой очистки просроченных подтверждений списания
	g.Go(func() error {
		svc.StartConfirmationSweeper(ctx)
		return nil
	})

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting kuriftu rewards server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
