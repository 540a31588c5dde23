package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ivanoskov/finchat_bot/internal/bot"
	"github.com/ivanoskov/finchat_bot/internal/config"
	"github.com/ivanoskov/finchat_bot/internal/extraction"
	"github.com/ivanoskov/finchat_bot/internal/logging"
	"github.com/ivanoskov/finchat_bot/internal/repository"
	"github.com/ivanoskov/finchat_bot/internal/service"
	"github.com/ivanoskov/finchat_bot/internal/session"
	"github.com/ivanoskov/finchat_bot/internal/web"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)

	repo, closeRepo, err := repository.Open(cfg)
	if err != nil {
		return err
	}
	defer closeRepo()

	llm := extraction.NewClient(extraction.NewCompleter(cfg), cfg.ExtractionTimeout, logger)
	store := session.NewStore()
	queue := session.NewQueue(cfg.MaxConcurrentTurns, logger)
	services := service.New(repo, llm, store, cfg.HistoryLimit, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Без токена сервер обслуживает только веб-чат
	var webhook web.Webhook
	if cfg.TelegramToken != "" {
		b, err := bot.NewBot(cfg.TelegramToken, services, store, queue, logger)
		if err != nil {
			return err
		}
		webhook = b
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           web.NewRouter(ctx, repo, services.Assistant, queue, cfg.WebhookPath, webhook, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server started", "addr", cfg.HTTPAddr, "webhook", webhook != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	queue.Wait()
	return nil
}
