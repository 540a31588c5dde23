package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ivanoskov/finchat_bot/internal/bot"
	"github.com/ivanoskov/finchat_bot/internal/config"
	"github.com/ivanoskov/finchat_bot/internal/extraction"
	"github.com/ivanoskov/finchat_bot/internal/logging"
	"github.com/ivanoskov/finchat_bot/internal/repository"
	"github.com/ivanoskov/finchat_bot/internal/service"
	"github.com/ivanoskov/finchat_bot/internal/session"
)

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
	if err := cfg.RequireTelegram(); err != nil {
		return err
	}
	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)

	repo, closeRepo, err := repository.Open(cfg)
	if err != nil {
		return err
	}
	defer closeRepo()

	llm := extraction.NewClient(extraction.NewCompleter(cfg), cfg.ExtractionTimeout, logger)
	if cfg.OpenAIKey == "" {
		logger.Warn("OPENAI_API_KEY is not set, running without language model")
	}

	store := session.NewStore()
	queue := session.NewQueue(cfg.MaxConcurrentTurns, logger)
	services := service.New(repo, llm, store, cfg.HistoryLimit, logger)

	b, err := bot.NewBot(cfg.TelegramToken, services, store, queue, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return b.Start(ctx)
}
