// Команда chat - консольный канал для локальной работы с ассистентом.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/fatih/color"
	"github.com/ivanoskov/finchat_bot/internal/config"
	"github.com/ivanoskov/finchat_bot/internal/extraction"
	"github.com/ivanoskov/finchat_bot/internal/logging"
	"github.com/ivanoskov/finchat_bot/internal/model"
	"github.com/ivanoskov/finchat_bot/internal/repository"
	"github.com/ivanoskov/finchat_bot/internal/service"
	"github.com/ivanoskov/finchat_bot/internal/session"
	"golang.org/x/term"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("chat", flag.ContinueOnError)
	fs.SetOutput(stderr)

	email := fs.String("email", "", "Email of the web user to chat as (created if missing)")
	dbPath := fs.String("db", "", "SQLite database path (overrides STORAGE_DRIVER)")
	verbose := fs.Bool("v", false, "Write logs to stderr")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*email) == "" {
		fmt.Fprintln(stdout, "Usage: chat -email <email> [-db <db_path>] [-v]")
		fs.PrintDefaults()
		return fmt.Errorf("missing required flags: email")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	if *dbPath != "" {
		cfg.StorageDriver = config.DriverSQLite
		cfg.SQLitePath = *dbPath
	}

	logger := logging.Discard()
	if *verbose {
		logger = logging.New(stderr, "debug", "text")
	}

	repo, closeRepo, err := repository.Open(cfg)
	if err != nil {
		return err
	}
	defer closeRepo()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	bot := color.New(color.FgCyan)
	note := color.New(color.FgYellow)
	if !isTerminal(stdout) {
		bot.DisableColor()
		note.DisableColor()
	}

	user, created, err := ensureUser(ctx, repo, *email)
	if err != nil {
		return err
	}
	if created {
		note.Fprintf(stdout, "Cuenta creada para %s\n", *user.Email)
	}
	if cfg.OpenAIKey == "" {
		note.Fprintln(stdout, "OPENAI_API_KEY no está configurada: respondo en modo limitado.")
	}

	llm := extraction.NewClient(extraction.NewCompleter(cfg), cfg.ExtractionTimeout, logger)
	services := service.New(repo, llm, session.NewStore(), cfg.HistoryLimit, logger)

	return chat(ctx, services.Assistant, user, stdin, stdout, bot, logger)
}

// chat читает строки до EOF или команды salir
func chat(ctx context.Context, assistant *service.Assistant, user *model.User, stdin io.Reader, stdout io.Writer, out *color.Color, logger *slog.Logger) error {
	interactive := isTerminal(stdin)
	key := "console:" + *user.Email
	scanner := bufio.NewScanner(stdin)

	for {
		if interactive {
			fmt.Fprint(stdout, "> ")
		}
		if !scanner.Scan() {
			return scanner.Err()
		}

		text := strings.TrimSpace(scanner.Text())
		switch {
		case text == "":
			continue
		case text == "salir" || text == "/salir":
			return nil
		}

		reply := assistant.Handle(ctx, service.Inbound{Key: key, UserID: user.ID, Text: text})
		out.Fprintln(stdout, reply)
		logger.Debug("turn handled", "session", key)

		if ctx.Err() != nil {
			return nil
		}
	}
}

// ensureUser находит веб-пользователя по email или создает его
func ensureUser(ctx context.Context, repo repository.Repository, email string) (*model.User, bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := repo.FindUserByEmail(ctx, email)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, fmt.Errorf("failed to look up user: %w", err)
	}

	user = &model.User{
		Email:  &email,
		Name:   strings.SplitN(email, "@", 2)[0],
		Active: true,
	}
	if err := repo.CreateUser(ctx, user); err != nil {
		return nil, false, fmt.Errorf("failed to create user: %w", err)
	}
	return user, true, nil
}

func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
