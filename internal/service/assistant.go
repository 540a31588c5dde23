package service

import (
	"context"
	"log/slog"

	"github.com/ivanoskov/finchat_bot/internal/repository"
	"github.com/ivanoskov/finchat_bot/internal/session"
)

// Services - собранный слой обработчиков
type Services struct {
	Tracker   *Tracker
	Goals     *Goals
	Router    *Router
	Linker    *Linker
	Assistant *Assistant
}

// New собирает все обработчики над одним хранилищем и клиентом модели
func New(repo repository.Repository, llm Extractor, store *session.Store, historyLimit int, logger *slog.Logger) *Services {
	tracker := NewTracker(repo, llm, logger)
	goals := NewGoals(repo, llm, logger)
	router := NewRouter(repo, llm, tracker, goals, historyLimit, logger)
	linker := NewLinker(repo, store, logger)
	return &Services{
		Tracker:   tracker,
		Goals:     goals,
		Router:    router,
		Linker:    linker,
		Assistant: NewAssistant(linker, router),
	}
}

// Inbound - входящее сообщение любого канала
type Inbound struct {
	// Key - ключ разговора, например "telegram:123" или "web:ana@example.com"
	Key string
	// Profile задается каналами с привязкой (Telegram); nil, если пользователь уже известен
	Profile *session.Profile
	// UserID - уже известный пользователь (веб-чат, консоль)
	UserID string
	Text   string
}

// Assistant объединяет фазу привязки и маршрутизацию сообщений
type Assistant struct {
	linker *Linker
	router *Router
}

// NewAssistant создает новый экземпляр Assistant
func NewAssistant(linker *Linker, router *Router) *Assistant {
	return &Assistant{linker: linker, router: router}
}

// Handle обрабатывает один ход разговора и возвращает ответ
func (a *Assistant) Handle(ctx context.Context, in Inbound) string {
	userID := in.UserID
	if in.Profile != nil {
		res := a.linker.Resolve(ctx, in.Key, *in.Profile, in.Text)
		if !res.Route {
			return res.Reply
		}
		userID = res.UserID
	}
	return a.router.Route(ctx, userID, in.Text)
}
