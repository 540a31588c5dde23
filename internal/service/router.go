package service

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/ivanoskov/finchat_bot/internal/model"
	"github.com/ivanoskov/finchat_bot/internal/repository"
)

const (
	// Greeting - ответ на слишком короткие сообщения
	Greeting = "¡Hola! 👋 Soy tu asistente de finanzas. Cuéntame un gasto, un ingreso o pregúntame cómo vas."
	// Apology - ответ, когда обработка сообщения не удалась
	Apology = "Lo siento, tuve un problema procesando tu mensaje 😔. Inténtalo de nuevo en un momento."
	// HelpText - ответ по умолчанию, когда модель недоступна
	HelpText = `Puedo ayudarte con tus finanzas 💼:
• Registrar gastos: "gasté 5 lucas en almuerzo"
• Registrar ingresos: "me pagaron 800 mil de sueldo"
• Crear metas: "quiero ahorrar 1 millón para un viaje"
• Abonar a metas: "abona 20 mil a la meta viaje"
• Consultar: "¿cuánto gasté este mes?"`
)

type handlerFunc func(ctx context.Context, userID, text string, history []model.ChatMessage) (string, error)

// Router классифицирует сообщение и передает его обработчику намерения
type Router struct {
	repo         repository.Repository
	llm          Extractor
	handlers     map[model.Intent]handlerFunc
	historyLimit int
	logger       *slog.Logger
}

// NewRouter создает маршрутизатор с обработчиком для каждого намерения
func NewRouter(repo repository.Repository, llm Extractor, tracker *Tracker, goals *Goals, historyLimit int, logger *slog.Logger) *Router {
	r := &Router{
		repo:         repo,
		llm:          llm,
		historyLimit: historyLimit,
		logger:       orDiscard(logger),
	}
	r.handlers = map[model.Intent]handlerFunc{
		model.IntentRecordExpense: func(ctx context.Context, userID, text string, _ []model.ChatMessage) (string, error) {
			return tracker.RecordExpense(ctx, userID, text)
		},
		model.IntentRecordIncome: func(ctx context.Context, userID, text string, _ []model.ChatMessage) (string, error) {
			return tracker.RecordIncome(ctx, userID, text)
		},
		model.IntentCreateGoal: func(ctx context.Context, userID, text string, _ []model.ChatMessage) (string, error) {
			return goals.CreateFromMessage(ctx, userID, text)
		},
		model.IntentContributeGoal: func(ctx context.Context, userID, text string, _ []model.ChatMessage) (string, error) {
			return goals.ContributeFromMessage(ctx, userID, text)
		},
		model.IntentQuery: tracker.Query,
		model.IntentOther: r.general,
	}
	return r
}

// Route обрабатывает один ход разговора. Всегда возвращает непустой ответ.
func (r *Router) Route(ctx context.Context, userID, text string) string {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < 2 {
		return Greeting
	}

	history, err := r.repo.GetRecentChatHistory(ctx, userID, r.historyLimit)
	if err != nil {
		r.logger.Warn("chat history unavailable", "user_id", userID, "error", err)
		history = nil
	}
	r.save(ctx, userID, model.RoleUser, text)

	reply := r.dispatch(ctx, userID, text, history)
	if strings.TrimSpace(reply) == "" {
		reply = Apology
	}

	r.save(ctx, userID, model.RoleAssistant, reply)
	return reply
}

func (r *Router) dispatch(ctx context.Context, userID, text string, history []model.ChatMessage) (reply string) {
	intent := model.IntentOther
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("handler panicked", "user_id", userID, "intent", intent.String(), "panic", rec)
			reply = Apology
		}
	}()

	intent = r.llm.ClassifyIntent(ctx, text)
	handler, ok := r.handlers[intent]
	if !ok {
		handler = r.handlers[model.IntentOther]
	}

	reply, err := handler(ctx, userID, text, history)
	if err != nil {
		r.logger.Error("handler failed", "user_id", userID, "intent", intent.String(), "error", err)
		return Apology
	}
	r.logger.Debug("turn handled", "user_id", userID, "intent", intent.String())
	return reply
}

func (r *Router) general(ctx context.Context, _, text string, history []model.ChatMessage) (string, error) {
	if reply, ok := r.llm.GenerateGeneralResponse(ctx, text, history); ok {
		return reply, nil
	}
	return HelpText, nil
}

func (r *Router) save(ctx context.Context, userID string, role model.ChatRole, text string) {
	msg := &model.ChatMessage{UserID: userID, Role: role, Text: text}
	if err := r.repo.SaveChatMessage(ctx, msg); err != nil {
		r.logger.Warn("failed to save chat message", "user_id", userID, "role", string(role), "error", err)
	}
}
