// Package web - HTTP-вход: webhook Telegram и чат веб-приложения.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ivanoskov/finchat_bot/internal/logging"
	"github.com/ivanoskov/finchat_bot/internal/repository"
	"github.com/ivanoskov/finchat_bot/internal/service"
	"github.com/ivanoskov/finchat_bot/internal/session"
)

// EmailHeader заполняет слой аутентификации перед этим сервисом
const EmailHeader = "X-User-Email"

const (
	maxChatBody    = 64 << 10
	maxWebhookBody = 1 << 20
)

// Webhook принимает тело обновления Telegram
type Webhook interface {
	HandleWebhook(ctx context.Context, body []byte) error
}

type Server struct {
	base      context.Context
	repo      repository.Repository
	assistant *service.Assistant
	queue     *session.Queue
	webhook   Webhook
	logger    *slog.Logger
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Reply string `json:"reply"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewRouter собирает маршруты. base передается в webhook вместо контекста запроса:
// обновление обрабатывается уже после ответа Telegram.
// webhook может быть nil, тогда маршрут не регистрируется.
func NewRouter(base context.Context, repo repository.Repository, assistant *service.Assistant, queue *session.Queue,
	webhookPath string, webhook Webhook, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = logging.Discard()
	}
	s := &Server{
		base:      base,
		repo:      repo,
		assistant: assistant,
		queue:     queue,
		webhook:   webhook,
		logger:    logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.health)
	mux.HandleFunc("POST /api/chat", s.chat)
	if webhook != nil {
		mux.HandleFunc("POST "+webhookPath, s.telegram)
	}
	return s.recoverer(mux)
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, "ok")
}

// chat обрабатывает один ход веб-чата и отвечает синхронно
func (s *Server) chat(w http.ResponseWriter, r *http.Request) {
	email := strings.ToLower(strings.TrimSpace(r.Header.Get(EmailHeader)))
	if email == "" {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing " + EmailHeader})
		return
	}

	var req chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBody)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "message is required"})
		return
	}

	user, err := s.repo.FindUserByEmail(r.Context(), email)
	if errors.Is(err, repository.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "user not found"})
		return
	}
	if err != nil {
		s.logger.Error("failed to look up web user", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	key := "web:" + email
	var reply string
	// Отмена запроса снимает ход только до его начала; начатый ход доводится до конца
	err = s.queue.Do(r.Context(), key, func(ctx context.Context) {
		reply = s.assistant.Handle(context.WithoutCancel(ctx), service.Inbound{Key: key, UserID: user.ID, Text: req.Message})
	})
	if err != nil {
		s.logger.Warn("chat turn abandoned", "session", key, "error", err)
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "request cancelled"})
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{Reply: reply})
}

// telegram принимает обновление и сразу отвечает 200, ответ боту уходит из очереди
func (s *Server) telegram(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	if err := s.webhook.HandleWebhook(s.base, body); err != nil {
		s.logger.Warn("rejected webhook update", "error", err)
		http.Error(w, "invalid update", http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("http handler panicked", "path", r.URL.Path, "panic", rec)
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
