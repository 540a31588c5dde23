package web

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ivanoskov/finchat_bot/internal/extraction"
	"github.com/ivanoskov/finchat_bot/internal/model"
	"github.com/ivanoskov/finchat_bot/internal/repository"
	"github.com/ivanoskov/finchat_bot/internal/service"
	"github.com/ivanoskov/finchat_bot/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWebhook struct {
	mu     sync.Mutex
	bodies []string
	err    error
}

func (r *recordingWebhook) HandleWebhook(_ context.Context, body []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.bodies = append(r.bodies, string(body))
	return nil
}

type fixture struct {
	handler http.Handler
	repo    *repository.SQLiteRepository
	webhook *recordingWebhook
	user    *model.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo, err := repository.NewSQLiteRepository(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	email := "ana@example.com"
	user := &model.User{Email: &email, Name: "Ana", Active: true}
	require.NoError(t, repo.CreateUser(context.Background(), user))

	store := session.NewStore()
	services := service.New(repo, extraction.NewClient(extraction.Unavailable{}, time.Second, nil), store, 10, nil)
	webhook := &recordingWebhook{}

	return &fixture{
		handler: NewRouter(context.Background(), repo, services.Assistant, session.NewQueue(2, nil), "/telegram/webhook", webhook, nil),
		repo:    repo,
		webhook: webhook,
		user:    user,
	}
}

func (f *fixture) do(method, path, email, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if email != "" {
		req.Header.Set(EmailHeader, email)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestChatReplies(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/chat", "Ana@Example.com", `{"message": "hola, qué puedes hacer?"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `"reply"`)

	history, err := f.repo.GetRecentChatHistory(context.Background(), f.user.ID, 10)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestChatRejectsBadRequests(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name  string
		email string
		body  string
		want  int
	}{
		{"missing email", "", `{"message": "hola"}`, http.StatusUnauthorized},
		{"malformed json", "ana@example.com", `{"message":`, http.StatusBadRequest},
		{"empty message", "ana@example.com", `{"message": "   "}`, http.StatusBadRequest},
		{"unknown user", "nadie@example.com", `{"message": "hola"}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(http.MethodPost, "/api/chat", tt.email, tt.body)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestChatRequiresPost(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/api/chat", "ana@example.com", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestTelegramWebhook(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/telegram/webhook", "", `{"update_id": 1}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{`{"update_id": 1}`}, f.webhook.bodies)

	f.webhook.err = errors.New("bad update")
	rec = f.do(http.MethodPost, "/telegram/webhook", "", `{`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}
