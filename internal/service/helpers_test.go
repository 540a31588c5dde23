package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ivanoskov/finchat_bot/internal/extraction"
	"github.com/ivanoskov/finchat_bot/internal/model"
	"github.com/ivanoskov/finchat_bot/internal/repository"
	"github.com/ivanoskov/finchat_bot/internal/session"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, time.April, 10, 12, 0, 0, 0, time.Local)

// scriptedLLM отвечает заготовленным JSON в зависимости от вида инструкции
type scriptedLLM struct {
	mu      sync.Mutex
	replies map[string]string
	calls   []string
	down    bool
}

func (s *scriptedLLM) Complete(_ context.Context, system, _ string) (string, error) {
	kind := promptKind(system)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, kind)
	if s.down {
		return "", errors.New("model is down")
	}
	reply, ok := s.replies[kind]
	if !ok {
		return "", errors.New("no scripted reply for " + kind)
	}
	return reply, nil
}

func (s *scriptedLLM) script(kind, reply string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies[kind] = reply
}

func (s *scriptedLLM) called() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func promptKind(system string) string {
	switch {
	case strings.Contains(system, "clasificador de intenciones"):
		return "intent"
	case strings.Contains(system, "datos de un GASTO"):
		return "expense"
	case strings.Contains(system, "datos de un INGRESO"):
		return "income"
	case strings.Contains(system, "para CREAR una meta"):
		return "goal"
	case strings.Contains(system, "un ABONO"):
		return "contribution"
	case strings.Contains(system, "usando SOLO estos datos"):
		return "query"
	default:
		return "general"
	}
}

// spyRepo считает записи и позволяет внедрять сбои поверх настоящего хранилища
type spyRepo struct {
	repository.Repository

	mu              sync.Mutex
	expenseWrites   int
	incomeWrites    int
	failSummary     bool
	failCategories  bool
	panicCategories bool
	failMerge       bool
}

func (s *spyRepo) CreateExpense(ctx context.Context, expense *model.Expense) error {
	s.mu.Lock()
	s.expenseWrites++
	s.mu.Unlock()
	return s.Repository.CreateExpense(ctx, expense)
}

func (s *spyRepo) CreateIncome(ctx context.Context, income *model.Income) error {
	s.mu.Lock()
	s.incomeWrites++
	s.mu.Unlock()
	return s.Repository.CreateIncome(ctx, income)
}

func (s *spyRepo) GetIncomeSummary(ctx context.Context, userID string, period model.DateRange) (model.Summary, error) {
	if s.failSummary {
		return model.Summary{}, errors.New("summary unavailable")
	}
	return s.Repository.GetIncomeSummary(ctx, userID, period)
}

func (s *spyRepo) GetCategories(ctx context.Context, userID string, categoryType model.CategoryType) ([]model.Category, error) {
	if s.panicCategories {
		panic("categories exploded")
	}
	if s.failCategories {
		return nil, errors.New("categories unavailable")
	}
	return s.Repository.GetCategories(ctx, userID, categoryType)
}

func (s *spyRepo) MergeChannelAccount(ctx context.Context, channelID int64, targetUserID string) error {
	if s.failMerge {
		return errors.New("merge aborted")
	}
	return s.Repository.MergeChannelAccount(ctx, channelID, targetUserID)
}

type testEnv struct {
	ctx   context.Context
	db    *repository.SQLiteRepository
	repo  *spyRepo
	llm   *scriptedLLM
	store *session.Store
	svc   *Services
	user  *model.User
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := repository.NewSQLiteRepository(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := &spyRepo{Repository: db}
	llm := &scriptedLLM{replies: map[string]string{}}
	store := session.NewStore()
	svc := New(repo, extraction.NewClient(llm, time.Second, nil), store, 10, nil)
	svc.Tracker.now = func() time.Time { return fixedNow }
	svc.Goals.now = func() time.Time { return fixedNow }

	email := "ana@example.com"
	user := &model.User{Email: &email, Name: "Ana", Active: true}
	require.NoError(t, db.CreateUser(context.Background(), user))

	return &testEnv{
		ctx:   context.Background(),
		db:    db,
		repo:  repo,
		llm:   llm,
		store: store,
		svc:   svc,
		user:  user,
	}
}

func (e *testEnv) addWebUser(t *testing.T, email string) *model.User {
	t.Helper()
	user := &model.User{Email: &email, Name: "web", Active: true}
	require.NoError(t, e.db.CreateUser(e.ctx, user))
	return user
}

func (e *testEnv) addChannelUser(t *testing.T, channelID int64) *model.User {
	t.Helper()
	user := &model.User{ChannelID: &channelID, Name: "canal", Active: true}
	require.NoError(t, e.db.CreateUser(e.ctx, user))
	return user
}

func (e *testEnv) addIncome(t *testing.T, userID string, amount int64) {
	t.Helper()
	require.NoError(t, e.db.CreateIncome(e.ctx, &model.Income{
		UserID:      userID,
		Amount:      decimal.NewFromInt(amount),
		Description: "sueldo",
		Date:        fixedNow,
	}))
}

func (e *testEnv) addExpense(t *testing.T, userID string, amount int64) {
	t.Helper()
	require.NoError(t, e.db.CreateExpense(e.ctx, &model.Expense{
		UserID:      userID,
		Amount:      decimal.NewFromInt(amount),
		Description: "gasto",
		Date:        fixedNow,
	}))
}

func (e *testEnv) addGoal(t *testing.T, userID, name string, target int64) *model.SavingsGoal {
	t.Helper()
	goal := &model.SavingsGoal{UserID: userID, Name: name, Target: decimal.NewFromInt(target), Current: decimal.Zero}
	require.NoError(t, e.db.CreateGoal(e.ctx, goal))
	return goal
}

func (e *testEnv) history(t *testing.T, userID string) []model.ChatMessage {
	t.Helper()
	history, err := e.db.GetRecentChatHistory(e.ctx, userID, 100)
	require.NoError(t, err)
	return history
}

func amount(v int64) decimal.Decimal { return decimal.NewFromInt(v) }
