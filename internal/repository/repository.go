package repository

import (
	"context"
	"errors"

	"github.com/ivanoskov/finchat_bot/internal/model"
)

// ErrNotFound возвращается, когда запись не найдена или не принадлежит пользователю
var ErrNotFound = errors.New("not found")

// ErrChannelConflict - целевой пользователь уже привязан к другому каналу
var ErrChannelConflict = errors.New("target user is linked to another channel")

// Repository - шлюз к финансовым данным
type Repository interface {
	// Категории
	GetCategories(ctx context.Context, userID string, categoryType model.CategoryType) ([]model.Category, error)

	// Расходы и доходы
	CreateExpense(ctx context.Context, expense *model.Expense) error
	CreateIncome(ctx context.Context, income *model.Income) error
	GetExpenseSummary(ctx context.Context, userID string, period model.DateRange) (model.Summary, error)
	GetIncomeSummary(ctx context.Context, userID string, period model.DateRange) (model.Summary, error)
	GetRecentExpenses(ctx context.Context, userID string, period model.DateRange, limit int) ([]model.Expense, error)
	GetRecentIncomes(ctx context.Context, userID string, period model.DateRange, limit int) ([]model.Income, error)
	GetExpensesByCategory(ctx context.Context, userID string, period model.DateRange) ([]model.CategoryTotal, error)

	// Пользователи
	FindUserByChannelID(ctx context.Context, channelID int64) (*model.User, error)
	FindUserByEmail(ctx context.Context, email string) (*model.User, error)
	CreateUser(ctx context.Context, user *model.User) error
	// MergeChannelAccount атомарно переносит записи пользователя канала
	// на targetUserID и переставляет идентификатор канала.
	// Если у targetUserID уже другой канал, возвращает ErrChannelConflict.
	MergeChannelAccount(ctx context.Context, channelID int64, targetUserID string) error

	// Цели накопления
	CreateGoal(ctx context.Context, goal *model.SavingsGoal) error
	ListGoals(ctx context.Context, userID string) ([]model.SavingsGoal, error)
	FindGoal(ctx context.Context, goalID, userID string) (*model.SavingsGoal, error)
	// AddContribution атомарно сохраняет взнос и новую сумму цели.
	AddContribution(ctx context.Context, userID string, contribution *model.SavingsContribution) (*model.SavingsGoal, error)

	// История чата
	SaveChatMessage(ctx context.Context, message *model.ChatMessage) error
	GetRecentChatHistory(ctx context.Context, userID string, limit int) ([]model.ChatMessage, error)
}
