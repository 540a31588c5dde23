package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ivanoskov/finchat_bot/internal/budget"
	"github.com/ivanoskov/finchat_bot/internal/extraction"
	"github.com/ivanoskov/finchat_bot/internal/logging"
	"github.com/ivanoskov/finchat_bot/internal/model"
	"github.com/ivanoskov/finchat_bot/internal/repository"
	"github.com/shopspring/decimal"
)

var (
	// ErrGoalNotFound - цель не найдена или принадлежит другому пользователю
	ErrGoalNotFound = errors.New("goal not found")
	// ErrInvalidAmount - сумма не положительная
	ErrInvalidAmount = errors.New("amount must be positive")
)

// Extractor - операции извлечения данных из текста, которые нужны обработчикам.
// Реализуется extraction.Client.
type Extractor interface {
	ClassifyIntent(ctx context.Context, text string) model.Intent
	ExtractExpense(ctx context.Context, text string, categories []model.Category) extraction.Transaction
	ExtractIncome(ctx context.Context, text string, categories []model.Category) extraction.Transaction
	ExtractGoal(ctx context.Context, text string) extraction.Goal
	ExtractContribution(ctx context.Context, text string, goals []model.SavingsGoal) extraction.Contribution
	GenerateGeneralResponse(ctx context.Context, text string, history []model.ChatMessage) (string, bool)
	GenerateQueryResponse(ctx context.Context, text string, queryContext any, history []model.ChatMessage) (string, bool)
}

// Tracker обрабатывает расходы, доходы и вопросы о финансах
type Tracker struct {
	repo   repository.Repository
	llm    Extractor
	logger *slog.Logger
	now    func() time.Time
}

// NewTracker создает новый экземпляр Tracker
func NewTracker(repo repository.Repository, llm Extractor, logger *slog.Logger) *Tracker {
	return &Tracker{
		repo:   repo,
		llm:    llm,
		logger: orDiscard(logger),
		now:    time.Now,
	}
}

// RecordExpense извлекает расход из сообщения и сохраняет его.
// К подтверждению добавляется состояние бюджета за месяц.
func (t *Tracker) RecordExpense(ctx context.Context, userID, text string) (string, error) {
	return t.record(ctx, userID, text, model.CategoryExpense)
}

// RecordIncome извлекает доход из сообщения и сохраняет его
func (t *Tracker) RecordIncome(ctx context.Context, userID, text string) (string, error) {
	return t.record(ctx, userID, text, model.CategoryIncome)
}

func (t *Tracker) record(ctx context.Context, userID, text string, kind model.CategoryType) (string, error) {
	categories, err := t.repo.GetCategories(ctx, userID, kind)
	if err != nil {
		return "", fmt.Errorf("failed to get categories: %w", err)
	}

	var ex extraction.Transaction
	if kind == model.CategoryExpense {
		ex = t.llm.ExtractExpense(ctx, text, categories)
	} else {
		ex = t.llm.ExtractIncome(ctx, text, categories)
	}
	if ex.Error {
		return ex.ClarifyingPrompt, nil
	}
	if ex.Amount == nil {
		return askAmount(kind, ex.Description), nil
	}
	if !ex.Amount.IsPositive() {
		return invalidAmountReply, nil
	}

	category := extraction.ResolveCategory(ex.Category, categories)
	var categoryID *string
	if category != nil {
		categoryID = &category.ID
	}
	description := ex.Description
	if description == "" {
		description = defaultDescription(kind)
	}
	now := t.now()

	if kind == model.CategoryExpense {
		expense := &model.Expense{
			UserID:      userID,
			CategoryID:  categoryID,
			Amount:      *ex.Amount,
			Description: description,
			Date:        model.StartOfDay(now),
			CreatedAt:   now,
		}
		if err := t.repo.CreateExpense(ctx, expense); err != nil {
			return "", err
		}
		t.logger.Info("expense recorded", "user_id", userID, "amount", expense.Amount.String())

		reply := fmt.Sprintf("✅ Gasto registrado: %s en %s\n📂 Categoría: %s",
			model.FormatMoney(expense.Amount), description, model.CategoryName(category))
		if status := t.budgetStatus(ctx, userID); status != "" {
			reply += "\n\n" + status
		}
		return reply, nil
	}

	income := &model.Income{
		UserID:      userID,
		CategoryID:  categoryID,
		Amount:      *ex.Amount,
		Description: description,
		Date:        model.StartOfDay(now),
		CreatedAt:   now,
	}
	if err := t.repo.CreateIncome(ctx, income); err != nil {
		return "", err
	}
	t.logger.Info("income recorded", "user_id", userID, "amount", income.Amount.String())

	return fmt.Sprintf("💰 Ingreso registrado: %s por %s\n📂 Categoría: %s",
		model.FormatMoney(income.Amount), description, model.CategoryName(category)), nil
}

// budgetStatus возвращает состояние бюджета за текущий месяц.
// Ошибки не прерывают запись расхода: в этом случае возвращается "".
func (t *Tracker) budgetStatus(ctx context.Context, userID string) string {
	now := t.now()
	month := model.MonthRange(now)

	income, err := t.repo.GetIncomeSummary(ctx, userID, month)
	if err != nil {
		t.logger.Warn("budget status unavailable", "user_id", userID, "error", err)
		return ""
	}
	expense, err := t.repo.GetExpenseSummary(ctx, userID, month)
	if err != nil {
		t.logger.Warn("budget status unavailable", "user_id", userID, "error", err)
		return ""
	}
	return budget.Compute(income.Total, expense.Total, now).Message()
}

// MonthExpensesByCategory возвращает расходы текущего месяца по категориям
func (t *Tracker) MonthExpensesByCategory(ctx context.Context, userID string) ([]model.CategoryTotal, error) {
	totals, err := t.repo.GetExpensesByCategory(ctx, userID, model.MonthRange(t.now()))
	if err != nil {
		return nil, fmt.Errorf("failed to get expenses by category: %w", err)
	}
	return totals, nil
}

const invalidAmountReply = "El monto debe ser un número mayor que cero 🙏. Inténtalo de nuevo, por ejemplo: \"5000\"."

func askAmount(kind model.CategoryType, description string) string {
	if kind == model.CategoryIncome {
		if description != "" {
			return fmt.Sprintf("¿Cuánto recibiste por %s? 💵", description)
		}
		return "¿De cuánto fue el ingreso? Indícame el monto, por ejemplo: \"recibí 500 mil\"."
	}
	if description != "" {
		return fmt.Sprintf("¿Cuánto gastaste en %s? 💸", description)
	}
	return "¿De cuánto fue el gasto? Indícame el monto, por ejemplo: \"gasté 5000 en almuerzo\"."
}

func defaultDescription(kind model.CategoryType) string {
	if kind == model.CategoryIncome {
		return "Ingreso"
	}
	return "Gasto"
}

func positive(amount *decimal.Decimal) bool {
	return amount != nil && amount.IsPositive()
}

func orDiscard(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return logging.Discard()
	}
	return logger
}
