package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ivanoskov/finchat_bot/internal/extraction"
	"github.com/ivanoskov/finchat_bot/internal/model"
)

const (
	recentLimit = 10
	dateLayout  = "2006-01-02"
	allRecords  = "todos los registros"
	favorable   = "favorable"
	unfavorable = "desfavorable"
)

// ResolveRange определяет период по ключевым словам сообщения:
// "hoy", "semana", "mes", "últimos". Без ключевых слов период не ограничен.
func ResolveRange(text string, now time.Time) model.DateRange {
	today := model.StartOfDay(now)
	switch {
	case extraction.HasWord(text, "hoy"):
		return model.DateRange{Start: &today, End: &today, Label: "hoy"}
	case extraction.HasWord(text, "semana"):
		start := today.AddDate(0, 0, -int(today.Weekday()))
		return model.DateRange{Start: &start, End: &today, Label: "esta semana"}
	case extraction.HasWord(text, "mes"):
		return model.MonthRange(now)
	case extraction.HasWord(text, "ultimos"), extraction.HasWord(text, "ultimas"):
		start := today.AddDate(0, 0, -7)
		return model.DateRange{Start: &start, End: &today, Label: "últimos 7 días"}
	}
	return model.DateRange{Label: allRecords}
}

// QueryEntry - одна запись в контексте вопроса
type QueryEntry struct {
	Date        string `json:"fecha"`
	Amount      string `json:"monto"`
	Description string `json:"descripcion"`
}

// QueryCategory - сумма расходов по категории
type QueryCategory struct {
	Category string `json:"categoria"`
	Total    string `json:"total"`
}

// QueryContext - агрегаты, которые передаются модели для ответа на вопрос
type QueryContext struct {
	Period         string          `json:"periodo"`
	StartDate      string          `json:"fecha_inicio,omitempty"`
	EndDate        string          `json:"fecha_fin,omitempty"`
	TotalIncome    string          `json:"total_ingresos"`
	TotalExpense   string          `json:"total_gastos"`
	Balance        string          `json:"balance"`
	Status         string          `json:"estado"`
	RecentExpenses []QueryEntry    `json:"ultimos_gastos"`
	RecentIncomes  []QueryEntry    `json:"ultimos_ingresos"`
	ByCategory     []QueryCategory `json:"gastos_por_categoria"`
}

// Query отвечает на вопрос о финансах за период из сообщения
func (t *Tracker) Query(ctx context.Context, userID, text string, history []model.ChatMessage) (string, error) {
	qc, err := t.BuildQueryContext(ctx, userID, ResolveRange(text, t.now()))
	if err != nil {
		return "", err
	}
	if reply, ok := t.llm.GenerateQueryResponse(ctx, text, qc, history); ok {
		return reply, nil
	}
	return qc.Summary(), nil
}

// BuildQueryContext собирает итоги, последние записи и разбивку по категориям
func (t *Tracker) BuildQueryContext(ctx context.Context, userID string, period model.DateRange) (*QueryContext, error) {
	income, err := t.repo.GetIncomeSummary(ctx, userID, period)
	if err != nil {
		return nil, fmt.Errorf("failed to get income summary: %w", err)
	}
	expense, err := t.repo.GetExpenseSummary(ctx, userID, period)
	if err != nil {
		return nil, fmt.Errorf("failed to get expense summary: %w", err)
	}
	expenses, err := t.repo.GetRecentExpenses(ctx, userID, period, recentLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent expenses: %w", err)
	}
	incomes, err := t.repo.GetRecentIncomes(ctx, userID, period, recentLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent incomes: %w", err)
	}
	byCategory, err := t.repo.GetExpensesByCategory(ctx, userID, period)
	if err != nil {
		return nil, fmt.Errorf("failed to get expenses by category: %w", err)
	}

	balance := income.Total.Sub(expense.Total)
	qc := &QueryContext{
		Period:         period.Label,
		TotalIncome:    model.FormatMoney(income.Total),
		TotalExpense:   model.FormatMoney(expense.Total),
		Balance:        model.FormatMoney(balance),
		Status:         favorable,
		RecentExpenses: make([]QueryEntry, 0, len(expenses)),
		RecentIncomes:  make([]QueryEntry, 0, len(incomes)),
		ByCategory:     make([]QueryCategory, 0, len(byCategory)),
	}
	if balance.IsNegative() {
		qc.Status = unfavorable
	}
	if period.Start != nil {
		qc.StartDate = period.Start.Format(dateLayout)
	}
	if period.End != nil {
		qc.EndDate = period.End.Format(dateLayout)
	}
	for _, e := range expenses {
		qc.RecentExpenses = append(qc.RecentExpenses, QueryEntry{
			Date: e.Date.Format(dateLayout), Amount: model.FormatMoney(e.Amount), Description: e.Description,
		})
	}
	for _, i := range incomes {
		qc.RecentIncomes = append(qc.RecentIncomes, QueryEntry{
			Date: i.Date.Format(dateLayout), Amount: model.FormatMoney(i.Amount), Description: i.Description,
		})
	}
	for _, c := range byCategory {
		qc.ByCategory = append(qc.ByCategory, QueryCategory{Category: c.Category, Total: model.FormatMoney(c.Total)})
	}
	return qc, nil
}

// Summary - текстовая сводка без участия модели
func (qc *QueryContext) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 Resumen (%s)\n\n", qc.Period)
	fmt.Fprintf(&b, "💰 Ingresos: %s\n", qc.TotalIncome)
	fmt.Fprintf(&b, "💸 Gastos: %s\n", qc.TotalExpense)
	if qc.Status == unfavorable {
		fmt.Fprintf(&b, "🔴 Balance: %s (desfavorable)", qc.Balance)
	} else {
		fmt.Fprintf(&b, "🟢 Balance: %s (favorable)", qc.Balance)
	}

	top := qc.ByCategory
	if len(top) > 3 {
		top = top[:3]
	}
	if len(top) > 0 {
		b.WriteString("\n\nPrincipales gastos por categoría:")
		for _, c := range top {
			fmt.Fprintf(&b, "\n• %s: %s", c.Category, c.Total)
		}
	}
	return b.String()
}
