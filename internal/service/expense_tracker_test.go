package service

import (
	"testing"
	"time"

	"github.com/ivanoskov/finchat_bot/internal/budget"
	"github.com/ivanoskov/finchat_bot/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordExpenseWithBudgetStatus(t *testing.T) {
	env := newTestEnv(t)
	env.addIncome(t, env.user.ID, 100000)
	env.llm.script("expense", `{"monto": 20000, "descripcion": "almuerzo", "categoria": "alimento"}`)

	reply, err := env.svc.Tracker.RecordExpense(env.ctx, env.user.ID, "gasté 20 lucas en almuerzo")
	require.NoError(t, err)

	assert.Contains(t, reply, "$20.000")
	assert.Contains(t, reply, "almuerzo")
	assert.Contains(t, reply, "Alimentación")
	assert.Contains(t, reply, "80%")
	assert.Contains(t, reply, "🟢")

	expenses, err := env.db.GetRecentExpenses(env.ctx, env.user.ID, model.DateRange{}, 10)
	require.NoError(t, err)
	require.Len(t, expenses, 1)
	assert.True(t, amount(20000).Equal(expenses[0].Amount))
	require.NotNil(t, expenses[0].CategoryID)
	assert.Equal(t, "2026-04-10", expenses[0].Date.Format("2006-01-02"))
}

func TestRecordExpenseMissingAmount(t *testing.T) {
	env := newTestEnv(t)
	env.llm.script("expense", `{"monto": null, "descripcion": "pan", "categoria": "Alimentación"}`)

	reply, err := env.svc.Tracker.RecordExpense(env.ctx, env.user.ID, "compré pan")
	require.NoError(t, err)

	assert.Contains(t, reply, "¿Cuánto gastaste en pan?")
	assert.Zero(t, env.repo.expenseWrites)
}

func TestRecordExpenseIgnoresInventedAmount(t *testing.T) {
	env := newTestEnv(t)
	env.llm.script("expense", `{"monto": 1500, "descripcion": "pan", "categoria": null}`)

	reply, err := env.svc.Tracker.RecordExpense(env.ctx, env.user.ID, "compré pan")
	require.NoError(t, err)

	assert.Contains(t, reply, "¿Cuánto gastaste en pan?")
	assert.Zero(t, env.repo.expenseWrites)
}

func TestRecordIncomeMissingAmount(t *testing.T) {
	env := newTestEnv(t)
	env.llm.script("income", `{"monto": null, "descripcion": null, "categoria": null}`)

	reply, err := env.svc.Tracker.RecordIncome(env.ctx, env.user.ID, "me pagaron")
	require.NoError(t, err)

	assert.Contains(t, reply, "monto")
	assert.Zero(t, env.repo.incomeWrites)
}

func TestRecordExpenseRejectsNonPositiveAmount(t *testing.T) {
	env := newTestEnv(t)
	env.llm.script("expense", `{"monto": -5, "descripcion": "error", "categoria": null}`)

	reply, err := env.svc.Tracker.RecordExpense(env.ctx, env.user.ID, "gasté -5")
	require.NoError(t, err)

	assert.Equal(t, invalidAmountReply, reply)
	assert.Zero(t, env.repo.expenseWrites)
}

func TestRecordExpenseModelUnavailable(t *testing.T) {
	env := newTestEnv(t)
	env.llm.down = true

	reply, err := env.svc.Tracker.RecordExpense(env.ctx, env.user.ID, "gasté 5000 en pan")
	require.NoError(t, err)

	assert.Contains(t, reply, "No pude entender el gasto")
	assert.Zero(t, env.repo.expenseWrites)
}

func TestRecordExpenseBudgetFailureDoesNotAbort(t *testing.T) {
	env := newTestEnv(t)
	env.repo.failSummary = true
	env.llm.script("expense", `{"monto": 5000, "descripcion": "café", "categoria": null}`)

	reply, err := env.svc.Tracker.RecordExpense(env.ctx, env.user.ID, "café 5000")
	require.NoError(t, err)

	assert.Contains(t, reply, "$5.000")
	assert.Contains(t, reply, model.DefaultCategoryName)
	assert.NotContains(t, reply, "%")
	assert.Equal(t, 1, env.repo.expenseWrites)
}

func TestRecordExpenseZeroIncomeTip(t *testing.T) {
	env := newTestEnv(t)
	env.llm.script("expense", `{"monto": 5000, "descripcion": "café", "categoria": "mascotas"}`)

	reply, err := env.svc.Tracker.RecordExpense(env.ctx, env.user.ID, "café 5000")
	require.NoError(t, err)

	assert.Contains(t, reply, budget.ZeroIncomeTip)
	assert.Contains(t, reply, "Otros gastos")
}

func TestRecordIncome(t *testing.T) {
	env := newTestEnv(t)
	env.llm.script("income", `{"monto": "800 mil", "descripcion": "sueldo", "categoria": "Sueldo"}`)

	reply, err := env.svc.Tracker.RecordIncome(env.ctx, env.user.ID, "me pagaron el sueldo, 800 mil")
	require.NoError(t, err)

	assert.Contains(t, reply, "$800.000")
	assert.Contains(t, reply, "Sueldo")
	assert.NotContains(t, reply, "%")

	summary, err := env.db.GetIncomeSummary(env.ctx, env.user.ID, model.DateRange{})
	require.NoError(t, err)
	assert.True(t, amount(800000).Equal(summary.Total))
}

func TestResolveRange(t *testing.T) {
	day := func(d int) string { return time.Date(2026, time.April, d, 0, 0, 0, 0, time.Local).Format("2006-01-02") }
	format := func(tm *time.Time) string {
		require.NotNil(t, tm)
		return tm.Format("2006-01-02")
	}

	r := ResolveRange("¿cuánto gasté hoy?", fixedNow)
	assert.Equal(t, day(10), format(r.Start))
	assert.Equal(t, day(10), format(r.End))

	r = ResolveRange("gastos de esta semana", fixedNow)
	assert.Equal(t, day(5), format(r.Start))
	assert.Equal(t, day(10), format(r.End))

	r = ResolveRange("¿cómo voy este mes?", fixedNow)
	assert.Equal(t, day(1), format(r.Start))

	r = ResolveRange("mis últimos gastos", fixedNow)
	assert.Equal(t, day(3), format(r.Start))
	assert.Equal(t, day(10), format(r.End))

	r = ResolveRange("¿cuál es mi balance?", fixedNow)
	assert.True(t, r.Unbounded())
	assert.Equal(t, "todos los registros", r.Label)
}

func TestQueryFallsBackToSummary(t *testing.T) {
	env := newTestEnv(t)
	env.addIncome(t, env.user.ID, 100000)
	env.addExpense(t, env.user.ID, 130000)

	reply, err := env.svc.Tracker.Query(env.ctx, env.user.ID, "¿cuál es mi balance?", nil)
	require.NoError(t, err)

	assert.Contains(t, reply, "todos los registros")
	assert.Contains(t, reply, "$100.000")
	assert.Contains(t, reply, "$130.000")
	assert.Contains(t, reply, "desfavorable")
}

func TestQueryUsesModelReply(t *testing.T) {
	env := newTestEnv(t)
	env.addExpense(t, env.user.ID, 20000)
	env.llm.script("query", "Hoy gastaste $20.000.")

	reply, err := env.svc.Tracker.Query(env.ctx, env.user.ID, "¿cuánto gasté hoy?", nil)
	require.NoError(t, err)
	assert.Equal(t, "Hoy gastaste $20.000.", reply)
}

func TestBuildQueryContext(t *testing.T) {
	env := newTestEnv(t)
	env.addIncome(t, env.user.ID, 50000)
	env.addExpense(t, env.user.ID, 20000)

	qc, err := env.svc.Tracker.BuildQueryContext(env.ctx, env.user.ID, ResolveRange("hoy", fixedNow))
	require.NoError(t, err)

	assert.Equal(t, "hoy", qc.Period)
	assert.Equal(t, "2026-04-10", qc.StartDate)
	assert.Equal(t, "$30.000", qc.Balance)
	assert.Equal(t, "favorable", qc.Status)
	assert.Len(t, qc.RecentExpenses, 1)
	assert.Len(t, qc.RecentIncomes, 1)
	require.Len(t, qc.ByCategory, 1)
	assert.Equal(t, model.DefaultCategoryName, qc.ByCategory[0].Category)
}
