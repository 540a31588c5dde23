package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ivanoskov/finchat_bot/internal/model"
	"github.com/shopspring/decimal"

	// Import sqlite driver
	_ "modernc.org/sqlite"
)

const (
	dateLayout      = "2006-01-02"
	timestampLayout = time.RFC3339Nano
)

// SQLiteRepository хранит данные в SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository открывает базу и применяет миграции.
func NewSQLiteRepository(path string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// SQLite допускает одного писателя; для ":memory:" единственное соединение
	// еще и гарантирует, что все запросы видят одну и ту же базу.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite: %w", err)
	}

	r := &SQLiteRepository{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate sqlite: %w", err)
	}
	return r, nil
}

// Close закрывает соединение с базой
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// DB отдает соединение для тестов и служебных утилит
func (r *SQLiteRepository) DB() *sql.DB {
	return r.db
}

func (r *SQLiteRepository) migrate() error {
	migrations := []string{
		`PRAGMA foreign_keys = ON`,
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT UNIQUE,
			channel_id INTEGER UNIQUE,
			name TEXT NOT NULL DEFAULT '',
			currency TEXT NOT NULL DEFAULT 'CLP',
			active INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS categories (
			id TEXT PRIMARY KEY,
			user_id TEXT REFERENCES users(id),
			name TEXT NOT NULL,
			type TEXT NOT NULL CHECK (type IN ('EXPENSE', 'INCOME')),
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS expenses (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id),
			category_id TEXT REFERENCES categories(id),
			amount TEXT NOT NULL,
			description TEXT NOT NULL,
			date TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS incomes (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id),
			category_id TEXT REFERENCES categories(id),
			amount TEXT NOT NULL,
			description TEXT NOT NULL,
			date TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS savings_goals (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id),
			name TEXT NOT NULL,
			target_amount TEXT NOT NULL,
			current_amount TEXT NOT NULL DEFAULT '0',
			deadline TEXT,
			icon TEXT NOT NULL DEFAULT '',
			color TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS savings_contributions (
			id TEXT PRIMARY KEY,
			goal_id TEXT NOT NULL REFERENCES savings_goals(id),
			amount TEXT NOT NULL,
			date TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS chat_messages (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id),
			role TEXT NOT NULL CHECK (role IN ('user', 'assistant')),
			text TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_expenses_user_date ON expenses(user_id, date)`,
		`CREATE INDEX IF NOT EXISTS idx_incomes_user_date ON incomes(user_id, date)`,
		`CREATE INDEX IF NOT EXISTS idx_chat_messages_user ON chat_messages(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_goals_user ON savings_goals(user_id)`,
	}

	for _, m := range migrations {
		if _, err := r.db.Exec(m); err != nil {
			return err
		}
	}

	return r.seedDefaultCategories()
}

// Общие категории создаются один раз, если таблица пуста
func (r *SQLiteRepository) seedDefaultCategories() error {
	var count int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM categories`).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	defaults := []model.Category{
		{Name: "Alimentación", Type: model.CategoryExpense},
		{Name: "Transporte", Type: model.CategoryExpense},
		{Name: "Vivienda", Type: model.CategoryExpense},
		{Name: "Salud", Type: model.CategoryExpense},
		{Name: "Entretenimiento", Type: model.CategoryExpense},
		{Name: "Educación", Type: model.CategoryExpense},
		{Name: "Otros gastos", Type: model.CategoryExpense},
		{Name: "Sueldo", Type: model.CategoryIncome},
		{Name: "Freelance", Type: model.CategoryIncome},
		{Name: "Otros ingresos", Type: model.CategoryIncome},
	}

	now := time.Now().UTC().Format(timestampLayout)
	for _, c := range defaults {
		if _, err := r.db.Exec(
			`INSERT INTO categories (id, user_id, name, type, created_at) VALUES (?, NULL, ?, ?, ?)`,
			uuid.New().String(), c.Name, string(c.Type), now,
		); err != nil {
			return fmt.Errorf("failed to seed category %s: %w", c.Name, err)
		}
	}
	return nil
}

// withTx выполняет fn в одной транзакции. Любая ошибка откатывает все изменения.
func (r *SQLiteRepository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetCategories(ctx context.Context, userID string, categoryType model.CategoryType) ([]model.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, name, type, created_at FROM categories
		WHERE type = ? AND (user_id IS NULL OR user_id = ?)
		ORDER BY user_id IS NOT NULL, created_at, rowid`,
		string(categoryType), userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get categories: %w", err)
	}
	defer rows.Close()

	var categories []model.Category
	for rows.Next() {
		var (
			c         model.Category
			owner     sql.NullString
			typ       string
			createdAt string
		)
		if err := rows.Scan(&c.ID, &owner, &c.Name, &typ, &createdAt); err != nil {
			return nil, err
		}
		if owner.Valid {
			c.UserID = &owner.String
		}
		c.Type = model.CategoryType(typ)
		c.CreatedAt = parseTimestamp(createdAt)
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (r *SQLiteRepository) CreateExpense(ctx context.Context, expense *model.Expense) error {
	expense.GenerateID()
	if expense.CreatedAt.IsZero() {
		expense.CreatedAt = time.Now()
	}
	if expense.Date.IsZero() {
		expense.Date = expense.CreatedAt
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO expenses (id, user_id, category_id, amount, description, date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		expense.ID, expense.UserID, expense.CategoryID, expense.Amount.String(), expense.Description,
		expense.Date.Format(dateLayout), expense.CreatedAt.UTC().Format(timestampLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to create expense: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) CreateIncome(ctx context.Context, income *model.Income) error {
	income.GenerateID()
	if income.CreatedAt.IsZero() {
		income.CreatedAt = time.Now()
	}
	if income.Date.IsZero() {
		income.Date = income.CreatedAt
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO incomes (id, user_id, category_id, amount, description, date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		income.ID, income.UserID, income.CategoryID, income.Amount.String(), income.Description,
		income.Date.Format(dateLayout), income.CreatedAt.UTC().Format(timestampLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to create income: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetExpenseSummary(ctx context.Context, userID string, period model.DateRange) (model.Summary, error) {
	return r.summary(ctx, "expenses", userID, period)
}

func (r *SQLiteRepository) GetIncomeSummary(ctx context.Context, userID string, period model.DateRange) (model.Summary, error) {
	return r.summary(ctx, "incomes", userID, period)
}

func (r *SQLiteRepository) summary(ctx context.Context, table, userID string, period model.DateRange) (model.Summary, error) {
	where, args := periodClause("", userID, period)
	rows, err := r.db.QueryContext(ctx, `SELECT amount FROM `+table+` WHERE `+where, args...)
	if err != nil {
		return model.Summary{}, fmt.Errorf("failed to get %s summary: %w", table, err)
	}
	defer rows.Close()

	summary := model.Summary{Total: decimal.Zero}
	for rows.Next() {
		var amount decimal.Decimal
		if err := rows.Scan(&amount); err != nil {
			return model.Summary{}, err
		}
		summary.Total = summary.Total.Add(amount)
		summary.Count++
	}
	return summary, rows.Err()
}

func (r *SQLiteRepository) GetRecentExpenses(ctx context.Context, userID string, period model.DateRange, limit int) ([]model.Expense, error) {
	rows, err := r.recent(ctx, "expenses", userID, period, limit)
	if err != nil {
		return nil, err
	}
	expenses := make([]model.Expense, 0, len(rows))
	for _, row := range rows {
		expenses = append(expenses, model.Expense(row))
	}
	return expenses, nil
}

func (r *SQLiteRepository) GetRecentIncomes(ctx context.Context, userID string, period model.DateRange, limit int) ([]model.Income, error) {
	rows, err := r.recent(ctx, "incomes", userID, period, limit)
	if err != nil {
		return nil, err
	}
	incomes := make([]model.Income, 0, len(rows))
	for _, row := range rows {
		incomes = append(incomes, model.Income(row))
	}
	return incomes, nil
}

// ledgerRow совпадает по полям с model.Expense и model.Income
type ledgerRow struct {
	ID          string
	UserID      string
	CategoryID  *string
	Amount      decimal.Decimal
	Description string
	Date        time.Time
	CreatedAt   time.Time
}

func (r *SQLiteRepository) recent(ctx context.Context, table, userID string, period model.DateRange, limit int) ([]ledgerRow, error) {
	where, args := periodClause("", userID, period)
	query := `SELECT id, user_id, category_id, amount, description, date, created_at FROM ` + table +
		` WHERE ` + where + ` ORDER BY date DESC, created_at DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", table, err)
	}
	defer rows.Close()

	var result []ledgerRow
	for rows.Next() {
		var (
			row       ledgerRow
			category  sql.NullString
			date      string
			createdAt string
		)
		if err := rows.Scan(&row.ID, &row.UserID, &category, &row.Amount, &row.Description, &date, &createdAt); err != nil {
			return nil, err
		}
		if category.Valid {
			row.CategoryID = &category.String
		}
		row.Date = parseDate(date)
		row.CreatedAt = parseTimestamp(createdAt)
		result = append(result, row)
	}
	return result, rows.Err()
}

func (r *SQLiteRepository) GetExpensesByCategory(ctx context.Context, userID string, period model.DateRange) ([]model.CategoryTotal, error) {
	where, args := periodClause("e", userID, period)
	rows, err := r.db.QueryContext(ctx,
		`SELECT c.name, e.amount FROM expenses e
		LEFT JOIN categories c ON c.id = e.category_id
		WHERE `+where,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get expenses by category: %w", err)
	}
	defer rows.Close()

	totals := make(map[string]decimal.Decimal)
	for rows.Next() {
		var (
			name   sql.NullString
			amount decimal.Decimal
		)
		if err := rows.Scan(&name, &amount); err != nil {
			return nil, err
		}
		key := model.DefaultCategoryName
		if name.Valid {
			key = name.String
		}
		totals[key] = totals[key].Add(amount)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sortCategoryTotals(totals), nil
}

func (r *SQLiteRepository) FindUserByChannelID(ctx context.Context, channelID int64) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, email, channel_id, name, currency, active, created_at FROM users WHERE channel_id = ?`,
		channelID,
	)
	return scanUser(row)
}

func (r *SQLiteRepository) FindUserByEmail(ctx context.Context, email string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, email, channel_id, name, currency, active, created_at FROM users WHERE email = ?`,
		normalizeEmail(email),
	)
	return scanUser(row)
}

func (r *SQLiteRepository) CreateUser(ctx context.Context, user *model.User) error {
	user.GenerateID()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	if user.Currency == "" {
		user.Currency = "CLP"
	}
	if user.Email != nil {
		email := normalizeEmail(*user.Email)
		user.Email = &email
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, channel_id, name, currency, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Email, user.ChannelID, user.Name, user.Currency, user.Active,
		user.CreatedAt.UTC().Format(timestampLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) MergeChannelAccount(ctx context.Context, channelID int64, targetUserID string) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		var current sql.NullInt64
		err := tx.QueryRowContext(ctx, `SELECT channel_id FROM users WHERE id = ?`, targetUserID).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("target user %s: %w", targetUserID, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to load target user: %w", err)
		}
		if current.Valid && current.Int64 != channelID {
			return fmt.Errorf("target user %s has channel %d: %w", targetUserID, current.Int64, ErrChannelConflict)
		}

		var fromID string
		err = tx.QueryRowContext(ctx, `SELECT id FROM users WHERE channel_id = ?`, channelID).Scan(&fromID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			fromID = ""
		case err != nil:
			return fmt.Errorf("failed to load channel user: %w", err)
		}

		if fromID != "" && fromID != targetUserID {
			if err := reassignOwnership(ctx, tx, fromID, targetUserID); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `UPDATE users SET channel_id = NULL WHERE id = ?`, fromID); err != nil {
				return fmt.Errorf("failed to clear channel id: %w", err)
			}
		}

		if _, err := tx.ExecContext(ctx, `UPDATE users SET channel_id = ? WHERE id = ?`, channelID, targetUserID); err != nil {
			return fmt.Errorf("failed to set channel id: %w", err)
		}
		return nil
	})
}

// expectOneRow проверяет, что запрос изменил ровно одну строку
func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n != 1 {
		return fmt.Errorf("%d rows affected", n)
	}
	return nil
}

// reassignOwnership переносит все записи fromID на toID внутри транзакции
func reassignOwnership(ctx context.Context, tx *sql.Tx, fromID, toID string) error {
	for _, table := range []string{"expenses", "incomes", "chat_messages", "savings_goals"} {
		if _, err := tx.ExecContext(ctx, `UPDATE `+table+` SET user_id = ? WHERE user_id = ?`, toID, fromID); err != nil {
			return fmt.Errorf("failed to reassign %s: %w", table, err)
		}
	}
	return nil
}

func (r *SQLiteRepository) CreateGoal(ctx context.Context, goal *model.SavingsGoal) error {
	goal.GenerateID()
	if goal.CreatedAt.IsZero() {
		goal.CreatedAt = time.Now()
	}
	var deadline *string
	if goal.Deadline != nil {
		d := goal.Deadline.Format(dateLayout)
		deadline = &d
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO savings_goals (id, user_id, name, target_amount, current_amount, deadline, icon, color, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		goal.ID, goal.UserID, goal.Name, goal.Target.String(), goal.Current.String(), deadline,
		goal.Icon, goal.Color, goal.CreatedAt.UTC().Format(timestampLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to create goal: %w", err)
	}
	return nil
}

const goalColumns = `id, user_id, name, target_amount, current_amount, deadline, icon, color, created_at`

func (r *SQLiteRepository) ListGoals(ctx context.Context, userID string) ([]model.SavingsGoal, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+goalColumns+` FROM savings_goals WHERE user_id = ? ORDER BY created_at, rowid`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list goals: %w", err)
	}
	defer rows.Close()

	var goals []model.SavingsGoal
	for rows.Next() {
		goal, err := scanGoal(rows)
		if err != nil {
			return nil, err
		}
		goals = append(goals, *goal)
	}
	return goals, rows.Err()
}

func (r *SQLiteRepository) FindGoal(ctx context.Context, goalID, userID string) (*model.SavingsGoal, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+goalColumns+` FROM savings_goals WHERE id = ? AND user_id = ?`, goalID, userID)
	goal, err := scanGoal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return goal, err
}

func (r *SQLiteRepository) AddContribution(ctx context.Context, userID string, contribution *model.SavingsContribution) (*model.SavingsGoal, error) {
	contribution.GenerateID()
	if contribution.CreatedAt.IsZero() {
		contribution.CreatedAt = time.Now()
	}
	if contribution.Date.IsZero() {
		contribution.Date = contribution.CreatedAt
	}

	var updated *model.SavingsGoal
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx,
			`SELECT `+goalColumns+` FROM savings_goals WHERE id = ? AND user_id = ?`, contribution.GoalID, userID)
		goal, err := scanGoal(row)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load goal: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO savings_contributions (id, goal_id, amount, date, created_at) VALUES (?, ?, ?, ?, ?)`,
			contribution.ID, contribution.GoalID, contribution.Amount.String(),
			contribution.Date.Format(dateLayout), contribution.CreatedAt.UTC().Format(timestampLayout),
		); err != nil {
			return fmt.Errorf("failed to insert contribution: %w", err)
		}

		goal.Current = goal.Current.Add(contribution.Amount)
		res, err := tx.ExecContext(ctx,
			`UPDATE savings_goals SET current_amount = ? WHERE id = ?`, goal.Current.String(), goal.ID)
		if err != nil {
			return fmt.Errorf("failed to update goal amount: %w", err)
		}
		if err := expectOneRow(res); err != nil {
			return fmt.Errorf("failed to update goal amount: %w", err)
		}
		updated = goal
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ContributionsForGoal возвращает взносы цели, от старых к новым
func (r *SQLiteRepository) ContributionsForGoal(ctx context.Context, goalID string) ([]model.SavingsContribution, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, goal_id, amount, date, created_at FROM savings_contributions WHERE goal_id = ? ORDER BY rowid`, goalID)
	if err != nil {
		return nil, fmt.Errorf("failed to get contributions: %w", err)
	}
	defer rows.Close()

	var result []model.SavingsContribution
	for rows.Next() {
		var (
			c         model.SavingsContribution
			date      string
			createdAt string
		)
		if err := rows.Scan(&c.ID, &c.GoalID, &c.Amount, &date, &createdAt); err != nil {
			return nil, err
		}
		c.Date = parseDate(date)
		c.CreatedAt = parseTimestamp(createdAt)
		result = append(result, c)
	}
	return result, rows.Err()
}

func (r *SQLiteRepository) SaveChatMessage(ctx context.Context, message *model.ChatMessage) error {
	message.GenerateID()
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO chat_messages (id, user_id, role, text, created_at) VALUES (?, ?, ?, ?, ?)`,
		message.ID, message.UserID, string(message.Role), message.Text, message.CreatedAt.UTC().Format(timestampLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to save chat message: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetRecentChatHistory(ctx context.Context, userID string, limit int) ([]model.ChatMessage, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, role, text, created_at FROM chat_messages
		WHERE user_id = ? ORDER BY rowid DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get chat history: %w", err)
	}
	defer rows.Close()

	var history []model.ChatMessage
	for rows.Next() {
		var (
			m         model.ChatMessage
			role      string
			createdAt string
		)
		if err := rows.Scan(&m.ID, &m.UserID, &role, &m.Text, &createdAt); err != nil {
			return nil, err
		}
		m.Role = model.ChatRole(role)
		m.CreatedAt = parseTimestamp(createdAt)
		history = append(history, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Возвращаем в хронологическом порядке
	for i, j := 0, len(history)-1; i < j; i, j = i+1, j-1 {
		history[i], history[j] = history[j], history[i]
	}
	return history, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	var (
		u         model.User
		email     sql.NullString
		channel   sql.NullInt64
		createdAt string
	)
	err := row.Scan(&u.ID, &email, &channel, &u.Name, &u.Currency, &u.Active, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	if email.Valid {
		u.Email = &email.String
	}
	if channel.Valid {
		u.ChannelID = &channel.Int64
	}
	u.CreatedAt = parseTimestamp(createdAt)
	return &u, nil
}

func scanGoal(row rowScanner) (*model.SavingsGoal, error) {
	var (
		g         model.SavingsGoal
		deadline  sql.NullString
		createdAt string
	)
	if err := row.Scan(&g.ID, &g.UserID, &g.Name, &g.Target, &g.Current, &deadline, &g.Icon, &g.Color, &createdAt); err != nil {
		return nil, err
	}
	if deadline.Valid {
		d := parseDate(deadline.String)
		g.Deadline = &d
	}
	g.CreatedAt = parseTimestamp(createdAt)
	return &g, nil
}

// periodClause строит условие WHERE по пользователю и периоду
func periodClause(alias, userID string, period model.DateRange) (string, []any) {
	if alias != "" {
		alias += "."
	}
	clauses := []string{alias + "user_id = ?"}
	args := []any{userID}
	if period.Start != nil {
		clauses = append(clauses, alias+"date >= ?")
		args = append(args, period.Start.Format(dateLayout))
	}
	if period.End != nil {
		clauses = append(clauses, alias+"date <= ?")
		args = append(args, period.End.Format(dateLayout))
	}
	return strings.Join(clauses, " AND "), args
}

func sortCategoryTotals(totals map[string]decimal.Decimal) []model.CategoryTotal {
	result := make([]model.CategoryTotal, 0, len(totals))
	for name, total := range totals {
		result = append(result, model.CategoryTotal{Category: name, Total: total})
	}
	// Сортируем по убыванию суммы
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Total.Equal(result[j].Total) {
			return result[i].Total.GreaterThan(result[j].Total)
		}
		return result[i].Category < result[j].Category
	})
	return result
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func parseDate(s string) time.Time {
	t, err := time.ParseInLocation(dateLayout, s, time.Local)
	if err != nil {
		return time.Time{}
	}
	return t
}

func parseTimestamp(s string) time.Time {
	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t.Local()
}
