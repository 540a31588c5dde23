package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ivanoskov/finchat_bot/internal/model"
	"github.com/shopspring/decimal"
	"github.com/supabase-community/postgrest-go"
	"github.com/supabase-community/supabase-go"
)

// SupabaseRepository работает с Postgres через PostgREST.
// Атомарные операции выполняются хранимыми функциями (deploy/supabase/functions.sql).
type SupabaseRepository struct {
	client *supabase.Client
}

func NewSupabaseRepository(url, key string) (*SupabaseRepository, error) {
	client, err := supabase.NewClient(url, key, &supabase.ClientOptions{})
	if err != nil {
		return nil, err
	}

	return &SupabaseRepository{
		client: client,
	}, nil
}

// Строки таблиц в формате PostgREST. Даты приходят как "2006-01-02".
type categoryRow struct {
	ID        string  `json:"id"`
	UserID    *string `json:"user_id"`
	Name      string  `json:"name"`
	Type      string  `json:"type"`
	CreatedAt string  `json:"created_at,omitempty"`
}

type ledgerRecord struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	CategoryID  *string         `json:"category_id"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Date        string          `json:"date"`
	CreatedAt   string          `json:"created_at"`
}

type userRow struct {
	ID        string  `json:"id"`
	Email     *string `json:"email"`
	ChannelID *int64  `json:"channel_id"`
	Name      string  `json:"name"`
	Currency  string  `json:"currency"`
	Active    bool    `json:"active"`
	CreatedAt string  `json:"created_at"`
}

type goalRow struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Name      string          `json:"name"`
	Target    decimal.Decimal `json:"target_amount"`
	Current   decimal.Decimal `json:"current_amount"`
	Deadline  *string         `json:"deadline"`
	Icon      string          `json:"icon"`
	Color     string          `json:"color"`
	CreatedAt string          `json:"created_at"`
}

type chatRow struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Role      string `json:"role"`
	Text      string `json:"text"`
	CreatedAt string `json:"created_at"`
}

// rpcResult - ответ хранимой функции либо ошибка PostgREST
type rpcResult struct {
	OK      bool            `json:"ok"`
	Error   string          `json:"error"`
	Goal    json.RawMessage `json:"goal"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
}

func (r *SupabaseRepository) GetCategories(ctx context.Context, userID string, categoryType model.CategoryType) ([]model.Category, error) {
	var rows []categoryRow

	// Общие категории
	data, _, err := r.client.From("categories").
		Select("*", "", false).
		Eq("type", string(categoryType)).
		Is("user_id", "null").
		Order("created_at", &postgrest.OrderOpts{Ascending: true}).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get categories: %w", err)
	}
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse categories: %w", err)
	}

	// Категории пользователя
	var own []categoryRow
	data, _, err = r.client.From("categories").
		Select("*", "", false).
		Eq("type", string(categoryType)).
		Eq("user_id", userID).
		Order("created_at", &postgrest.OrderOpts{Ascending: true}).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get user categories: %w", err)
	}
	if err := json.Unmarshal(data, &own); err != nil {
		return nil, fmt.Errorf("failed to parse user categories: %w", err)
	}
	rows = append(rows, own...)

	categories := make([]model.Category, 0, len(rows))
	for _, row := range rows {
		categories = append(categories, model.Category{
			ID:        row.ID,
			UserID:    row.UserID,
			Name:      row.Name,
			Type:      model.CategoryType(row.Type),
			CreatedAt: parseTimestamp(row.CreatedAt),
		})
	}
	return categories, nil
}

func (r *SupabaseRepository) CreateExpense(ctx context.Context, expense *model.Expense) error {
	expense.GenerateID()
	if expense.CreatedAt.IsZero() {
		expense.CreatedAt = time.Now()
	}
	if expense.Date.IsZero() {
		expense.Date = expense.CreatedAt
	}
	return r.insertLedger("expenses", toLedgerRecord(*expense))
}

func (r *SupabaseRepository) CreateIncome(ctx context.Context, income *model.Income) error {
	income.GenerateID()
	if income.CreatedAt.IsZero() {
		income.CreatedAt = time.Now()
	}
	if income.Date.IsZero() {
		income.Date = income.CreatedAt
	}
	return r.insertLedger("incomes", toLedgerRecord(model.Expense(*income)))
}

func (r *SupabaseRepository) insertLedger(table string, record ledgerRecord) error {
	_, _, err := r.client.From(table).Insert(record, false, "", "minimal", "").Execute()
	if err != nil {
		return fmt.Errorf("failed to create %s row: %w", table, err)
	}
	return nil
}

func toLedgerRecord(e model.Expense) ledgerRecord {
	return ledgerRecord{
		ID:          e.ID,
		UserID:      e.UserID,
		CategoryID:  e.CategoryID,
		Amount:      e.Amount,
		Description: e.Description,
		Date:        e.Date.Format(dateLayout),
		CreatedAt:   e.CreatedAt.UTC().Format(timestampLayout),
	}
}

func (rec ledgerRecord) expense() model.Expense {
	return model.Expense{
		ID:          rec.ID,
		UserID:      rec.UserID,
		CategoryID:  rec.CategoryID,
		Amount:      rec.Amount,
		Description: rec.Description,
		Date:        parseDate(rec.Date),
		CreatedAt:   parseTimestamp(rec.CreatedAt),
	}
}

// selectLedger выбирает строки расходов/доходов пользователя за период
func (r *SupabaseRepository) selectLedger(table, columns, userID string, period model.DateRange, limit int) ([]ledgerRecord, error) {
	query := r.client.From(table).
		Select(columns, "", false).
		Eq("user_id", userID)

	if period.Start != nil {
		query = query.Gte("date", period.Start.Format(dateLayout))
	}
	if period.End != nil {
		query = query.Lte("date", period.End.Format(dateLayout))
	}

	// Сначала новые
	query = query.Order("date", &postgrest.OrderOpts{Ascending: false})
	if limit > 0 {
		query = query.Limit(limit, "")
	}

	data, _, err := query.Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", table, err)
	}

	var records []ledgerRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", table, err)
	}
	return records, nil
}

func (r *SupabaseRepository) GetExpenseSummary(ctx context.Context, userID string, period model.DateRange) (model.Summary, error) {
	return r.summary("expenses", userID, period)
}

func (r *SupabaseRepository) GetIncomeSummary(ctx context.Context, userID string, period model.DateRange) (model.Summary, error) {
	return r.summary("incomes", userID, period)
}

func (r *SupabaseRepository) summary(table, userID string, period model.DateRange) (model.Summary, error) {
	records, err := r.selectLedger(table, "amount,date", userID, period, 0)
	if err != nil {
		return model.Summary{}, err
	}
	summary := model.Summary{Total: decimal.Zero, Count: len(records)}
	for _, rec := range records {
		summary.Total = summary.Total.Add(rec.Amount)
	}
	return summary, nil
}

func (r *SupabaseRepository) GetRecentExpenses(ctx context.Context, userID string, period model.DateRange, limit int) ([]model.Expense, error) {
	records, err := r.selectLedger("expenses", "*", userID, period, limit)
	if err != nil {
		return nil, err
	}
	expenses := make([]model.Expense, 0, len(records))
	for _, rec := range records {
		expenses = append(expenses, rec.expense())
	}
	return expenses, nil
}

func (r *SupabaseRepository) GetRecentIncomes(ctx context.Context, userID string, period model.DateRange, limit int) ([]model.Income, error) {
	records, err := r.selectLedger("incomes", "*", userID, period, limit)
	if err != nil {
		return nil, err
	}
	incomes := make([]model.Income, 0, len(records))
	for _, rec := range records {
		incomes = append(incomes, model.Income(rec.expense()))
	}
	return incomes, nil
}

func (r *SupabaseRepository) GetExpensesByCategory(ctx context.Context, userID string, period model.DateRange) ([]model.CategoryTotal, error) {
	records, err := r.selectLedger("expenses", "amount,date,category_id", userID, period, 0)
	if err != nil {
		return nil, err
	}
	categories, err := r.GetCategories(ctx, userID, model.CategoryExpense)
	if err != nil {
		return nil, err
	}

	// Создаем мапу ID -> Name для категорий
	names := make(map[string]string, len(categories))
	for _, c := range categories {
		names[c.ID] = c.Name
	}

	totals := make(map[string]decimal.Decimal)
	for _, rec := range records {
		name := model.DefaultCategoryName
		if rec.CategoryID != nil {
			if n, ok := names[*rec.CategoryID]; ok {
				name = n
			}
		}
		totals[name] = totals[name].Add(rec.Amount)
	}
	return sortCategoryTotals(totals), nil
}

func (r *SupabaseRepository) findUser(column, value string) (*model.User, error) {
	data, _, err := r.client.From("users").
		Select("*", "", false).
		Eq(column, value).
		Limit(1, "").
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	var rows []userRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse user: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	row := rows[0]
	return &model.User{
		ID:        row.ID,
		Email:     row.Email,
		ChannelID: row.ChannelID,
		Name:      row.Name,
		Currency:  row.Currency,
		Active:    row.Active,
		CreatedAt: parseTimestamp(row.CreatedAt),
	}, nil
}

func (r *SupabaseRepository) FindUserByChannelID(ctx context.Context, channelID int64) (*model.User, error) {
	return r.findUser("channel_id", strconv.FormatInt(channelID, 10))
}

func (r *SupabaseRepository) FindUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findUser("email", normalizeEmail(email))
}

func (r *SupabaseRepository) CreateUser(ctx context.Context, user *model.User) error {
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
	row := userRow{
		ID:        user.ID,
		Email:     user.Email,
		ChannelID: user.ChannelID,
		Name:      user.Name,
		Currency:  user.Currency,
		Active:    user.Active,
		CreatedAt: user.CreatedAt.UTC().Format(timestampLayout),
	}
	if _, _, err := r.client.From("users").Insert(row, false, "", "minimal", "").Execute(); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// rpc вызывает хранимую функцию. Функции возвращают {"ok": true, ...};
// любое другое тело (ошибка PostgREST, пустой ответ) считается неудачей.
func (r *SupabaseRepository) rpc(name string, params map[string]any) (*rpcResult, error) {
	return parseRPCResponse(name, r.client.Rpc(name, "", params))
}

func parseRPCResponse(name, body string) (*rpcResult, error) {
	if strings.TrimSpace(body) == "" {
		return nil, fmt.Errorf("rpc %s: empty response", name)
	}

	var result rpcResult
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		return nil, fmt.Errorf("rpc %s: failed to parse response %q: %w", name, body, err)
	}
	if result.OK {
		return &result, nil
	}
	switch result.Error {
	case "not_found":
		return nil, fmt.Errorf("rpc %s: %w", name, ErrNotFound)
	case "channel_conflict":
		return nil, fmt.Errorf("rpc %s: %w", name, ErrChannelConflict)
	}
	if result.Message != "" {
		return nil, fmt.Errorf("rpc %s failed: %s (%s)", name, result.Message, result.Code)
	}
	return nil, fmt.Errorf("rpc %s failed: %s", name, result.Error)
}

func (r *SupabaseRepository) MergeChannelAccount(ctx context.Context, channelID int64, targetUserID string) error {
	_, err := r.rpc("merge_channel_account", map[string]any{
		"p_channel_id":     channelID,
		"p_target_user_id": targetUserID,
	})
	return err
}

func (r *SupabaseRepository) CreateGoal(ctx context.Context, goal *model.SavingsGoal) error {
	goal.GenerateID()
	if goal.CreatedAt.IsZero() {
		goal.CreatedAt = time.Now()
	}
	row := goalRow{
		ID:        goal.ID,
		UserID:    goal.UserID,
		Name:      goal.Name,
		Target:    goal.Target,
		Current:   goal.Current,
		Icon:      goal.Icon,
		Color:     goal.Color,
		CreatedAt: goal.CreatedAt.UTC().Format(timestampLayout),
	}
	if goal.Deadline != nil {
		d := goal.Deadline.Format(dateLayout)
		row.Deadline = &d
	}
	if _, _, err := r.client.From("savings_goals").Insert(row, false, "", "minimal", "").Execute(); err != nil {
		return fmt.Errorf("failed to create goal: %w", err)
	}
	return nil
}

func (row goalRow) goal() *model.SavingsGoal {
	g := &model.SavingsGoal{
		ID:        row.ID,
		UserID:    row.UserID,
		Name:      row.Name,
		Target:    row.Target,
		Current:   row.Current,
		Icon:      row.Icon,
		Color:     row.Color,
		CreatedAt: parseTimestamp(row.CreatedAt),
	}
	if row.Deadline != nil {
		d := parseDate(*row.Deadline)
		g.Deadline = &d
	}
	return g
}

func (r *SupabaseRepository) ListGoals(ctx context.Context, userID string) ([]model.SavingsGoal, error) {
	data, _, err := r.client.From("savings_goals").
		Select("*", "", false).
		Eq("user_id", userID).
		Order("created_at", &postgrest.OrderOpts{Ascending: true}).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to list goals: %w", err)
	}
	var rows []goalRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse goals: %w", err)
	}
	goals := make([]model.SavingsGoal, 0, len(rows))
	for _, row := range rows {
		goals = append(goals, *row.goal())
	}
	return goals, nil
}

func (r *SupabaseRepository) FindGoal(ctx context.Context, goalID, userID string) (*model.SavingsGoal, error) {
	data, _, err := r.client.From("savings_goals").
		Select("*", "", false).
		Eq("id", goalID).
		Eq("user_id", userID).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to find goal: %w", err)
	}
	var rows []goalRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse goal: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return rows[0].goal(), nil
}

func (r *SupabaseRepository) AddContribution(ctx context.Context, userID string, contribution *model.SavingsContribution) (*model.SavingsGoal, error) {
	contribution.GenerateID()
	if contribution.Date.IsZero() {
		contribution.Date = time.Now()
	}
	result, err := r.rpc("add_goal_contribution", map[string]any{
		"p_id":      contribution.ID,
		"p_goal_id": contribution.GoalID,
		"p_user_id": userID,
		"p_amount":  contribution.Amount.String(),
		"p_date":    contribution.Date.Format(dateLayout),
	})
	if err != nil {
		return nil, err
	}

	var row goalRow
	if err := json.Unmarshal(result.Goal, &row); err != nil {
		return nil, fmt.Errorf("failed to parse updated goal: %w", err)
	}
	return row.goal(), nil
}

func (r *SupabaseRepository) SaveChatMessage(ctx context.Context, message *model.ChatMessage) error {
	message.GenerateID()
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now()
	}
	row := chatRow{
		ID:        message.ID,
		UserID:    message.UserID,
		Role:      string(message.Role),
		Text:      message.Text,
		CreatedAt: message.CreatedAt.UTC().Format(timestampLayout),
	}
	if _, _, err := r.client.From("chat_messages").Insert(row, false, "", "minimal", "").Execute(); err != nil {
		return fmt.Errorf("failed to save chat message: %w", err)
	}
	return nil
}

func (r *SupabaseRepository) GetRecentChatHistory(ctx context.Context, userID string, limit int) ([]model.ChatMessage, error) {
	data, _, err := r.client.From("chat_messages").
		Select("*", "", false).
		Eq("user_id", userID).
		Order("created_at", &postgrest.OrderOpts{Ascending: false}).
		Limit(limit, "").
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get chat history: %w", err)
	}
	var rows []chatRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse chat history: %w", err)
	}

	history := make([]model.ChatMessage, len(rows))
	for i, row := range rows {
		// Ответ отсортирован от новых к старым, разворачиваем
		history[len(rows)-1-i] = model.ChatMessage{
			ID:        row.ID,
			UserID:    row.UserID,
			Role:      model.ChatRole(row.Role),
			Text:      row.Text,
			CreatedAt: parseTimestamp(row.CreatedAt),
		}
	}
	return history, nil
}
