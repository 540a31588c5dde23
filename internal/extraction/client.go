package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ivanoskov/finchat_bot/internal/logging"
	"github.com/ivanoskov/finchat_bot/internal/model"
	"github.com/shopspring/decimal"
)

// Имена полей, которые модель не смогла извлечь
const (
	FieldAmount      = "amount"
	FieldDescription = "description"
	FieldName        = "name"
	FieldTarget      = "target"
	FieldGoal        = "goal"
)

// Result - общая часть результатов извлечения.
// Error выставляется, когда модель недоступна или ответила не-JSON.
type Result struct {
	MissingFields    []string
	Error            bool
	ClarifyingPrompt string
}

// Missing сообщает, отсутствует ли поле
func (r Result) Missing(field string) bool {
	for _, f := range r.MissingFields {
		if f == field {
			return true
		}
	}
	return false
}

// Transaction - извлеченный расход или доход
type Transaction struct {
	Result
	Amount      *decimal.Decimal
	Description string
	Category    string
}

// Goal - извлеченная новая цель накопления
type Goal struct {
	Result
	Name      string
	Target    *decimal.Decimal
	Recurring bool
}

// Contribution - извлеченный взнос в цель
type Contribution struct {
	Result
	Goal   string
	Amount *decimal.Decimal
}

// Client оборачивает Completer: задает таймаут, разбирает JSON и никогда не
// возвращает ошибку наружу. Любой сбой модели превращается в Error/ok=false.
type Client struct {
	llm     Completer
	prompts *Catalog
	timeout time.Duration
	logger  *slog.Logger
}

// NewClient создает клиента со встроенным каталогом инструкций
func NewClient(llm Completer, timeout time.Duration, logger *slog.Logger) *Client {
	return NewClientWithCatalog(llm, DefaultCatalog(), timeout, logger)
}

// NewClientWithCatalog создает клиента с заданным каталогом
func NewClientWithCatalog(llm Completer, prompts *Catalog, timeout time.Duration, logger *slog.Logger) *Client {
	if llm == nil {
		llm = Unavailable{}
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Client{llm: llm, prompts: prompts, timeout: timeout, logger: logger}
}

// ClassifyIntent определяет намерение. При любом сбое - IntentOther.
func (c *Client) ClassifyIntent(ctx context.Context, text string) model.Intent {
	var out struct {
		Intent string `json:"intent"`
	}
	if err := c.ask(ctx, &c.prompts.Intent, nil, text, &out); err != nil {
		c.logger.Warn("intent classification failed", "error", err)
		return model.IntentOther
	}
	return model.ParseIntent(out.Intent)
}

type transactionJSON struct {
	Amount      amountField `json:"monto"`
	Description *string     `json:"descripcion"`
	Category    *string     `json:"categoria"`
}

// ExtractExpense извлекает расход
func (c *Client) ExtractExpense(ctx context.Context, text string, categories []model.Category) Transaction {
	return c.extractTransaction(ctx, &c.prompts.Expense, text, categories)
}

// ExtractIncome извлекает доход
func (c *Client) ExtractIncome(ctx context.Context, text string, categories []model.Category) Transaction {
	return c.extractTransaction(ctx, &c.prompts.Income, text, categories)
}

func (c *Client) extractTransaction(ctx context.Context, p *Prompt, text string, categories []model.Category) Transaction {
	var out transactionJSON
	data := struct{ Categories string }{Categories: categoryList(categories)}
	if err := c.ask(ctx, p, data, text, &out); err != nil {
		c.logger.Warn("transaction extraction failed", "error", err)
		return Transaction{Result: c.failed(p)}
	}

	tx := Transaction{
		Amount:      guardAmount(text, out.Amount.value),
		Description: deref(out.Description),
		Category:    deref(out.Category),
	}
	if tx.Amount == nil {
		tx.MissingFields = append(tx.MissingFields, FieldAmount)
	}
	if tx.Description == "" {
		tx.MissingFields = append(tx.MissingFields, FieldDescription)
	}
	return tx
}

// ExtractGoal извлекает параметры новой цели
func (c *Client) ExtractGoal(ctx context.Context, text string) Goal {
	var out struct {
		Name      *string     `json:"nombre"`
		Target    amountField `json:"monto_objetivo"`
		Recurring bool        `json:"recurrente"`
	}
	if err := c.ask(ctx, &c.prompts.Goal, nil, text, &out); err != nil {
		c.logger.Warn("goal extraction failed", "error", err)
		return Goal{Result: c.failed(&c.prompts.Goal)}
	}

	g := Goal{
		Name:      deref(out.Name),
		Target:    guardAmount(text, out.Target.value),
		Recurring: out.Recurring,
	}
	if g.Name == "" {
		g.MissingFields = append(g.MissingFields, FieldName)
	}
	if g.Target == nil {
		g.MissingFields = append(g.MissingFields, FieldTarget)
	}
	return g
}

// ExtractContribution извлекает взнос в одну из существующих целей
func (c *Client) ExtractContribution(ctx context.Context, text string, goals []model.SavingsGoal) Contribution {
	var out struct {
		Goal   *string     `json:"meta"`
		Amount amountField `json:"monto"`
	}
	data := struct{ Goals string }{Goals: goalList(goals)}
	if err := c.ask(ctx, &c.prompts.Contribution, data, text, &out); err != nil {
		c.logger.Warn("contribution extraction failed", "error", err)
		return Contribution{Result: c.failed(&c.prompts.Contribution)}
	}

	ct := Contribution{
		Goal:   deref(out.Goal),
		Amount: guardAmount(text, out.Amount.value),
	}
	if ct.Goal == "" {
		ct.MissingFields = append(ct.MissingFields, FieldGoal)
	}
	if ct.Amount == nil {
		ct.MissingFields = append(ct.MissingFields, FieldAmount)
	}
	return ct
}

// GenerateGeneralResponse отвечает на свободное сообщение с учетом истории
func (c *Client) GenerateGeneralResponse(ctx context.Context, text string, history []model.ChatMessage) (string, bool) {
	reply, err := c.say(ctx, &c.prompts.General, nil, withHistory(text, history))
	if err != nil {
		c.logger.Warn("general response failed", "error", err)
		return "", false
	}
	return reply, true
}

// GenerateQueryResponse отвечает на вопрос о финансах по подготовленным данным
func (c *Client) GenerateQueryResponse(ctx context.Context, text string, queryContext any, history []model.ChatMessage) (string, bool) {
	raw, err := json.MarshalIndent(queryContext, "", "  ")
	if err != nil {
		c.logger.Warn("failed to encode query context", "error", err)
		return "", false
	}
	data := struct{ Context string }{Context: string(raw)}
	reply, err := c.say(ctx, &c.prompts.Query, data, withHistory(text, history))
	if err != nil {
		c.logger.Warn("query response failed", "error", err)
		return "", false
	}
	return reply, true
}

// ask выполняет запрос и разбирает JSON-ответ в out
func (c *Client) ask(ctx context.Context, p *Prompt, data any, text string, out any) error {
	reply, err := c.say(ctx, p, data, text)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(StripFences(reply)), out); err != nil {
		return fmt.Errorf("malformed model output: %w", err)
	}
	return nil
}

type completion struct {
	text string
	err  error
}

// say выполняет запрос с таймаутом. Ответ, пришедший после таймаута, отбрасывается.
func (c *Client) say(ctx context.Context, p *Prompt, data any, text string) (string, error) {
	system, err := p.Render(data)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	done := make(chan completion, 1)
	go func() {
		reply, err := c.llm.Complete(ctx, system, text)
		done <- completion{text: reply, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return "", res.err
		}
		reply := strings.TrimSpace(res.text)
		if reply == "" {
			return "", errors.New("empty model output")
		}
		return reply, nil
	case <-ctx.Done():
		return "", fmt.Errorf("model call abandoned: %w", ctx.Err())
	}
}

func (c *Client) failed(p *Prompt) Result {
	return Result{Error: true, ClarifyingPrompt: p.Clarify}
}

// StripFences убирает обрамление ```json ... ``` вокруг ответа модели
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// guardAmount отбрасывает сумму, которую модель придумала сама:
// если в тексте нет ни цифр, ни слов-сумм, суммы нет.
func guardAmount(text string, amount *decimal.Decimal) *decimal.Decimal {
	if amount == nil || !MentionsAmount(text) {
		return nil
	}
	return amount
}

func withHistory(text string, history []model.ChatMessage) string {
	if len(history) == 0 {
		return text
	}
	var b strings.Builder
	b.WriteString("Conversación previa:\n")
	for _, m := range history {
		who := "Usuario"
		if m.Role == model.RoleAssistant {
			who = "Asistente"
		}
		fmt.Fprintf(&b, "%s: %s\n", who, m.Text)
	}
	b.WriteString("\nMensaje actual:\n")
	b.WriteString(text)
	return b.String()
}

func categoryList(categories []model.Category) string {
	if len(categories) == 0 {
		return "(ninguna)"
	}
	names := make([]string, len(categories))
	for i, c := range categories {
		names[i] = c.Name
	}
	return strings.Join(names, ", ")
}

func goalList(goals []model.SavingsGoal) string {
	if len(goals) == 0 {
		return "(ninguna)"
	}
	names := make([]string, len(goals))
	for i, g := range goals {
		names[i] = g.Name
	}
	return strings.Join(names, ", ")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
