package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/ivanoskov/finchat_bot/internal/budget"
	"github.com/ivanoskov/finchat_bot/internal/extraction"
	"github.com/ivanoskov/finchat_bot/internal/model"
	"github.com/ivanoskov/finchat_bot/internal/repository"
	"github.com/shopspring/decimal"
)

var (
	goalNamePattern = regexp.MustCompile(`(?i)\bpara\s+(?:(?:un|una|el|la|mi|mis|los|las)\s+)?([\p{L}][\p{L} ]*)`)
	goalNameTail    = regexp.MustCompile(`(?i)\s+(?:de|por|con|en|y)$`)
	cadencePhrases  = []string{"cada mes", "al mes", "por mes", "mensual", "cada semana", "a la semana", "por semana", "semanal", "quincena"}
)

// Goals управляет целями накопления
type Goals struct {
	repo   repository.Repository
	llm    Extractor
	logger *slog.Logger
	now    func() time.Time
}

// ContributionResult - результат взноса: взнос, обновленная цель и прогресс
type ContributionResult struct {
	Contribution model.SavingsContribution
	Goal         model.SavingsGoal
	Progress     budget.Progress
}

// NewGoals создает новый экземпляр Goals
func NewGoals(repo repository.Repository, llm Extractor, logger *slog.Logger) *Goals {
	return &Goals{
		repo:   repo,
		llm:    llm,
		logger: orDiscard(logger),
		now:    time.Now,
	}
}

// CreateFromMessage создает цель по сообщению вида "quiero ahorrar 2 millones para un viaje"
func (g *Goals) CreateFromMessage(ctx context.Context, userID, text string) (string, error) {
	ex := g.llm.ExtractGoal(ctx, text)

	name := ex.Name
	if name == "" {
		name = goalNameFromText(text)
	}
	target := ex.Target
	if target == nil && ex.Error {
		if v, ok := extraction.ParseAmount(text); ok {
			target = &v
		}
	}

	switch {
	case target == nil && (ex.Recurring || mentionsCadence(text)):
		if name != "" {
			return fmt.Sprintf("Para crear la meta \"%s\" necesito el monto TOTAL que quieres reunir, no el aporte mensual. ¿Cuánto es en total? 🎯", name), nil
		}
		return "Para crear la meta necesito el monto TOTAL que quieres reunir, no el aporte mensual. ¿Cuánto es en total y para qué es? 🎯", nil
	case name == "" && target == nil:
		if ex.ClarifyingPrompt != "" {
			return ex.ClarifyingPrompt, nil
		}
		return "Cuéntame para qué quieres ahorrar y cuánto, por ejemplo: \"quiero ahorrar 1 millón para un viaje\".", nil
	case name == "":
		return fmt.Sprintf("¿Para qué quieres ahorrar %s? Dime el nombre de la meta, por ejemplo: \"para un viaje\".", model.FormatMoney(*target)), nil
	case target == nil:
		return fmt.Sprintf("¿Cuánto quieres reunir para %s? 💰", name), nil
	case !target.IsPositive():
		return invalidAmountReply, nil
	}

	goal := &model.SavingsGoal{
		UserID:    userID,
		Name:      capitalize(name),
		Target:    *target,
		Current:   decimal.Zero,
		Icon:      "🎯",
		Color:     "#4CAF50",
		CreatedAt: g.now(),
	}
	if err := g.repo.CreateGoal(ctx, goal); err != nil {
		return "", err
	}
	g.logger.Info("goal created", "user_id", userID, "goal_id", goal.ID)

	return fmt.Sprintf("🎯 Meta creada: %s\nObjetivo: %s\n\nCuando quieras abonar, escribe por ejemplo: \"abona 20 mil a %s\".",
		goal.Name, model.FormatMoney(goal.Target), strings.ToLower(goal.Name)), nil
}

// ContributeFromMessage абонирует сумму в существующую цель
func (g *Goals) ContributeFromMessage(ctx context.Context, userID, text string) (string, error) {
	goals, err := g.List(ctx, userID)
	if err != nil {
		return "", err
	}
	if len(goals) == 0 {
		return "Aún no tienes metas de ahorro 🐷. Crea una primero, por ejemplo: \"quiero ahorrar 1 millón para un viaje\".", nil
	}

	ex := g.llm.ExtractContribution(ctx, text, goals)
	if ex.Error {
		return ex.ClarifyingPrompt, nil
	}
	if ex.Goal == "" {
		return fmt.Sprintf("¿A qué meta quieres abonar? Tus metas: %s.", goalNames(goals)), nil
	}
	goal := extraction.MatchGoal(ex.Goal, goals)
	if goal == nil {
		return fmt.Sprintf("No encontré la meta \"%s\" 🤔. Tus metas: %s.", ex.Goal, goalNames(goals)), nil
	}
	if ex.Amount == nil {
		return fmt.Sprintf("¿Cuánto quieres abonar a %s? 💰", goal.Name), nil
	}

	res, err := g.AddMovement(ctx, goal.ID, userID, *ex.Amount, g.now())
	switch {
	case errors.Is(err, ErrInvalidAmount):
		return invalidAmountReply, nil
	case errors.Is(err, ErrGoalNotFound):
		return fmt.Sprintf("No encontré la meta \"%s\" 🤔. Tus metas: %s.", ex.Goal, goalNames(goals)), nil
	case err != nil:
		return "", err
	}

	reply := fmt.Sprintf("✅ Abonaste %s a %s\n%s %d%%\n%s de %s",
		model.FormatMoney(res.Contribution.Amount), res.Goal.Name,
		res.Progress.Bar(10), res.Progress.Percent,
		model.FormatMoney(res.Progress.Current), model.FormatMoney(res.Progress.Target))
	if res.Progress.Completed {
		reply += "\n\n🎉 ¡Felicitaciones! Completaste tu meta."
	} else {
		reply += fmt.Sprintf("\nTe faltan %s.", model.FormatMoney(res.Progress.Remaining))
	}
	return reply, nil
}

// AddMovement атомарно добавляет взнос в цель пользователя.
// Чужая или несуществующая цель дает ErrGoalNotFound.
func (g *Goals) AddMovement(ctx context.Context, goalID, userID string, amount decimal.Decimal, date time.Time) (*ContributionResult, error) {
	if _, err := g.repo.FindGoal(ctx, goalID, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrGoalNotFound
		}
		return nil, fmt.Errorf("failed to find goal: %w", err)
	}
	if !positive(&amount) {
		return nil, ErrInvalidAmount
	}

	contribution := &model.SavingsContribution{
		GoalID:    goalID,
		Amount:    amount,
		Date:      model.StartOfDay(date),
		CreatedAt: g.now(),
	}
	goal, err := g.repo.AddContribution(ctx, userID, contribution)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrGoalNotFound
		}
		g.logger.Error("contribution failed", "user_id", userID, "goal_id", goalID, "error", err)
		return nil, fmt.Errorf("failed to add contribution: %w", err)
	}

	return &ContributionResult{
		Contribution: *contribution,
		Goal:         *goal,
		Progress:     budget.GoalProgress(goal.Current, goal.Target),
	}, nil
}

// List возвращает цели пользователя
func (g *Goals) List(ctx context.Context, userID string) ([]model.SavingsGoal, error) {
	goals, err := g.repo.ListGoals(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list goals: %w", err)
	}
	return goals, nil
}

// FormatGoals форматирует список целей с прогрессом
func FormatGoals(goals []model.SavingsGoal) string {
	if len(goals) == 0 {
		return "Aún no tienes metas de ahorro 🐷. Crea una escribiendo, por ejemplo: \"quiero ahorrar 1 millón para un viaje\"."
	}
	var b strings.Builder
	b.WriteString("🎯 Tus metas de ahorro:\n")
	for _, goal := range goals {
		p := budget.GoalProgress(goal.Current, goal.Target)
		mark := ""
		if p.Completed {
			mark = " ✅"
		}
		fmt.Fprintf(&b, "\n%s %s%s\n%s %d%% (%s de %s)\n",
			goal.Icon, goal.Name, mark, p.Bar(10), p.Percent,
			model.FormatMoney(p.Current), model.FormatMoney(p.Target))
	}
	return strings.TrimRight(b.String(), "\n")
}

// goalNameFromText достает имя цели из фразы "para (un/una) <цель>"
func goalNameFromText(text string) string {
	m := goalNamePattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	name := strings.TrimSpace(m[1])
	for {
		trimmed := goalNameTail.ReplaceAllString(name, "")
		if trimmed == name {
			break
		}
		name = strings.TrimSpace(trimmed)
	}
	return name
}

func mentionsCadence(text string) bool {
	folded := extraction.Fold(text)
	for _, phrase := range cadencePhrases {
		if strings.Contains(folded, phrase) {
			return true
		}
	}
	return false
}

func goalNames(goals []model.SavingsGoal) string {
	names := make([]string, len(goals))
	for i, goal := range goals {
		names[i] = goal.Name
	}
	return strings.Join(names, ", ")
}

func capitalize(s string) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) == 0 {
		return ""
	}
	return strings.ToUpper(string(r[:1])) + string(r[1:])
}
