package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SavingsGoal - цель накопления.
// Current может превышать Target, цель считается выполненной при Current >= Target.
type SavingsGoal struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Name      string          `json:"name"`
	Target    decimal.Decimal `json:"target_amount"`
	Current   decimal.Decimal `json:"current_amount"`
	Deadline  *time.Time      `json:"deadline"`
	Icon      string          `json:"icon"`
	Color     string          `json:"color"`
	CreatedAt time.Time       `json:"created_at"`
}

// GenerateID генерирует новый UUID для цели, если он еще не установлен
func (g *SavingsGoal) GenerateID() {
	if g.ID == "" {
		g.ID = uuid.New().String()
	}
}

// Completed сообщает, достигнута ли цель
func (g *SavingsGoal) Completed() bool {
	return g.Current.GreaterThanOrEqual(g.Target)
}

// SavingsContribution - взнос в цель накопления. Только добавляется.
type SavingsContribution struct {
	ID        string          `json:"id"`
	GoalID    string          `json:"goal_id"`
	Amount    decimal.Decimal `json:"amount"`
	Date      time.Time       `json:"date"`
	CreatedAt time.Time       `json:"created_at"`
}

// GenerateID генерирует новый UUID для взноса, если он еще не установлен
func (c *SavingsContribution) GenerateID() {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
}
