package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Expense - запись о расходе
type Expense struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	CategoryID  *string         `json:"category_id"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Date        time.Time       `json:"date"`
	CreatedAt   time.Time       `json:"created_at"`
}

// GenerateID генерирует новый UUID для расхода, если он еще не установлен
func (e *Expense) GenerateID() {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
}

// Income - запись о доходе
type Income struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	CategoryID  *string         `json:"category_id"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Date        time.Time       `json:"date"`
	CreatedAt   time.Time       `json:"created_at"`
}

// GenerateID генерирует новый UUID для дохода, если он еще не установлен
func (i *Income) GenerateID() {
	if i.ID == "" {
		i.ID = uuid.New().String()
	}
}

// Summary - агрегат по суммам за период
type Summary struct {
	Total decimal.Decimal `json:"total_monto"`
	Count int             `json:"count"`
}

// CategoryTotal - сумма расходов по одной категории
type CategoryTotal struct {
	Category string          `json:"categoria"`
	Total    decimal.Decimal `json:"total"`
}
