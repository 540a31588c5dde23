package model

import "time"

// CategoryType - тип категории
type CategoryType string

const (
	CategoryExpense CategoryType = "EXPENSE"
	CategoryIncome  CategoryType = "INCOME"
)

// DefaultCategoryName отображается, когда у записи нет категории.
const DefaultCategoryName = "General"

// Category - категория расходов или доходов.
// UserID == nil означает общую категорию по умолчанию.
type Category struct {
	ID        string       `json:"id,omitempty"`
	UserID    *string      `json:"user_id"`
	Name      string       `json:"name"`
	Type      CategoryType `json:"type"`
	CreatedAt time.Time    `json:"created_at,omitempty"`
}

// CategoryName возвращает имя категории или "General" для nil.
func CategoryName(c *Category) string {
	if c == nil {
		return DefaultCategoryName
	}
	return c.Name
}
