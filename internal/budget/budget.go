// Package budget считает состояние месячного бюджета и прогресс целей.
// Ничего не хранит, все вычисляется по запросу.
package budget

import (
	"fmt"
	"strings"
	"time"

	"github.com/ivanoskov/finchat_bot/internal/model"
	"github.com/shopspring/decimal"
)

// ZeroIncomeTip показывается вместо процента, когда доходов за месяц нет
const ZeroIncomeTip = "💡 Aún no registras ingresos este mes. Anótalos para saber cuánto presupuesto te queda."

// Band - зона остатка бюджета
type Band int

const (
	BandPositive Band = iota
	BandCaution
	BandAlarming
)

var bands = map[Band]struct {
	emoji   string
	tag     string
	message string
}{
	BandAlarming: {"🔴", "Alerta", "Te queda muy poco presupuesto, modera tus gastos."},
	BandCaution:  {"🟡", "Precaución", "Vas bien, pero controla tus gastos."},
	BandPositive: {"🟢", "Bien", "¡Excelente! Tus finanzas están sanas."},
}

func (b Band) Emoji() string { return bands[b].emoji }
func (b Band) Tag() string   { return bands[b].tag }

// BandFor: <=20% тревога, <=50% осторожность, иначе все хорошо
func BandFor(percent int) Band {
	switch {
	case percent <= 20:
		return BandAlarming
	case percent <= 50:
		return BandCaution
	default:
		return BandPositive
	}
}

// Status - состояние бюджета текущего месяца
type Status struct {
	Income    decimal.Decimal
	Expense   decimal.Decimal
	Available decimal.Decimal
	Percent   int
	DaysLeft  int
	Band      Band
	NoIncome  bool
}

// Compute считает остаток, процент остатка от доходов и дни до конца месяца
func Compute(income, expense decimal.Decimal, today time.Time) Status {
	s := Status{
		Income:    income,
		Expense:   expense,
		Available: income.Sub(expense),
		DaysLeft:  DaysInMonth(today) - today.Day(),
	}
	if !income.IsPositive() {
		s.NoIncome = true
		return s
	}
	s.Percent = int(s.Available.Div(income).Mul(decimal.NewFromInt(100)).Round(0).IntPart())
	s.Band = BandFor(s.Percent)
	return s
}

// Message - текст для добавления к подтверждению расхода
func (s Status) Message() string {
	if s.NoIncome {
		return ZeroIncomeTip
	}
	b := bands[s.Band]
	return fmt.Sprintf("%s %s: te quedan %s (%d%% de tus ingresos) y faltan %d días para fin de mes. %s",
		b.emoji, b.tag, model.FormatMoney(s.Available), s.Percent, s.DaysLeft, b.message)
}

// DaysInMonth возвращает число дней в месяце даты
func DaysInMonth(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
}

// Progress - прогресс цели накопления
type Progress struct {
	Current   decimal.Decimal
	Target    decimal.Decimal
	Remaining decimal.Decimal
	Percent   int
	Completed bool
}

// GoalProgress считает прогресс. Current может превышать Target.
func GoalProgress(current, target decimal.Decimal) Progress {
	p := Progress{
		Current:   current,
		Target:    target,
		Completed: current.GreaterThanOrEqual(target),
	}
	if !p.Completed {
		p.Remaining = target.Sub(current)
	}
	if target.IsPositive() {
		p.Percent = int(current.Div(target).Mul(decimal.NewFromInt(100)).Floor().IntPart())
	} else {
		p.Percent = 100
	}
	return p
}

// Bar рисует полоску прогресса из width символов
func (p Progress) Bar(width int) string {
	filled := p.Percent * width / 100
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return strings.Repeat("▓", filled) + strings.Repeat("░", width-filled)
}
