package charts

import (
	"bytes"
	"fmt"
	"math"

	"github.com/ivanoskov/finchat_bot/internal/budget"
	"github.com/ivanoskov/finchat_bot/internal/model"
	"github.com/wcharczuk/go-chart/v2"
)

// ChartGenerator генерирует PNG-графики для отправки в чат
type ChartGenerator struct{}

// NewChartGenerator создает новый генератор графиков
func NewChartGenerator() *ChartGenerator {
	return &ChartGenerator{}
}

// ExpensesPie создает круговую диаграмму расходов по категориям.
// Без данных возвращает nil.
func (g *ChartGenerator) ExpensesPie(totals []model.CategoryTotal, title string) ([]byte, error) {
	total := 0.0
	for _, t := range totals {
		if v := t.Total.InexactFloat64(); v > 0 {
			total += v
		}
	}
	if total == 0 {
		return nil, nil
	}

	// Добавляем только категории с существенной долей (>1%)
	values := make([]chart.Value, 0, len(totals))
	for _, t := range totals {
		amount := t.Total.InexactFloat64()
		percentage := amount / total * 100
		if percentage > 1.0 {
			values = append(values, chart.Value{
				Label: fmt.Sprintf("%s: %s (%.1f%%)", t.Category, model.FormatMoney(t.Total), percentage),
				Value: amount,
				Style: chart.Style{
					FontSize:  12,
					FontColor: chart.ColorBlack,
				},
			})
		}
	}

	pie := chart.PieChart{
		Title:  title,
		Width:  800,
		Height: 800,
		Values: values,
		Background: chart.Style{
			Padding: chart.Box{
				Top:    50,
				Left:   50,
				Right:  50,
				Bottom: 50,
			},
			FillColor: chart.ColorWhite,
		},
	}

	buffer := bytes.NewBuffer([]byte{})
	if err := pie.Render(chart.PNG, buffer); err != nil {
		return nil, fmt.Errorf("failed to render expenses pie chart: %w", err)
	}
	return buffer.Bytes(), nil
}

// GoalsProgress создает столбчатую диаграмму прогресса целей в процентах.
// Без целей возвращает nil.
func (g *ChartGenerator) GoalsProgress(goals []model.SavingsGoal) ([]byte, error) {
	if len(goals) == 0 {
		return nil, nil
	}

	top := 100.0
	bars := make([]chart.Value, 0, len(goals))
	for _, goal := range goals {
		p := budget.GoalProgress(goal.Current, goal.Target)
		color := chart.ColorBlue
		if p.Completed {
			color = chart.ColorGreen
		}
		bars = append(bars, chart.Value{
			Label: goal.Name,
			Value: float64(p.Percent),
			Style: chart.Style{
				FillColor:   color,
				StrokeColor: color,
			},
		})
		top = math.Max(top, float64(p.Percent))
	}

	graph := chart.BarChart{
		Title:    "Progreso de metas (%)",
		Width:    800,
		Height:   500,
		BarWidth: 60,
		Background: chart.Style{
			Padding: chart.Box{
				Top:    40,
				Left:   20,
				Right:  20,
				Bottom: 20,
			},
			FillColor: chart.ColorWhite,
		},
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: 0, Max: top},
			ValueFormatter: func(v interface{}) string {
				return fmt.Sprintf("%.0f%%", v.(float64))
			},
		},
		Bars: bars,
	}

	buffer := bytes.NewBuffer([]byte{})
	if err := graph.Render(chart.PNG, buffer); err != nil {
		return nil, fmt.Errorf("failed to render goals chart: %w", err)
	}
	return buffer.Bytes(), nil
}
