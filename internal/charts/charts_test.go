package charts

import (
	"bytes"
	"testing"

	"github.com/ivanoskov/finchat_bot/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngMagic = []byte("\x89PNG")

func TestExpensesPie(t *testing.T) {
	g := NewChartGenerator()

	png, err := g.ExpensesPie([]model.CategoryTotal{
		{Category: "Alimentación", Total: decimal.NewFromInt(120000)},
		{Category: "Transporte", Total: decimal.NewFromInt(35000)},
	}, "Gastos del mes")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, pngMagic))
}

func TestExpensesPieWithoutData(t *testing.T) {
	png, err := NewChartGenerator().ExpensesPie(nil, "Gastos del mes")
	require.NoError(t, err)
	assert.Nil(t, png)
}

func TestGoalsProgress(t *testing.T) {
	g := NewChartGenerator()

	png, err := g.GoalsProgress([]model.SavingsGoal{
		{Name: "Viaje", Target: decimal.NewFromInt(50000), Current: decimal.NewFromInt(20000)},
		{Name: "Bici", Target: decimal.NewFromInt(30000), Current: decimal.NewFromInt(45000)},
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, pngMagic))

	png, err = g.GoalsProgress(nil)
	require.NoError(t, err)
	assert.Nil(t, png)
}
