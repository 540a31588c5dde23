package repository

import (
	"testing"
	"time"

	"github.com/ivanoskov/finchat_bot/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRPCResponse(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantErr  bool
		notFound bool
	}{
		{name: "ok", body: `{"ok": true}`},
		{name: "ok with goal", body: `{"ok": true, "goal": {"id": "g1"}}`},
		{name: "not found", body: `{"ok": false, "error": "not_found"}`, wantErr: true, notFound: true},
		{name: "channel conflict", body: `{"ok": false, "error": "channel_conflict"}`, wantErr: true},
		{name: "postgrest error", body: `{"code": "P0001", "message": "boom"}`, wantErr: true},
		{name: "empty body", body: "", wantErr: true},
		{name: "garbage", body: "<html>", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := parseRPCResponse("fn", tt.body)
			if !tt.wantErr {
				require.NoError(t, err)
				assert.True(t, result.OK)
				return
			}
			require.Error(t, err)
			if tt.name == "channel conflict" {
				assert.ErrorIs(t, err, ErrChannelConflict)
			}
			if tt.notFound {
				assert.ErrorIs(t, err, ErrNotFound)
			} else {
				assert.NotErrorIs(t, err, ErrNotFound)
			}
		})
	}
}

func TestGoalRowConversion(t *testing.T) {
	deadline := "2024-12-31"
	row := goalRow{
		ID:        "g1",
		UserID:    "u1",
		Name:      "Viaje",
		Target:    decimal.NewFromInt(50000),
		Current:   decimal.NewFromInt(20000),
		Deadline:  &deadline,
		CreatedAt: "2024-05-15T10:00:00.5+00:00",
	}

	goal := row.goal()
	assert.Equal(t, "Viaje", goal.Name)
	require.NotNil(t, goal.Deadline)
	assert.Equal(t, time.December, goal.Deadline.Month())
	assert.False(t, goal.CreatedAt.IsZero())
	assert.False(t, goal.Completed())
}

func TestLedgerRecordDates(t *testing.T) {
	date := time.Date(2024, 5, 15, 23, 30, 0, 0, time.Local)
	rec := toLedgerRecord(model.Expense{ID: "e1", Amount: decimal.NewFromInt(10), Date: date, CreatedAt: date})
	assert.Equal(t, "2024-05-15", rec.Date)

	back := rec.expense()
	assert.Equal(t, 15, back.Date.Day())
	assert.True(t, decimal.NewFromInt(10).Equal(back.Amount))
}
