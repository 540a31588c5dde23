package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddMovementReachesTarget(t *testing.T) {
	env := newTestEnv(t)
	goal := env.addGoal(t, env.user.ID, "Viaje", 50000)

	res, err := env.svc.Goals.AddMovement(env.ctx, goal.ID, env.user.ID, amount(20000), fixedNow)
	require.NoError(t, err)
	assert.True(t, amount(20000).Equal(res.Goal.Current))
	assert.True(t, amount(20000).Equal(res.Contribution.Amount))
	assert.False(t, res.Progress.Completed)

	contributions, err := env.db.ContributionsForGoal(env.ctx, goal.ID)
	require.NoError(t, err)
	assert.Len(t, contributions, 1)

	res, err = env.svc.Goals.AddMovement(env.ctx, goal.ID, env.user.ID, amount(30000), fixedNow)
	require.NoError(t, err)
	assert.True(t, amount(50000).Equal(res.Goal.Current))
	assert.True(t, res.Progress.Completed)
}

func TestAddMovementUnknownGoal(t *testing.T) {
	env := newTestEnv(t)
	stranger := env.addWebUser(t, "otro@example.com")
	other := env.addGoal(t, stranger.ID, "Casa", 1000000)

	_, err := env.svc.Goals.AddMovement(env.ctx, other.ID, env.user.ID, amount(20000), fixedNow)
	assert.ErrorIs(t, err, ErrGoalNotFound)

	_, err = env.svc.Goals.AddMovement(env.ctx, "missing", env.user.ID, amount(20000), fixedNow)
	assert.ErrorIs(t, err, ErrGoalNotFound)

	contributions, err := env.db.ContributionsForGoal(env.ctx, other.ID)
	require.NoError(t, err)
	assert.Empty(t, contributions)

	goal, err := env.db.FindGoal(env.ctx, other.ID, stranger.ID)
	require.NoError(t, err)
	assert.True(t, goal.Current.IsZero())
}

func TestAddMovementInvalidAmount(t *testing.T) {
	env := newTestEnv(t)
	goal := env.addGoal(t, env.user.ID, "Viaje", 50000)

	_, err := env.svc.Goals.AddMovement(env.ctx, goal.ID, env.user.ID, amount(0), fixedNow)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestCreateGoalFromMessage(t *testing.T) {
	env := newTestEnv(t)
	env.llm.script("goal", `{"nombre": "viaje a Japón", "monto_objetivo": 2000000, "recurrente": false}`)

	reply, err := env.svc.Goals.CreateFromMessage(env.ctx, env.user.ID, "quiero ahorrar 2 millones para un viaje a Japón")
	require.NoError(t, err)
	assert.Contains(t, reply, "Viaje a Japón")
	assert.Contains(t, reply, "$2.000.000")
	assert.Contains(t, reply, "abona")

	goals, err := env.svc.Goals.List(env.ctx, env.user.ID)
	require.NoError(t, err)
	require.Len(t, goals, 1)
	assert.True(t, amount(2000000).Equal(goals[0].Target))
	assert.True(t, goals[0].Current.IsZero())
}

func TestCreateGoalNameFromPhrase(t *testing.T) {
	env := newTestEnv(t)
	env.llm.script("goal", `{"nombre": null, "monto_objetivo": 1000000, "recurrente": false}`)

	_, err := env.svc.Goals.CreateFromMessage(env.ctx, env.user.ID, "quiero juntar 1 millón para un auto nuevo")
	require.NoError(t, err)

	goals, err := env.svc.Goals.List(env.ctx, env.user.ID)
	require.NoError(t, err)
	require.Len(t, goals, 1)
	assert.Equal(t, "Auto nuevo", goals[0].Name)
}

func TestCreateGoalRecurringAsksForTotal(t *testing.T) {
	env := newTestEnv(t)
	env.llm.script("goal", `{"nombre": "viaje", "monto_objetivo": null, "recurrente": true}`)

	reply, err := env.svc.Goals.CreateFromMessage(env.ctx, env.user.ID, "quiero ahorrar 50 mil al mes para un viaje")
	require.NoError(t, err)
	assert.Contains(t, reply, "TOTAL")

	goals, err := env.svc.Goals.List(env.ctx, env.user.ID)
	require.NoError(t, err)
	assert.Empty(t, goals)
}

func TestCreateGoalWithoutNameOrAmount(t *testing.T) {
	env := newTestEnv(t)
	env.llm.script("goal", `{"nombre": null, "monto_objetivo": null, "recurrente": false}`)

	reply, err := env.svc.Goals.CreateFromMessage(env.ctx, env.user.ID, "quiero ahorrar")
	require.NoError(t, err)
	assert.Contains(t, reply, "para qué quieres ahorrar")
}

func TestCreateGoalModelDownUsesHeuristics(t *testing.T) {
	env := newTestEnv(t)
	env.llm.down = true

	_, err := env.svc.Goals.CreateFromMessage(env.ctx, env.user.ID, "quiero ahorrar 2 millones para un viaje")
	require.NoError(t, err)

	goals, err := env.svc.Goals.List(env.ctx, env.user.ID)
	require.NoError(t, err)
	require.Len(t, goals, 1)
	assert.Equal(t, "Viaje", goals[0].Name)
	assert.True(t, amount(2000000).Equal(goals[0].Target))
}

func TestContributeWithoutGoals(t *testing.T) {
	env := newTestEnv(t)

	reply, err := env.svc.Goals.ContributeFromMessage(env.ctx, env.user.ID, "abona 20 mil a la meta viaje")
	require.NoError(t, err)

	assert.Contains(t, reply, "Aún no tienes metas")
	assert.NotContains(t, env.llm.called(), "contribution")
}

func TestContributeFromMessage(t *testing.T) {
	env := newTestEnv(t)
	goal := env.addGoal(t, env.user.ID, "Viaje", 50000)
	env.llm.script("contribution", `{"meta": "viaje", "monto": 20000}`)

	reply, err := env.svc.Goals.ContributeFromMessage(env.ctx, env.user.ID, "abona 20 mil al viaje")
	require.NoError(t, err)
	assert.Contains(t, reply, "$20.000")
	assert.Contains(t, reply, "Te faltan $30.000")

	stored, err := env.db.FindGoal(env.ctx, goal.ID, env.user.ID)
	require.NoError(t, err)
	assert.True(t, amount(20000).Equal(stored.Current))
}

func TestContributeCompletesGoal(t *testing.T) {
	env := newTestEnv(t)
	env.addGoal(t, env.user.ID, "Bicicleta", 30000)
	env.llm.script("contribution", `{"meta": "Bicicleta", "monto": 30000}`)

	reply, err := env.svc.Goals.ContributeFromMessage(env.ctx, env.user.ID, "abona 30 lucas a la bicicleta")
	require.NoError(t, err)
	assert.Contains(t, reply, "Completaste tu meta")
}

func TestContributeUnknownGoalName(t *testing.T) {
	env := newTestEnv(t)
	goal := env.addGoal(t, env.user.ID, "Viaje", 50000)
	env.llm.script("contribution", `{"meta": "casa", "monto": 20000}`)

	reply, err := env.svc.Goals.ContributeFromMessage(env.ctx, env.user.ID, "abona 20 mil a la casa")
	require.NoError(t, err)
	assert.Contains(t, reply, `No encontré la meta "casa"`)
	assert.Contains(t, reply, "Viaje")

	contributions, err := env.db.ContributionsForGoal(env.ctx, goal.ID)
	require.NoError(t, err)
	assert.Empty(t, contributions)
}

func TestFormatGoals(t *testing.T) {
	env := newTestEnv(t)
	assert.Contains(t, FormatGoals(nil), "Aún no tienes metas")

	goal := env.addGoal(t, env.user.ID, "Viaje", 50000)
	_, err := env.svc.Goals.AddMovement(env.ctx, goal.ID, env.user.ID, amount(25000), fixedNow)
	require.NoError(t, err)

	goals, err := env.svc.Goals.List(env.ctx, env.user.ID)
	require.NoError(t, err)
	text := FormatGoals(goals)
	assert.Contains(t, text, "Viaje")
	assert.Contains(t, text, "50%")
	assert.Contains(t, text, "$25.000 de $50.000")
}

func TestGoalNameFromText(t *testing.T) {
	assert.Equal(t, "viaje a Japón", goalNameFromText("quiero ahorrar para un viaje a Japón"))
	assert.Equal(t, "auto", goalNameFromText("ahorrar para el auto de 5 millones"))
	assert.Equal(t, "", goalNameFromText("quiero ahorrar 2 millones"))
}
