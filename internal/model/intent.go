package model

import "strings"

// Intent - намерение, распознанное в сообщении пользователя
type Intent int

const (
	IntentOther Intent = iota
	IntentRecordExpense
	IntentRecordIncome
	IntentCreateGoal
	IntentContributeGoal
	IntentQuery
)

// Intents перечисляет все намерения, включая IntentOther.
var Intents = []Intent{
	IntentOther,
	IntentRecordExpense,
	IntentRecordIncome,
	IntentCreateGoal,
	IntentContributeGoal,
	IntentQuery,
}

var intentNames = map[Intent]string{
	IntentOther:          "OTHER",
	IntentRecordExpense:  "RECORD_EXPENSE",
	IntentRecordIncome:   "RECORD_INCOME",
	IntentCreateGoal:     "CREATE_GOAL",
	IntentContributeGoal: "CONTRIBUTE_GOAL",
	IntentQuery:          "QUERY",
}

func (i Intent) String() string {
	if name, ok := intentNames[i]; ok {
		return name
	}
	return intentNames[IntentOther]
}

// ParseIntent переводит метку модели в Intent.
// Неизвестные метки дают IntentOther.
func ParseIntent(label string) Intent {
	label = strings.ToUpper(strings.TrimSpace(label))
	label = strings.ReplaceAll(label, " ", "_")
	for intent, name := range intentNames {
		if name == label {
			return intent
		}
	}
	return IntentOther
}
