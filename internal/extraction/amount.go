package extraction

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	amountPattern     = regexp.MustCompile(`(\d+(?:[.,]\d+)*)\s*(millones|millon|palos|palo|lucas|luca|mil|k)?\b`)
	wordAmountPattern = regexp.MustCompile(`\b(?:un|una)\s+(millon|palo|luca|mil)\b`)
	amountWordPattern = regexp.MustCompile(`\b(?:mil|millon|millones|palo|palos|luca|lucas)\b`)
	thousandsDot      = regexp.MustCompile(`^\d{1,3}(?:\.\d{3})+$`)
	thousandsComma    = regexp.MustCompile(`^\d{1,3}(?:,\d{3})+$`)
)

var (
	thousand = decimal.NewFromInt(1_000)
	million  = decimal.NewFromInt(1_000_000)
)

func multiplier(word string) decimal.Decimal {
	switch word {
	case "mil", "luca", "lucas", "k":
		return thousand
	case "millon", "millones", "palo", "palos":
		return million
	}
	return decimal.NewFromInt(1)
}

// ParseAmount находит первую сумму в тексте и приводит ее к числу.
// Понимает "50 lucas", "2 millones", "100 mil", "$5.000", "12,5", "un palo".
func ParseAmount(text string) (decimal.Decimal, bool) {
	s := Fold(text)
	if s == "" {
		return decimal.Zero, false
	}

	if m := amountPattern.FindStringSubmatch(s); m != nil {
		n, ok := parseNumber(m[1])
		if !ok {
			return decimal.Zero, false
		}
		return n.Mul(multiplier(m[2])), true
	}
	if m := wordAmountPattern.FindStringSubmatch(s); m != nil {
		return multiplier(m[1]), true
	}
	return decimal.Zero, false
}

// MentionsAmount сообщает, есть ли в тексте хоть какое-то упоминание суммы
func MentionsAmount(text string) bool {
	s := Fold(text)
	if strings.IndexFunc(s, func(r rune) bool { return r >= '0' && r <= '9' }) >= 0 {
		return true
	}
	return amountWordPattern.MatchString(s)
}

func parseNumber(s string) (decimal.Decimal, bool) {
	switch {
	case thousandsDot.MatchString(s):
		s = strings.ReplaceAll(s, ".", "")
	case thousandsComma.MatchString(s):
		s = strings.ReplaceAll(s, ",", "")
	case strings.Contains(s, ",") && strings.Contains(s, "."):
		// разделитель дробной части - тот, что стоит последним
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.ReplaceAll(s, ",", ".")
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case strings.Contains(s, ","):
		s = strings.ReplaceAll(s, ",", ".")
	}
	if strings.Count(s, ".") > 1 {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// amountField - сумма в ответе модели: число, строка или null
type amountField struct {
	value *decimal.Decimal
}

func (a *amountField) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" || raw == "" {
		return nil
	}

	if strings.HasPrefix(raw, `"`) {
		var text string
		if err := json.Unmarshal(data, &text); err == nil {
			if d, ok := ParseAmount(text); ok {
				a.value = &d
			}
		}
		return nil
	}

	// нечисловые значения (true, объекты) считаем отсутствием суммы
	if d, err := decimal.NewFromString(raw); err == nil {
		a.value = &d
	}
	return nil
}
