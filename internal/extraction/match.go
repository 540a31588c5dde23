package extraction

import (
	"strings"
	"unicode"

	"github.com/ivanoskov/finchat_bot/internal/model"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold приводит строку к нижнему регистру и убирает диакритику:
// "Alimentación" -> "alimentacion".
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.TrimSpace(out))
}

// stem отрезает окончание у длинных слов: "alimento" -> "alimen"
func stem(word string) string {
	r := []rune(word)
	if len(r) > 5 {
		return string(r[:len(r)-2])
	}
	return word
}

// ResolveCategory подбирает категорию по названию, которое вернула модель.
// Порядок: точное совпадение, вхождение в любую сторону, совпадение по основе слова.
// Если ничего не подошло, берется категория "otros"/"other", затем первая в списке.
// Пустой запрос дает nil (запись без категории).
func ResolveCategory(requested string, categories []model.Category) *model.Category {
	req := Fold(requested)
	if req == "" || len(categories) == 0 {
		return nil
	}

	names := make([]string, len(categories))
	for i, c := range categories {
		names[i] = Fold(c.Name)
	}

	pick := func(match func(name string) bool) *model.Category {
		for i, name := range names {
			if match(name) {
				c := categories[i]
				return &c
			}
		}
		return nil
	}

	if c := pick(func(name string) bool { return name == req }); c != nil {
		return c
	}
	if c := pick(func(name string) bool { return strings.Contains(name, req) }); c != nil {
		return c
	}
	if c := pick(func(name string) bool { return name != "" && strings.Contains(req, name) }); c != nil {
		return c
	}
	for _, word := range strings.Fields(req) {
		s := stem(word)
		if len([]rune(s)) < 4 {
			continue
		}
		if c := pick(func(name string) bool { return strings.Contains(name, s) }); c != nil {
			return c
		}
	}
	return FallbackCategory(categories)
}

// FallbackCategory возвращает категорию "otros"/"other" или первую из списка
func FallbackCategory(categories []model.Category) *model.Category {
	if len(categories) == 0 {
		return nil
	}
	for _, c := range categories {
		name := Fold(c.Name)
		if strings.Contains(name, "otro") || strings.Contains(name, "other") {
			return &c
		}
	}
	c := categories[0]
	return &c
}

// MatchGoal ищет цель по имени без учета регистра и диакритики
func MatchGoal(name string, goals []model.SavingsGoal) *model.SavingsGoal {
	want := Fold(name)
	if want == "" {
		return nil
	}
	for i := range goals {
		if Fold(goals[i].Name) == want {
			return &goals[i]
		}
	}
	for i := range goals {
		have := Fold(goals[i].Name)
		if have != "" && (strings.Contains(have, want) || strings.Contains(want, have)) {
			return &goals[i]
		}
	}
	return nil
}

// HasWord проверяет, встречается ли слово в тексте (без учета регистра и диакритики)
func HasWord(text, word string) bool {
	word = Fold(word)
	for _, w := range strings.FieldsFunc(Fold(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if w == word {
			return true
		}
	}
	return false
}
