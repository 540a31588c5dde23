package model

import "time"

// DateRange - период выборки. Nil-границы означают отсутствие ограничения.
type DateRange struct {
	Start *time.Time
	End   *time.Time
	Label string
}

// Unbounded сообщает, что период не ограничен
func (r DateRange) Unbounded() bool {
	return r.Start == nil && r.End == nil
}

// Contains проверяет, попадает ли дата в период (по дням, включительно)
func (r DateRange) Contains(t time.Time) bool {
	day := StartOfDay(t)
	if r.Start != nil && day.Before(StartOfDay(*r.Start)) {
		return false
	}
	if r.End != nil && day.After(StartOfDay(*r.End)) {
		return false
	}
	return true
}

// StartOfDay нормализует время до начала дня
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// MonthRange возвращает период с первого числа месяца по сегодняшний день
func MonthRange(now time.Time) DateRange {
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	end := StartOfDay(now)
	return DateRange{Start: &start, End: &end, Label: "este mes"}
}
