// Package day формирует ключи календарных суток UTC для дневных счётчиков.
package day

import "time"

// Layout формат ключа суток.
const Layout = "2006-01-02"

// Key возвращает ключ суток UTC, к которым относится t.
func Key(t time.Time) string {
	return t.UTC().Format(Layout)
}

// EndOf возвращает начало следующих суток UTC после t.
func EndOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
}
