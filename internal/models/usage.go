package models

// UsageCounter счётчик действий пользователя за календарный день UTC.
type UsageCounter struct {
	UserID int64
	Action Action
	Day    string // 2006-01-02
	Count  int
}
