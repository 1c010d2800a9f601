// Package models содержит доменные структуры бота: пользователей, связи обязательной
// подписки, счётчики использования, тарифы, платежи и проиндексированные файлы.
// Необязательные поля хранилища представлены указателями.
package models

import "time"

// User представляет пользователя бота, созданного при первом обращении.
type User struct {
	ID            int64      // Telegram ID пользователя
	Username      string     // Имя пользователя в Telegram (может быть пустым)
	FirstName     string     // Отображаемое имя
	IsPremium     bool       // Флаг премиума, действителен только вместе с PremiumExpiry
	PremiumExpiry *time.Time // Дата окончания премиума, nil если премиума нет
	ReferrerID    *int64     // Кто пригласил пользователя
	ReferralCount int        // Количество приглашённых
	IsBanned      bool       // Мягкая блокировка
	JoinedAt      time.Time
	LastSeen      time.Time
}

// PremiumActive сообщает, действует ли премиум на момент now.
func (u *User) PremiumActive(now time.Time) bool {
	return u.IsPremium && u.PremiumExpiry != nil && u.PremiumExpiry.After(now)
}

// PremiumStale сообщает, что запись помечена как премиум, но срок уже вышел
// (или не задан) и её нужно исправить перед использованием.
func (u *User) PremiumStale(now time.Time) bool {
	return u.IsPremium && !u.PremiumActive(now)
}
