package models

import "time"

// ForceSubLink связывает чат (контекст) с каналом, на который обязана быть подписка.
// Пара (ContextID, ChannelID) уникальна.
type ForceSubLink struct {
	ContextID int64
	ChannelID int64
	AddedBy   int64
	AddedAt   time.Time
}

// Membership результат проверки членства в канале.
type Membership int

const (
	// MembershipUnknown проверку выполнить не удалось.
	MembershipUnknown Membership = iota
	// MembershipMember пользователь состоит в канале.
	MembershipMember
	// MembershipNotMember пользователь не состоит в канале.
	MembershipNotMember
)

func (m Membership) String() string {
	switch m {
	case MembershipMember:
		return "member"
	case MembershipNotMember:
		return "not_member"
	default:
		return "unknown"
	}
}
