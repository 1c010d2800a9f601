// Package metrics содержит Prometheus-метрики бота.
// Регистрируются в глобальном реестре через promauto и отдаются на /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// UpdatesTotal полученные обновления Telegram по типу.
	UpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bot_updates_total",
		Help: "Количество обработанных обновлений Telegram.",
	}, []string{"type"})

	// MembershipChecks результаты проверок членства в каналах.
	MembershipChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bot_membership_checks_total",
		Help: "Результаты getChatMember: member, not_member, unknown.",
	}, []string{"result"})

	// GateDecisions решения гейтов доступа и лимитов.
	GateDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bot_gate_decisions_total",
		Help: "Решения гейтов по типу гейта и результату.",
	}, []string{"gate", "decision"})

	// UsageRecordErrors неудачные записи счётчиков использования.
	UsageRecordErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bot_usage_record_errors_total",
		Help: "Ошибки записи суточных счётчиков, проглоченные гейтом.",
	})

	// ChatCacheLookups попадания и промахи кэша информации о каналах.
	ChatCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bot_chat_cache_lookups_total",
		Help: "Обращения к LRU-кэшу информации о каналах.",
	}, []string{"result"})

	// Notifications уведомления, прошедшие через очередь.
	Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bot_notifications_total",
		Help: "Уведомления по очереди и статусу доставки.",
	}, []string{"queue", "status"})
)
