package models

import "fmt"

// Tier тарифный уровень пользователя.
type Tier string

const (
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
)

// Action тарифицируемое действие.
type Action string

const (
	ActionSearch   Action = "search"
	ActionDownload Action = "download"
)

// Unlimited используется как «безлимит» в дневных лимитах. Это не точный остаток.
const Unlimited = 999999

// ParseAction проверяет имя действия.
func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case ActionSearch, ActionDownload:
		return a, nil
	default:
		return "", fmt.Errorf("unknown action %q", s)
	}
}

// TierLimits неизменяемый набор лимитов тарифа.
type TierLimits struct {
	DailySearches       int  `json:"daily_searches"`
	DailyDownloads      int  `json:"daily_downloads"`
	MaxFileSizeMB       int  `json:"max_file_size_mb"`
	StorageMB           int  `json:"storage_mb"`
	ConcurrentDownloads int  `json:"concurrent_downloads"`
	BatchOperations     bool `json:"batch_operations"`
	CustomFilters       bool `json:"custom_filters"`
	PrioritySupport     bool `json:"priority_support"`
	AdFree              bool `json:"ad_free"`
}

// Daily возвращает дневной потолок для действия.
func (l TierLimits) Daily(action Action) (int, bool) {
	switch action {
	case ActionSearch:
		return l.DailySearches, true
	case ActionDownload:
		return l.DailyDownloads, true
	default:
		return 0, false
	}
}

// DefaultLimits конфигурация тарифов по умолчанию.
var DefaultLimits = map[Tier]TierLimits{
	TierFree: {
		DailySearches:       20,
		DailyDownloads:      5,
		MaxFileSizeMB:       100,
		StorageMB:           500,
		ConcurrentDownloads: 1,
	},
	TierPremium: {
		DailySearches:       Unlimited,
		DailyDownloads:      Unlimited,
		MaxFileSizeMB:       5000,
		StorageMB:           100000,
		ConcurrentDownloads: 10,
		BatchOperations:     true,
		CustomFilters:       true,
		PrioritySupport:     true,
		AdFree:              true,
	},
}

// Benefits сводка тарифа и использования за текущие сутки.
type Benefits struct {
	Tier      Tier
	Limits    TierLimits
	Used      map[Action]int
	Remaining map[Action]int
}
