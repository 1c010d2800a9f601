package bot

import (
	"fmt"
	"strings"
	"time"

	"github.com/magabrotheeeer/phoenix-filter-bot/internal/models"
	"github.com/magabrotheeeer/phoenix-filter-bot/internal/services/payment"
)

const dateLayout = "2006-01-02"

const helpText = `📖 Commands

/search <query> - find files (or just send the file name)
/myplan - your current plan
/benefits - limits and today's usage
/plan - premium plans
/buy - buy premium
/paid <bsc|sol> <tx_hash> - submit a payment
/help - this message`

const adminHelpText = `

👮 Admin commands

/fsub <channel_id> - require a channel in this chat
/nofsub <channel_id> - remove a required channel
/fsublist - required channels of this chat
/add_premium <user_id> <days>
/remove_premium <user_id>
/approve_payment <payment_id>
/reject_payment <payment_id>
/ban <user_id>
/unban <user_id>
/delete <file_id>
/stats`

func readableSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	units := []string{"KB", "MB", "GB", "TB"}
	value := float64(size) / unit
	i := 0
	for value >= unit && i < len(units)-1 {
		value /= unit
		i++
	}
	return fmt.Sprintf("%.2f %s", value, units[i])
}

func formatFile(f *models.File) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📁 %s\n", f.DisplayName())
	fmt.Fprintf(&sb, "📦 Type: %s\n", f.FileType)
	fmt.Fprintf(&sb, "💾 Size: %s\n", readableSize(f.FileSize))
	fmt.Fprintf(&sb, "⬇️ Downloads: %d", f.DownloadCount)
	if f.Caption != nil && *f.Caption != "" {
		fmt.Fprintf(&sb, "\n📝 %s", truncate(*f.Caption, 200))
	}
	return sb.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}

func formatSearchResults(query string, files []*models.File, remaining int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🔍 Results for %q: %d\n", query, len(files))
	for i, f := range files {
		fmt.Fprintf(&sb, "\n%d. %s (%s)", i+1, f.DisplayName(), readableSize(f.FileSize))
	}
	if remaining < models.Unlimited {
		fmt.Fprintf(&sb, "\n\nSearches left today: %d", remaining)
	}
	return sb.String()
}

func formatPlans() string {
	var sb strings.Builder
	sb.WriteString("💎 Premium plans\n")
	for _, code := range models.PlanOrder {
		p := models.Plans[code]
		fmt.Fprintf(&sb, "\n• %s: $%.2f for %d days", p.Name, p.Price, p.Days)
	}
	premium := models.DefaultLimits[models.TierPremium]
	fmt.Fprintf(&sb, "\n\nPremium includes unlimited searches and downloads, files up to %d MB, "+
		"%d concurrent downloads and no ads.\n\nUse /buy to upgrade.", premium.MaxFileSizeMB, premium.ConcurrentDownloads)
	return sb.String()
}

func formatMyPlan(u *models.User, tier models.Tier) string {
	if tier == models.TierPremium && u != nil && u.PremiumExpiry != nil {
		left := time.Until(*u.PremiumExpiry)
		return fmt.Sprintf("💎 Plan: Premium\n📅 Expires: %s\n⏳ Days left: %d",
			u.PremiumExpiry.Format(dateLayout), int(left.Hours()/24))
	}
	return "🆓 Plan: Free\n\nUse /plan to see premium plans."
}

func limitValue(v int) string {
	if v >= models.Unlimited {
		return "unlimited"
	}
	return fmt.Sprintf("%d", v)
}

func yesNo(v bool) string {
	if v {
		return "✅"
	}
	return "❌"
}

func formatBenefits(b *models.Benefits) string {
	var sb strings.Builder
	if b.Tier == models.TierPremium {
		sb.WriteString("💎 Premium benefits\n\n")
	} else {
		sb.WriteString("🆓 Free plan benefits\n\n")
	}
	l := b.Limits
	fmt.Fprintf(&sb, "🔍 Searches today: %d/%s (left: %s)\n",
		b.Used[models.ActionSearch], limitValue(l.DailySearches), limitValue(b.Remaining[models.ActionSearch]))
	fmt.Fprintf(&sb, "⬇️ Downloads today: %d/%s (left: %s)\n",
		b.Used[models.ActionDownload], limitValue(l.DailyDownloads), limitValue(b.Remaining[models.ActionDownload]))
	fmt.Fprintf(&sb, "📦 Max file size: %d MB\n", l.MaxFileSizeMB)
	fmt.Fprintf(&sb, "💾 Storage: %d MB\n", l.StorageMB)
	fmt.Fprintf(&sb, "⚡ Concurrent downloads: %d\n", l.ConcurrentDownloads)
	fmt.Fprintf(&sb, "%s Batch operations\n", yesNo(l.BatchOperations))
	fmt.Fprintf(&sb, "%s Custom filters\n", yesNo(l.CustomFilters))
	fmt.Fprintf(&sb, "%s Priority support\n", yesNo(l.PrioritySupport))
	fmt.Fprintf(&sb, "%s Ad-free", yesNo(l.AdFree))
	if b.Tier != models.TierPremium {
		sb.WriteString("\n\nUpgrade with /plan")
	}
	return sb.String()
}

func formatPaymentInstructions(sel *models.PendingSelection, wallets payment.Wallets, timeout time.Duration) string {
	plan := models.Plans[sel.Plan]
	return fmt.Sprintf("💳 %s plan: $%.2f USDT for %d days\n\n"+
		"USDT (BEP20, network bsc):\n%s\n\nUSDT (Solana, network sol):\n%s\n\n"+
		"After the transfer send:\n/paid <bsc|sol> <tx_hash>\n\n"+
		"The selection is kept for %s.",
		plan.Name, plan.Price, plan.Days, wallets.BEP20, wallets.SOL, timeout)
}

func formatLimitReached(action models.Action) string {
	limit, _ := models.DefaultLimits[models.TierFree].Daily(action)
	return fmt.Sprintf("⛔ Daily %s limit reached (%d per day on the free plan).\n\n"+
		"The counter resets at 00:00 UTC. Upgrade with /plan for unlimited access.", action, limit)
}
