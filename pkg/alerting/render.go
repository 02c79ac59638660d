package alerting

import "fmt"

// RenderMessage produces the notification subject line and body for an
// alert. Percentages are formatted here, at the presentation boundary.
func RenderMessage(status *BudgetStatus, kind Kind, severity Severity) (subject, body string) {
	percent := status.PercentUsed * 100

	switch kind {
	case KindOverBudget:
		subject = fmt.Sprintf("Budget exceeded: %s %s over the %s limit",
			status.Overage().StringFixed(2), status.Policy.Currency, status.Period)
		body = fmt.Sprintf(
			"Spending for period %s has exceeded the monthly budget.\n\n"+
				"Spent:     %s %s\n"+
				"Limit:     %s %s\n"+
				"Overage:   %s %s\n"+
				"Used:      %.1f%%\n"+
				"Days left: %d\n",
			status.Period,
			status.Spent.StringFixed(2), status.Policy.Currency,
			status.Limit.StringFixed(2), status.Policy.Currency,
			status.Overage().StringFixed(2), status.Policy.Currency,
			percent, status.DaysLeft,
		)
	default:
		subject = fmt.Sprintf("Budget alert: %.1f%% of the %s limit used",
			percent, status.Period)
		body = fmt.Sprintf(
			"Spending for period %s has crossed the alert threshold of %.0f%%.\n\n"+
				"Spent:     %s %s\n"+
				"Limit:     %s %s\n"+
				"Remaining: %s %s\n"+
				"Used:      %.1f%%\n"+
				"Days left: %d\n",
			status.Period, status.Policy.AlertThreshold*100,
			status.Spent.StringFixed(2), status.Policy.Currency,
			status.Limit.StringFixed(2), status.Policy.Currency,
			status.Remaining.StringFixed(2), status.Policy.Currency,
			percent, status.DaysLeft,
		)
	}
	return subject, body
}
