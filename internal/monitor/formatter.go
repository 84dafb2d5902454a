package monitor

import "fmt"

// FormatRate formats a rate value as "X.X req/min"
func FormatRate(rate float64) string {
	return fmt.Sprintf("%.1f req/min", rate)
}

// FormatLatency formats latency in milliseconds as "X.Xms" or "X.Xs"
func FormatLatency(latencyMS float64) string {
	if latencyMS < 1000 {
		return fmt.Sprintf("%.1fms", latencyMS)
	}
	return fmt.Sprintf("%.1fs", latencyMS/1000)
}

// FormatCost formats a cumulative dollar amount
func FormatCost(usd float64) string {
	return fmt.Sprintf("$%.4f", usd)
}

// FormatPercentage formats a ratio (0-1) as percentage
func FormatPercentage(ratio float64) string {
	return fmt.Sprintf("%.1f%%", ratio*100)
}

// FormatTokens formats a token count as "X.XB", "X.XM", "X.XK" or "X"
func FormatTokens(tokens float64) string {
	const (
		K = 1000
		M = 1000 * K
		B = 1000 * M
	)

	switch {
	case tokens >= B:
		return fmt.Sprintf("%.1fB", tokens/B)
	case tokens >= M:
		return fmt.Sprintf("%.1fM", tokens/M)
	case tokens >= K:
		return fmt.Sprintf("%.1fK", tokens/K)
	default:
		return fmt.Sprintf("%.0f", tokens)
	}
}

// FormatUptime formats uptime in seconds to "Xh Ym" or "Xm"
func FormatUptime(seconds float64) string {
	return FormatDuration(int64(seconds))
}

// FormatDuration formats duration in seconds to "Xh Ym" or "Xm"
func FormatDuration(seconds int64) string {
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60

	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}
