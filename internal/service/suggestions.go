package service

import "github.com/adwatch/backend/internal/model"

const (
	suggestionLandingPage = "CTR ↓ + Bounce Rate ↑ = Potential Landing Page issue. Review page load speed and relevance."
	suggestionCreatives   = "CTR is significantly below expected. Consider A/B testing ad creatives and headlines."
	suggestionBids        = "CPC spike detected. Review keyword bids and competition levels."
	suggestionTargeting   = "ROAS decline detected. Optimize targeting and ad relevance to improve conversion quality."
	suggestionPacing      = "Spend anomaly detected. Check budget pacing and daily limits."
	suggestionReview      = "Campaign health is critical. Review all metrics and consider pausing underperforming segments."
	suggestionNominal     = "Campaign performance is within normal parameters. Continue monitoring key metrics."
)

// Suggestions - rule-based recommendations from the active alerts and health score
func Suggestions(active []model.Alert, healthScore int) []string {
	has := func(metric model.MetricName, sev model.Severity) bool {
		for _, a := range active {
			if a.MetricName == metric && a.Severity == sev && a.Status == model.AlertStatusActive {
				return true
			}
		}
		return false
	}

	var out []string
	if has(model.MetricCTR, model.SeverityCritical) {
		if has(model.MetricBounceRate, model.SeverityWarning) {
			out = append(out, suggestionLandingPage)
		} else {
			out = append(out, suggestionCreatives)
		}
	}
	if has(model.MetricCPC, model.SeverityCritical) {
		out = append(out, suggestionBids)
	}
	if has(model.MetricROAS, model.SeverityCritical) {
		out = append(out, suggestionTargeting)
	}
	if has(model.MetricSpend, model.SeverityWarning) {
		out = append(out, suggestionPacing)
	}
	if healthScore < 50 {
		out = append(out, suggestionReview)
	}
	if len(out) == 0 {
		out = append(out, suggestionNominal)
	}
	return out
}
