// Package template renders human-readable alert messages.
//
// Supported variables:
//
//	{{alert.metric}}, {{alert.severity}}, {{alert.expected}}, {{alert.actual}},
//	{{alert.deviation}}, {{alert.direction}}, {{alert.timestamp}}
//
//	{{campaign.id}}, {{campaign.name}}
package template

import (
	"strconv"
	"strings"
	"time"

	"github.com/adwatch/backend/internal/detector"
	"github.com/adwatch/backend/internal/model"
)

// DefaultAlertMessage - used when ALERT_MESSAGE_TEMPLATE is empty
const DefaultAlertMessage = "{{alert.metric}} is {{alert.deviation}}% {{alert.direction}} expected for {{campaign.name}} (actual {{alert.actual}}, expected {{alert.expected}})"

// AlertData - alert fields available to the template
type AlertData struct {
	Metric       string
	Severity     string
	Expected     float64
	Actual       float64
	DeviationPct float64
	Direction    string
	Timestamp    time.Time
}

// CampaignData - campaign fields available to the template
type CampaignData struct {
	ID   string
	Name string
}

// AlertDataFromResult - AlertData from a scoring result
func AlertDataFromResult(metric model.MetricName, r detector.Result, at time.Time) AlertData {
	return AlertData{
		Metric:       string(metric),
		Severity:     string(r.Severity),
		Expected:     r.Expected,
		Actual:       r.Actual,
		DeviationPct: r.DeviationPct,
		Direction:    r.Direction(),
		Timestamp:    at,
	}
}

// RenderMessage - replace template variables with values
//
// A nil alert or campaign renders its variables as empty strings.
// The deviation is rendered as an absolute value; direction carries the sign.
func RenderMessage(tmpl string, alert *AlertData, campaign *CampaignData) string {
	if tmpl == "" {
		tmpl = DefaultAlertMessage
	}
	pairs := make([]string, 0, 18)

	if alert != nil {
		ts := ""
		if !alert.Timestamp.IsZero() {
			ts = alert.Timestamp.Format(time.RFC3339)
		}
		dev := alert.DeviationPct
		if dev < 0 {
			dev = -dev
		}
		pairs = append(pairs,
			"{{alert.metric}}", alert.Metric,
			"{{alert.severity}}", alert.Severity,
			"{{alert.expected}}", formatNumber(alert.Expected),
			"{{alert.actual}}", formatNumber(alert.Actual),
			"{{alert.deviation}}", strconv.FormatFloat(dev, 'f', 1, 64),
			"{{alert.direction}}", alert.Direction,
			"{{alert.timestamp}}", ts,
		)
	} else {
		pairs = append(pairs,
			"{{alert.metric}}", "",
			"{{alert.severity}}", "",
			"{{alert.expected}}", "",
			"{{alert.actual}}", "",
			"{{alert.deviation}}", "",
			"{{alert.direction}}", "",
			"{{alert.timestamp}}", "",
		)
	}

	if campaign != nil {
		pairs = append(pairs,
			"{{campaign.id}}", campaign.ID,
			"{{campaign.name}}", campaign.Name,
		)
	} else {
		pairs = append(pairs,
			"{{campaign.id}}", "",
			"{{campaign.name}}", "",
		)
	}

	return strings.NewReplacer(pairs...).Replace(tmpl)
}

// formatNumber - two decimals, trailing zeros trimmed
func formatNumber(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
