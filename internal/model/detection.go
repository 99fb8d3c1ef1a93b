package model

import "time"

// ScanFailure - one per-metric or per-campaign failure inside a detection cycle
type ScanFailure struct {
	CampaignID string     `json:"campaignId"`
	Metric     MetricName `json:"metric,omitempty"` // empty for campaign-level failures
	Kind       string     `json:"kind"`
	Error      string     `json:"error"`
}

// CycleReport - summary of one detection cycle
type CycleReport struct {
	StartedAt  time.Time     `json:"startedAt"`
	FinishedAt time.Time     `json:"finishedAt"`
	Campaigns  int           `json:"campaigns"`
	Scored     int           `json:"scored"`
	Anomalies  int           `json:"anomalies"`
	Created    int           `json:"created"`
	Absorbed   int           `json:"absorbed"`
	Skipped    int           `json:"skipped"`
	Failures   []ScanFailure `json:"failures"`
}

// Merge adds the counters and failures of o into r.
func (r *CycleReport) Merge(o CycleReport) {
	r.Campaigns += o.Campaigns
	r.Scored += o.Scored
	r.Anomalies += o.Anomalies
	r.Created += o.Created
	r.Absorbed += o.Absorbed
	r.Skipped += o.Skipped
	r.Failures = append(r.Failures, o.Failures...)
}
