package model

import (
	"fmt"
	"time"
)

const (
	DefaultSensitivity = 50
	DefaultThreshold   = 15.0
	DefaultSettingsID  = "default"
)

// Settings - process-wide detection configuration
//
// Field names follow the <metric>Sensitivity / <metric>Threshold shape the
// management UI already speaks. Notification toggles are stored for an
// external dispatcher; the engine never reads them.
type Settings struct {
	ID string `json:"id"`

	SlackEnabled bool `json:"slackEnabled"`
	EmailEnabled bool `json:"emailEnabled"`
	InAppEnabled bool `json:"inAppEnabled"`

	CTRSensitivity        int     `json:"ctrSensitivity"`
	CTRThreshold          float64 `json:"ctrThreshold"`
	CPCSensitivity        int     `json:"cpcSensitivity"`
	CPCThreshold          float64 `json:"cpcThreshold"`
	ROASSensitivity       int     `json:"roasSensitivity"`
	ROASThreshold         float64 `json:"roasThreshold"`
	ConversionSensitivity int     `json:"conversionSensitivity"`
	ConversionThreshold   float64 `json:"conversionThreshold"`
	SpendSensitivity      int     `json:"spendSensitivity"`
	SpendThreshold        float64 `json:"spendThreshold"`
	BounceSensitivity     int     `json:"bounceSensitivity"`
	BounceThreshold       float64 `json:"bounceThreshold"`

	UpdatedAt time.Time `json:"updatedAt"`
}

// MetricSettings - sensitivity/threshold pair for one metric
type MetricSettings struct {
	Sensitivity int
	Threshold   float64
}

// DefaultSettings - fallback used when no settings record exists
func DefaultSettings() Settings {
	return Settings{
		ID:                    DefaultSettingsID,
		SlackEnabled:          false,
		EmailEnabled:          true,
		InAppEnabled:          true,
		CTRSensitivity:        DefaultSensitivity,
		CTRThreshold:          DefaultThreshold,
		CPCSensitivity:        DefaultSensitivity,
		CPCThreshold:          DefaultThreshold,
		ROASSensitivity:       DefaultSensitivity,
		ROASThreshold:         DefaultThreshold,
		ConversionSensitivity: DefaultSensitivity,
		ConversionThreshold:   DefaultThreshold,
		SpendSensitivity:      DefaultSensitivity,
		SpendThreshold:        DefaultThreshold,
		BounceSensitivity:     DefaultSensitivity,
		BounceThreshold:       DefaultThreshold,
	}
}

// For returns the pair in effect for metric m; unknown metrics get the defaults.
func (s Settings) For(m MetricName) MetricSettings {
	switch m {
	case MetricCTR:
		return MetricSettings{s.CTRSensitivity, s.CTRThreshold}
	case MetricCPC:
		return MetricSettings{s.CPCSensitivity, s.CPCThreshold}
	case MetricROAS:
		return MetricSettings{s.ROASSensitivity, s.ROASThreshold}
	case MetricConversions:
		return MetricSettings{s.ConversionSensitivity, s.ConversionThreshold}
	case MetricSpend:
		return MetricSettings{s.SpendSensitivity, s.SpendThreshold}
	case MetricBounceRate:
		return MetricSettings{s.BounceSensitivity, s.BounceThreshold}
	}
	return MetricSettings{DefaultSensitivity, DefaultThreshold}
}

// Validate checks every metric pair; sensitivity must be in [0,100] and threshold positive.
func (s Settings) Validate() error {
	for _, m := range TrackedMetrics {
		ms := s.For(m)
		if ms.Sensitivity < 0 || ms.Sensitivity > 100 {
			return fmt.Errorf("%w: %sSensitivity must be within [0,100], got %d", ErrInvalidSettings, m.SettingsKey(), ms.Sensitivity)
		}
		if !(ms.Threshold > 0) {
			return fmt.Errorf("%w: %sThreshold must be positive, got %v", ErrInvalidSettings, m.SettingsKey(), ms.Threshold)
		}
	}
	return nil
}
