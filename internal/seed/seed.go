// Package seed loads a YAML fixture of campaigns and metric base values into a store.
//
// Flow:
//  1. parse fixture (embedded default or --fixture file)
//  2. save default settings when none exist
//  3. create campaigns not already present (matched by name)
//  4. record Points readings per metric, Interval apart, ending now, jittered around the base
package seed

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
	"time"

	"github.com/adwatch/backend/internal/model"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

//go:embed fixture.yaml
var defaultFixture []byte

type Fixture struct {
	Points     int               `yaml:"points"`
	Interval   time.Duration     `yaml:"interval"`
	Jitter     float64           `yaml:"jitter"` // fraction of base, e.g. 0.1 = ±10%
	RandomSeed int64             `yaml:"randomSeed"`
	Campaigns  []CampaignFixture `yaml:"campaigns"`
	Metrics    []MetricFixture   `yaml:"metrics"`
}

type CampaignFixture struct {
	Name        string `yaml:"name"`
	HealthScore int    `yaml:"healthScore"`
}

type MetricFixture struct {
	Name string  `yaml:"name"`
	Base float64 `yaml:"base"`
}

// Summary - what a Seed call wrote
type Summary struct {
	Campaigns    int
	Skipped      int
	Observations int
}

type Store interface {
	ListCampaigns(ctx context.Context) ([]model.Campaign, error)
	CreateCampaign(ctx context.Context, c model.Campaign) (*model.Campaign, error)
	RecordObservation(ctx context.Context, obs model.Observation) (*model.Observation, error)
	GetSettings(ctx context.Context) (*model.Settings, error)
	SaveSettings(ctx context.Context, s model.Settings) (*model.Settings, error)
}

func DefaultFixture() (*Fixture, error) {
	return LoadFixture(bytes.NewReader(defaultFixture))
}

func LoadFixtureFile(path string) (*Fixture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fixture: %w", err)
	}
	defer f.Close()
	return LoadFixture(f)
}

func LoadFixture(r io.Reader) (*Fixture, error) {
	var fx Fixture
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&fx); err != nil {
		return nil, fmt.Errorf("decode fixture: %w", err)
	}
	if err := fx.Validate(); err != nil {
		return nil, err
	}
	return &fx, nil
}

func (f *Fixture) Validate() error {
	var errs []error
	if f.Points < 1 {
		errs = append(errs, errors.New("points must be >= 1"))
	}
	if f.Interval <= 0 {
		errs = append(errs, errors.New("interval must be positive"))
	}
	if f.Jitter < 0 || f.Jitter >= 1 {
		errs = append(errs, errors.New("jitter must be in [0,1)"))
	}
	if len(f.Campaigns) == 0 {
		errs = append(errs, errors.New("at least one campaign is required"))
	}
	for _, c := range f.Campaigns {
		if c.Name == "" {
			errs = append(errs, errors.New("campaign name is required"))
		}
		if c.HealthScore < 0 || c.HealthScore > 100 {
			errs = append(errs, fmt.Errorf("campaign %q: healthScore must be in [0,100]", c.Name))
		}
	}
	for _, m := range f.Metrics {
		if _, ok := model.ParseMetricName(m.Name); !ok {
			errs = append(errs, fmt.Errorf("unknown metric %q", m.Name))
		}
		if m.Base <= 0 || math.IsNaN(m.Base) || math.IsInf(m.Base, 0) {
			errs = append(errs, fmt.Errorf("metric %q: base must be positive", m.Name))
		}
	}
	return errors.Join(errs...)
}

type Seeder struct {
	store Store
	log   *zap.Logger
	now   func() time.Time
}

func NewSeeder(store Store, log *zap.Logger) *Seeder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Seeder{store: store, log: log, now: time.Now}
}

func (s *Seeder) Seed(ctx context.Context, fx *Fixture) (Summary, error) {
	var sum Summary

	settings, err := s.ensureSettings(ctx)
	if err != nil {
		return sum, err
	}

	existing, err := s.store.ListCampaigns(ctx)
	if err != nil {
		return sum, fmt.Errorf("list campaigns: %w", err)
	}
	names := make(map[string]struct{}, len(existing))
	for _, c := range existing {
		names[c.Name] = struct{}{}
	}

	rng := rand.New(rand.NewSource(fx.RandomSeed))
	end := s.now().UTC()

	for _, cf := range fx.Campaigns {
		if _, ok := names[cf.Name]; ok {
			s.log.Info("campaign already present, skipping", zap.String("campaign", cf.Name))
			sum.Skipped++
			continue
		}
		c, err := s.store.CreateCampaign(ctx, model.Campaign{Name: cf.Name, HealthScore: cf.HealthScore})
		if err != nil {
			return sum, fmt.Errorf("create campaign %q: %w", cf.Name, err)
		}
		sum.Campaigns++

		for _, mf := range fx.Metrics {
			metric, _ := model.ParseMetricName(mf.Name)
			ms := settings.For(metric)
			for i := 0; i < fx.Points; i++ {
				value := mf.Base * (1 + fx.Jitter*(2*rng.Float64()-1))
				_, err := s.store.RecordObservation(ctx, model.Observation{
					CampaignID:  c.ID,
					Name:        metric,
					Value:       math.Round(value*100) / 100,
					Threshold:   ms.Threshold,
					Sensitivity: ms.Sensitivity,
					Timestamp:   end.Add(-time.Duration(fx.Points-1-i) * fx.Interval),
				})
				if err != nil {
					return sum, fmt.Errorf("record %s for %q: %w", metric, cf.Name, err)
				}
				sum.Observations++
			}
		}
		s.log.Info("campaign seeded", zap.String("campaign", c.Name), zap.String("id", c.ID))
	}
	return sum, nil
}

func (s *Seeder) ensureSettings(ctx context.Context) (model.Settings, error) {
	cur, err := s.store.GetSettings(ctx)
	if err == nil {
		return *cur, nil
	}
	if !errors.Is(err, model.ErrConfigMissing) {
		return model.Settings{}, fmt.Errorf("get settings: %w", err)
	}
	saved, err := s.store.SaveSettings(ctx, model.DefaultSettings())
	if err != nil {
		return model.Settings{}, fmt.Errorf("save default settings: %w", err)
	}
	return *saved, nil
}
