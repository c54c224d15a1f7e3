package config

import (
	"fmt"
	"time"

	"gramops/pkg/models"
)

// KindRate holds the delay range and batch size for one operation kind.
type KindRate struct {
	MinDelay  time.Duration `yaml:"min_delay" json:"min_delay"`
	MaxDelay  time.Duration `yaml:"max_delay" json:"max_delay"`
	BatchSize int           `yaml:"batch_size" json:"batch_size"`
}

// RateProfile is a named, validated delay profile. Kinds are explicit fields
// rather than a lookup table so a missing entry is a compile error, not a
// runtime surprise.
type RateProfile struct {
	Name string `yaml:"name" json:"name"`

	// FastMode disables adaptive widening and jitter entirely; NextDelay
	// returns each kind's MinDelay unchanged. Meant for tests and dry runs.
	FastMode bool `yaml:"fast_mode" json:"fast_mode"`

	// JitterFactor widens each drawn delay by up to this fraction
	JitterFactor float64 `yaml:"jitter_factor" json:"jitter_factor"`
	// BackoffMultiplier scales delays up when the recent error rate is high
	BackoffMultiplier float64 `yaml:"backoff_multiplier" json:"backoff_multiplier"`
	// AbsoluteMaxDelay caps every adaptive delay
	AbsoluteMaxDelay time.Duration `yaml:"absolute_max_delay" json:"absolute_max_delay"`

	Scrape  KindRate `yaml:"scrape" json:"scrape"`
	Invite  KindRate `yaml:"invite" json:"invite"`
	Message KindRate `yaml:"message" json:"message"`
}

// ForKind returns the per-kind rate settings.
func (p *RateProfile) ForKind(kind models.OperationKind) KindRate {
	switch kind {
	case models.KindInvite:
		return p.Invite
	case models.KindMessage:
		return p.Message
	default:
		return p.Scrape
	}
}

// Validate checks the profile's internal consistency.
func (p *RateProfile) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("profile has no name")
	}
	if p.JitterFactor < 0 || p.JitterFactor > 1 {
		return fmt.Errorf("profile %s: jitter factor must be in [0,1]", p.Name)
	}
	if !p.FastMode && p.BackoffMultiplier < 1 {
		return fmt.Errorf("profile %s: backoff multiplier must be at least 1", p.Name)
	}
	for _, kr := range []struct {
		kind models.OperationKind
		rate KindRate
	}{
		{models.KindScrape, p.Scrape},
		{models.KindInvite, p.Invite},
		{models.KindMessage, p.Message},
	} {
		if kr.rate.MinDelay < 0 || kr.rate.MaxDelay < kr.rate.MinDelay {
			return fmt.Errorf("profile %s: invalid delay range for %s", p.Name, kr.kind)
		}
		if kr.rate.BatchSize <= 0 {
			return fmt.Errorf("profile %s: batch size for %s must be positive", p.Name, kr.kind)
		}
	}
	return nil
}

// Built-in profiles. Stealth trades throughput for survivability, aggressive
// the other way around. Fast exists for tests and dry runs only.
var builtinProfiles = map[string]RateProfile{
	"stealth": {
		Name:              "stealth",
		JitterFactor:      0.4,
		BackoffMultiplier: 3.0,
		AbsoluteMaxDelay:  15 * time.Minute,
		Scrape:            KindRate{MinDelay: 5 * time.Second, MaxDelay: 15 * time.Second, BatchSize: 50},
		Invite:            KindRate{MinDelay: 60 * time.Second, MaxDelay: 180 * time.Second, BatchSize: 1},
		Message:           KindRate{MinDelay: 90 * time.Second, MaxDelay: 240 * time.Second, BatchSize: 1},
	},
	"normal": {
		Name:              "normal",
		JitterFactor:      0.25,
		BackoffMultiplier: 2.0,
		AbsoluteMaxDelay:  10 * time.Minute,
		Scrape:            KindRate{MinDelay: 2 * time.Second, MaxDelay: 6 * time.Second, BatchSize: 100},
		Invite:            KindRate{MinDelay: 30 * time.Second, MaxDelay: 90 * time.Second, BatchSize: 1},
		Message:           KindRate{MinDelay: 45 * time.Second, MaxDelay: 120 * time.Second, BatchSize: 1},
	},
	"aggressive": {
		Name:              "aggressive",
		JitterFactor:      0.1,
		BackoffMultiplier: 1.5,
		AbsoluteMaxDelay:  5 * time.Minute,
		Scrape:            KindRate{MinDelay: 500 * time.Millisecond, MaxDelay: 2 * time.Second, BatchSize: 200},
		Invite:            KindRate{MinDelay: 15 * time.Second, MaxDelay: 40 * time.Second, BatchSize: 1},
		Message:           KindRate{MinDelay: 20 * time.Second, MaxDelay: 60 * time.Second, BatchSize: 1},
	},
	"fast": {
		Name:     "fast",
		FastMode: true,
		Scrape:   KindRate{MinDelay: 0, MaxDelay: 0, BatchSize: 200},
		Invite:   KindRate{MinDelay: 0, MaxDelay: 0, BatchSize: 1},
		Message:  KindRate{MinDelay: 0, MaxDelay: 0, BatchSize: 1},
	},
}

// ProfileByName returns a copy of the named built-in profile.
func ProfileByName(name string) (RateProfile, error) {
	profile, ok := builtinProfiles[name]
	if !ok {
		return RateProfile{}, fmt.Errorf("unknown rate profile: %q", name)
	}
	return profile, nil
}

// ProfileNames returns the names of all built-in profiles.
func ProfileNames() []string {
	return []string{"stealth", "normal", "aggressive", "fast"}
}
