package config

import (
	"sort"
)

// Profile names.
const (
	ProfileBaseline = "baseline"
	ProfileStress   = "stress"
	ProfileSpike    = "spike"
)

// Profiles returns the built-in load profiles keyed by name.
// Each call returns fresh copies that callers may modify.
func Profiles() map[string]*TestConfig {
	return map[string]*TestConfig{
		ProfileBaseline: {
			Name:    ProfileBaseline,
			Profile: ProfileBaseline,
			Stages: []StageConfig{
				{Duration: "1m", Target: 10, Name: "ramp-up"},
				{Duration: "5m", Target: 10, Name: "steady"},
				{Duration: "1m", Target: 0, Name: "ramp-down"},
			},
			Thresholds: map[string][]string{
				"http_req_duration": {"p(95)<2000"},
				"http_req_failed":   {"rate<0.01"},
				"errors":            {"rate<0.01"},
			},
			Metadata: Metadata{
				TestType:     "Baseline Load Test",
				Objective:    "Assess system behavior under normal load",
				DurationText: "7 minutes (1m ramp up, 5m steady, 1m ramp down)",
			},
		},
		ProfileStress: {
			Name:    ProfileStress,
			Profile: ProfileStress,
			Stages: []StageConfig{
				{Duration: "2m", Target: 100, Name: "ramp-100"},
				{Duration: "2m", Target: 300, Name: "ramp-300"},
				{Duration: "2m", Target: 500, Name: "ramp-500"},
				{Duration: "10m", Target: 500, Name: "steady"},
				{Duration: "2m", Target: 0, Name: "ramp-down"},
			},
			Thresholds: map[string][]string{
				"http_req_duration": {"p(95)<5000"},
				"http_req_failed":   {"rate<0.05"},
				"errors":            {"rate<0.05"},
			},
			Metadata: Metadata{
				TestType:     "Stress Test",
				Objective:    "Find the breaking point under sustained heavy load",
				DurationText: "18 minutes (6m stepped ramp up, 10m at 500 users, 2m ramp down)",
			},
		},
		ProfileSpike: {
			Name:    ProfileSpike,
			Profile: ProfileSpike,
			Stages: []StageConfig{
				{Duration: "1m", Target: 100, Name: "normal"},
				{Duration: "30s", Target: 1000, Name: "spike"},
				{Duration: "2m", Target: 1000, Name: "peak"},
				{Duration: "1m", Target: 100, Name: "recovery"},
				{Duration: "1m", Target: 0, Name: "ramp-down"},
			},
			Thresholds: map[string][]string{
				"http_req_duration": {"p(95)<10000"},
				"http_req_failed":   {"rate<0.10"},
				"errors":            {"rate<0.10"},
			},
			Metadata: Metadata{
				TestType:     "Spike Test",
				Objective:    "Assess behavior and recovery under a sudden traffic surge",
				DurationText: "5.5 minutes (1m normal, 30s spike, 2m peak, 1m recovery, 1m ramp down)",
			},
		},
	}
}

// Profile returns a copy of the named built-in profile.
func Profile(name string) (*TestConfig, bool) {
	p, ok := Profiles()[name]
	return p, ok
}

// ProfileNames returns the built-in profile names, sorted.
func ProfileNames() []string {
	profiles := Profiles()
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve builds the effective configuration: the profile named by
// override.Profile overlaid with override. Without a profile and without
// stages the baseline profile is used.
func Resolve(override *TestConfig) (*TestConfig, error) {
	if override == nil {
		override = &TestConfig{}
	}

	name := override.Profile
	if name == "" && len(override.Stages) == 0 {
		name = ProfileBaseline
	}

	base := &TestConfig{}
	if name != "" {
		p, ok := Profile(name)
		if !ok {
			return nil, &ValidationErrors{Errors: []*ValidationError{{Field: "profile", Message: "unknown profile: " + name}}}
		}
		base = p
	}

	return Merge(base, override), nil
}

// Merge overlays the fields set in override onto base and returns base.
func Merge(base, override *TestConfig) *TestConfig {
	if override == nil {
		return base
	}
	if override.Name != "" {
		base.Name = override.Name
	}
	if override.Profile != "" {
		base.Profile = override.Profile
	}
	if override.BaseURL != "" {
		base.BaseURL = override.BaseURL
	}
	if len(override.Stages) > 0 {
		base.Stages = override.Stages
		// ApplyDefaults re-derives it from the new stages
		base.Metadata.DurationText = ""
	}
	if len(override.Thresholds) > 0 {
		if base.Thresholds == nil {
			base.Thresholds = make(map[string][]string)
		}
		for name, exprs := range override.Thresholds {
			base.Thresholds[name] = exprs
		}
	}
	if override.ThinkTime != 0 {
		base.ThinkTime = override.ThinkTime
	}
	if override.Seed != 0 {
		base.Seed = override.Seed
	}
	if override.ReportsDir != "" {
		base.ReportsDir = override.ReportsDir
	}
	if override.GracefulStop != 0 {
		base.GracefulStop = override.GracefulStop
	}
	if override.Settings.Timeout != 0 {
		base.Settings.Timeout = override.Settings.Timeout
	}
	if override.Settings.InsecureSkipVerify {
		base.Settings.InsecureSkipVerify = true
	}
	if override.Settings.UserAgent != "" {
		base.Settings.UserAgent = override.Settings.UserAgent
	}
	if override.Settings.MaxIdleConnsPerHost != 0 {
		base.Settings.MaxIdleConnsPerHost = override.Settings.MaxIdleConnsPerHost
	}
	if override.Metadata.TestType != "" {
		base.Metadata.TestType = override.Metadata.TestType
	}
	if override.Metadata.Objective != "" {
		base.Metadata.Objective = override.Metadata.Objective
	}
	if override.Metadata.DurationText != "" {
		base.Metadata.DurationText = override.Metadata.DurationText
	}
	return base
}
