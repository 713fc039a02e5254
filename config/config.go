// Package config provides the engine's tunable limits and site policy,
// loaded from a YAML file with environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/pverga/libitip/freebusy"
	"github.com/pverga/libitip/itip"
)

// Duration is a time.Duration that reads and writes human-readable values
// such as "10s" or "15m" in YAML and environment variables.
type Duration time.Duration

// Std returns the standard library form.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var ns int64
	if err := node.Decode(&ns); err == nil {
		*d = Duration(ns)
		return nil
	}
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Limits bounds the engine's resource use.
type Limits struct {
	// MaxIterations caps candidate occurrences examined per recurrence
	// expansion. Exceeding it is reported, never silently truncated.
	MaxIterations int `yaml:"max_iterations" env:"LIBITIP_MAX_ITERATIONS"`

	// LookupTimeout bounds each free/busy lookup.
	LookupTimeout Duration `yaml:"lookup_timeout" env:"LIBITIP_LOOKUP_TIMEOUT"`

	// CacheTTL and CacheMaxEntries tune the instance resolution cache.
	CacheTTL        Duration `yaml:"cache_ttl" env:"LIBITIP_CACHE_TTL"`
	CacheMaxEntries int      `yaml:"cache_max_entries" env:"LIBITIP_CACHE_MAX_ENTRIES"`

	// UndoTTL keeps pre-mutation snapshots recoverable for this long.
	UndoTTL Duration `yaml:"undo_ttl" env:"LIBITIP_UNDO_TTL"`
}

// Policy holds site-wide scheduling behavior.
type Policy struct {
	// NotifyOrganizerChanges enables scheduling messages for
	// organizer-initiated changes.
	NotifyOrganizerChanges bool `yaml:"notify_organizer_changes" env:"LIBITIP_NOTIFY_ORGANIZER_CHANGES"`

	// HonorAttendeeOptOut skips attendees who opted out of notifications.
	HonorAttendeeOptOut bool `yaml:"honor_attendee_opt_out" env:"LIBITIP_HONOR_ATTENDEE_OPT_OUT"`

	// Slot finding policy.
	SlotMinutes       int  `yaml:"slot_minutes" env:"LIBITIP_SLOT_MINUTES"`
	ExcludeOffHours   bool `yaml:"exclude_off_hours" env:"LIBITIP_EXCLUDE_OFF_HOURS"`
	BusinessStartHour int  `yaml:"business_start_hour" env:"LIBITIP_BUSINESS_START_HOUR"`
	BusinessEndHour   int  `yaml:"business_end_hour" env:"LIBITIP_BUSINESS_END_HOUR"`

	// Workdays lists working weekdays as English names ("monday", ...).
	Workdays []string `yaml:"workdays" env:"LIBITIP_WORKDAYS"`
}

// Config is the top-level engine configuration.
type Config struct {
	Limits Limits `yaml:"limits"`
	Policy Policy `yaml:"policy"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Limits: Limits{
			MaxIterations:   100000,
			LookupTimeout:   Duration(10 * time.Second),
			CacheTTL:        Duration(15 * time.Minute),
			CacheMaxEntries: 1000,
			UndoTTL:         Duration(time.Minute),
		},
		Policy: Policy{
			NotifyOrganizerChanges: true,
			HonorAttendeeOptOut:    true,
			SlotMinutes:            30,
			ExcludeOffHours:        false,
			BusinessStartHour:      9,
			BusinessEndHour:        18,
			Workdays:               []string{"monday", "tuesday", "wednesday", "thursday", "friday"},
		},
	}
}

// Load reads the YAML file at path on top of the defaults, then applies
// environment overrides. A missing file is not an error; the defaults and
// environment alone apply.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			// First run: defaults apply.
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("apply environment overrides: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to path with owner-only permissions.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

// Validate rejects nonsensical settings.
func (c *Config) Validate() error {
	if c.Limits.MaxIterations <= 0 {
		return fmt.Errorf("limits.max_iterations must be positive, got %d", c.Limits.MaxIterations)
	}
	if c.Policy.SlotMinutes <= 0 {
		return fmt.Errorf("policy.slot_minutes must be positive, got %d", c.Policy.SlotMinutes)
	}
	if c.Policy.BusinessStartHour < 0 || c.Policy.BusinessEndHour > 24 ||
		c.Policy.BusinessStartHour >= c.Policy.BusinessEndHour {
		return fmt.Errorf("policy business hours [%d, %d) are invalid",
			c.Policy.BusinessStartHour, c.Policy.BusinessEndHour)
	}
	for _, day := range c.Policy.Workdays {
		if _, err := ParseWeekday(day); err != nil {
			return err
		}
	}
	return nil
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ParseWeekday maps an English weekday name to time.Weekday.
func ParseWeekday(name string) (time.Weekday, error) {
	if d, ok := weekdays[name]; ok {
		return d, nil
	}
	return 0, fmt.Errorf("unknown weekday %q", name)
}

// WorkdaySet converts Policy.Workdays to time.Weekday values, ignoring any
// invalid names (Validate catches those earlier).
func (p *Policy) WorkdaySet() []time.Weekday {
	var out []time.Weekday
	for _, name := range p.Workdays {
		if d, ok := weekdays[name]; ok {
			out = append(out, d)
		}
	}
	return out
}

// NotifyMask converts the policy flags into the itip bitmask.
func (p *Policy) NotifyMask() itip.NotifyPolicy {
	mask := itip.NotifyNone
	if p.NotifyOrganizerChanges {
		mask |= itip.NotifyOrganizerChanges
	}
	if p.HonorAttendeeOptOut {
		mask |= itip.NotifyAttendeeOptOut
	}
	return mask
}

// SlotPolicy converts the policy into the slot finder's form.
func (p *Policy) SlotPolicy() *freebusy.SlotPolicy {
	return &freebusy.SlotPolicy{
		ExcludeOffHours:   p.ExcludeOffHours,
		BusinessStartHour: p.BusinessStartHour,
		BusinessEndHour:   p.BusinessEndHour,
		Workdays:          p.WorkdaySet(),
	}
}
