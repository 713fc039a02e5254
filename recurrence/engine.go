package recurrence

import (
	"log/slog"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/pverga/libitip/calendar"
)

// Engine expands recurrence rules and resolves concrete instances.
type Engine struct {
	cache  *Cache
	config EngineConfig
	logger *slog.Logger
}

// NewEngine creates an engine with the default configuration.
func NewEngine() *Engine {
	return NewEngineWithConfig(DefaultEngineConfig)
}

// NewEngineWithConfig creates an engine with custom configuration.
func NewEngineWithConfig(config EngineConfig) *Engine {
	if config.MaxIterations <= 0 {
		config.MaxIterations = DefaultEngineConfig.MaxIterations
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var cache *Cache
	if config.CacheEnabled {
		cache = NewCache(config.CacheConfig)
	}
	return &Engine{cache: cache, config: config, logger: logger}
}

// Close releases the engine's cache resources.
func (e *Engine) Close() {
	if e.cache != nil {
		e.cache.Close()
	}
}

// Iterator lazily produces the ordered candidate occurrences of a rule
// anchored at a master event's start and end. It is restartable via Reset.
type Iterator struct {
	rule        *calendar.RecurrenceRule
	anchorStart time.Time
	duration    time.Duration
	maxIter     int

	rr         *rrule.RRule
	next       rrule.Next
	iterations int
}

// NewIterator validates the rule and prepares iteration. The anchor's
// duration is preserved for every occurrence.
func NewIterator(rule *calendar.RecurrenceRule, anchorStart, anchorEnd time.Time, maxIterations int) (*Iterator, error) {
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	opt, err := ruleToROption(rule, anchorStart)
	if err != nil {
		return nil, err
	}
	rr, err := rrule.NewRRule(*opt)
	if err != nil {
		return nil, calendar.WrapError(calendar.KindValidation, err, "build recurrence rule")
	}
	if maxIterations <= 0 {
		maxIterations = DefaultEngineConfig.MaxIterations
	}
	it := &Iterator{
		rule:        rule,
		anchorStart: anchorStart,
		duration:    anchorEnd.Sub(anchorStart),
		maxIter:     maxIterations,
		rr:          rr,
	}
	it.Reset()
	return it, nil
}

// Reset restarts iteration from the first occurrence.
func (it *Iterator) Reset() {
	it.next = it.rr.Iterator()
	it.iterations = 0
}

// Next returns the next candidate occurrence. ok is false when the rule is
// exhausted. When the iteration safety cap is hit, ok is false and err is a
// RecurrenceLimit error; results produced so far remain valid.
func (it *Iterator) Next() (occ Occurrence, ok bool, err error) {
	if it.iterations >= it.maxIter {
		return Occurrence{}, false, calendar.NewError(calendar.KindRecurrenceLimit,
			"recurrence iteration cap of %d reached", it.maxIter)
	}
	start, ok := it.next()
	if !ok {
		return Occurrence{}, false, nil
	}
	it.iterations++
	return Occurrence{Start: start, End: start.Add(it.duration)}, true, nil
}

// Expand returns every occurrence of the rule overlapping [windowStart,
// windowEnd). Partial results are returned together with a RecurrenceLimit
// error when the safety cap is hit.
func (e *Engine) Expand(rule *calendar.RecurrenceRule, anchorStart, anchorEnd, windowStart, windowEnd time.Time) ([]Occurrence, error) {
	if !windowEnd.After(windowStart) {
		return nil, calendar.NewError(calendar.KindValidation,
			"expansion window end %s is not after start %s", windowEnd, windowStart)
	}
	it, err := NewIterator(rule, anchorStart, anchorEnd, e.config.MaxIterations)
	if err != nil {
		return nil, err
	}
	var out []Occurrence
	for {
		occ, ok, err := it.Next()
		if err != nil {
			e.logger.Warn("recurrence expansion hit iteration cap",
				"cap", e.config.MaxIterations, "produced", len(out))
			return out, err
		}
		if !ok {
			return out, nil
		}
		if !occ.Start.Before(windowEnd) {
			return out, nil
		}
		if occ.Overlaps(windowStart, windowEnd) {
			out = append(out, occ)
		}
	}
}
