package recurrence

import (
	"log/slog"
	"time"
)

// EngineConfig holds configuration options for the recurrence engine.
type EngineConfig struct {
	// CacheEnabled turns on caching of resolved instance lists.
	CacheEnabled bool
	CacheConfig  CacheConfig

	// MaxIterations is the safety cap on candidate occurrences examined per
	// expansion. Hitting it is reported, never silently truncated.
	MaxIterations int

	// Logger receives cap warnings. Defaults to slog.Default().
	Logger *slog.Logger
}

// DefaultEngineConfig provides sensible defaults for production use.
var DefaultEngineConfig = EngineConfig{
	CacheEnabled:  true,
	CacheConfig:   DefaultCacheConfig,
	MaxIterations: 100000,
}

// LowMemoryConfig is tuned for memory-constrained environments.
var LowMemoryConfig = EngineConfig{
	CacheEnabled: true,
	CacheConfig: CacheConfig{
		TTL:             5 * time.Minute,
		MaxEntries:      100,
		CleanupInterval: 2 * time.Minute,
	},
	MaxIterations: 100000,
}

// DisabledCacheConfig turns off caching entirely.
var DisabledCacheConfig = EngineConfig{
	CacheEnabled:  false,
	MaxIterations: 100000,
}
