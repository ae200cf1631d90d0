// Package config holds the options accepted by IndexedMap construction and
// the machinery for loading them from a YAML/TOML file layered under
// environment variables, using a separate viper instance for each load.
package config

// IndexingLevel names a built-in indexing aggressiveness preset applied at
// IndexedMap construction when no explicit indexes are registered.
type IndexingLevel string

const (
	IndexingNone       IndexingLevel = "none"
	IndexingMinimal    IndexingLevel = "minimal"
	IndexingBalanced   IndexingLevel = "balanced"
	IndexingAggressive IndexingLevel = "aggressive"
)

// BuildProgress is delivered to an OnIndexBuilding callback while an index
// is being lazily or eagerly materialized.
type BuildProgress struct {
	Attribute string
	Done      int
	Total     int
}

// AdvisorOptions configures the adaptive advisor (internal/adaptive).
type AdvisorOptions struct {
	Enabled        bool    `yaml:"enabled" toml:"enabled" mapstructure:"enabled"`
	MinQueryCount  int     `yaml:"minQueryCount" toml:"minQueryCount" mapstructure:"minQueryCount"`
	MinAverageCost float64 `yaml:"minAverageCost" toml:"minAverageCost" mapstructure:"minAverageCost"`
}

// AutoIndexOptions configures the auto-index manager (internal/adaptive).
type AutoIndexOptions struct {
	Enabled        bool `yaml:"enabled" toml:"enabled" mapstructure:"enabled"`
	Threshold      int  `yaml:"threshold" toml:"threshold" mapstructure:"threshold"`
	MaxAutoIndexes int  `yaml:"maxAutoIndexes" toml:"maxAutoIndexes" mapstructure:"maxAutoIndexes"`
}

// AdaptiveIndexingOptions bundles the advisor and auto-index sub-options.
type AdaptiveIndexingOptions struct {
	Advisor   AdvisorOptions   `yaml:"advisor" toml:"advisor" mapstructure:"advisor"`
	AutoIndex AutoIndexOptions `yaml:"autoIndex" toml:"autoIndex" mapstructure:"autoIndex"`
}

// Options are the settings accepted by IndexedMap construction.
type Options struct {
	LazyIndexBuilding bool                    `yaml:"lazyIndexBuilding" toml:"lazyIndexBuilding" mapstructure:"lazyIndexBuilding"`
	DefaultIndexing   IndexingLevel           `yaml:"defaultIndexing" toml:"defaultIndexing" mapstructure:"defaultIndexing"`
	AdaptiveIndexing  AdaptiveIndexingOptions `yaml:"adaptiveIndexing" toml:"adaptiveIndexing" mapstructure:"adaptiveIndexing"`

	// OnIndexBuilding receives materialization progress. It has no file/env
	// representation; callers set it in code after loading the rest.
	OnIndexBuilding func(BuildProgress) `yaml:"-" toml:"-" mapstructure:"-"`
}

// DefaultOptions returns the baseline options applied when nothing is
// loaded from a file or overridden by the caller: eager balanced indexing,
// adaptive indexing off.
func DefaultOptions() Options {
	return Options{
		LazyIndexBuilding: false,
		DefaultIndexing:   IndexingBalanced,
		AdaptiveIndexing: AdaptiveIndexingOptions{
			Advisor: AdvisorOptions{
				Enabled:        false,
				MinQueryCount:  10,
				MinAverageCost: 50,
			},
			AutoIndex: AutoIndexOptions{
				Enabled:        false,
				Threshold:      100,
				MaxAutoIndexes: 8,
			},
		},
	}
}
