package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// LoadLayered builds Options from zero or more config files (later files
// override earlier ones) overlaid with environment variables under
// envPrefix, so e.g. REPLIKV_LAZYINDEXBUILDING wins over anything set in
// a file. Each call returns its own *viper.Viper so a process can host
// more than one IndexedMap with independently configured options.
func LoadLayered(envPrefix string, paths ...string) (Options, *viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, DefaultOptions())

	for i, path := range paths {
		v.SetConfigFile(path)
		var err error
		if i == 0 {
			err = v.ReadInConfig()
		} else {
			err = v.MergeInConfig()
		}
		if err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); ok {
				continue
			}
			return DefaultOptions(), nil, fmt.Errorf("config: load %q: %w", path, err)
		}
	}

	var opts Options
	if err := v.Unmarshal(&opts); err != nil {
		return DefaultOptions(), nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return opts, v, nil
}

// setDefaults seeds viper's defaults layer from a baseline Options value so
// keys absent from every file and every env var still resolve sensibly.
func setDefaults(v *viper.Viper, defaults Options) {
	v.SetDefault("lazyIndexBuilding", defaults.LazyIndexBuilding)
	v.SetDefault("defaultIndexing", string(defaults.DefaultIndexing))
	v.SetDefault("adaptiveIndexing.advisor.enabled", defaults.AdaptiveIndexing.Advisor.Enabled)
	v.SetDefault("adaptiveIndexing.advisor.minQueryCount", defaults.AdaptiveIndexing.Advisor.MinQueryCount)
	v.SetDefault("adaptiveIndexing.advisor.minAverageCost", defaults.AdaptiveIndexing.Advisor.MinAverageCost)
	v.SetDefault("adaptiveIndexing.autoIndex.enabled", defaults.AdaptiveIndexing.AutoIndex.Enabled)
	v.SetDefault("adaptiveIndexing.autoIndex.threshold", defaults.AdaptiveIndexing.AutoIndex.Threshold)
	v.SetDefault("adaptiveIndexing.autoIndex.maxAutoIndexes", defaults.AdaptiveIndexing.AutoIndex.MaxAutoIndexes)
}
