// Public domain.

// Package config loads linker settings from defaults, a TOML config file,
// LINKER_* environment variables and command line flags, in increasing
// precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"

	"github.com/chapinalc/New-NewLinker/internal/grow"
	"github.com/chapinalc/New-NewLinker/internal/merge"
	"github.com/chapinalc/New-NewLinker/internal/oracle"
	"github.com/chapinalc/New-NewLinker/internal/track"
)

// ErrInvalid is returned for configuration values out of range.
var ErrInvalid = errors.New("invalid configuration")

// OracleConfig names the oracle programs.
type OracleConfig struct {
	Predict   string   `mapstructure:"predict" toml:"predict"`
	Fit       string   `mapstructure:"fit" toml:"fit"`
	Proximity string   `mapstructure:"proximity" toml:"proximity"`
	Elements  string   `mapstructure:"elements" toml:"elements"`
	FitArgs   []string `mapstructure:"fit_args" toml:"fit_args"`
}

// GrowConfig holds candidate search settings.
type GrowConfig struct {
	Interval      float64 `mapstructure:"interval" toml:"interval"`
	ErrSize       float64 `mapstructure:"err_size" toml:"err_size"`
	MaxCands      int     `mapstructure:"max_cands" toml:"max_cands"`
	FinalMaxCands int     `mapstructure:"final_max_cands" toml:"final_max_cands"`
	Margin        float64 `mapstructure:"margin" toml:"margin"`
	SigmaFactor   float64 `mapstructure:"sigma_factor" toml:"sigma_factor"`
	MinErr        float64 `mapstructure:"min_err" toml:"min_err"`
	MinCands      int     `mapstructure:"min_cands" toml:"min_cands"`
}

// MergeConfig holds merge settings.
type MergeConfig struct {
	Threshold      float64 `mapstructure:"threshold" toml:"threshold"`
	InitThreshold  float64 `mapstructure:"init_threshold" toml:"init_threshold"`
	OverlapDivisor int     `mapstructure:"overlap_divisor" toml:"overlap_divisor"`
	OverlapOffset  int     `mapstructure:"overlap_offset" toml:"overlap_offset"`
	MaxPasses      int     `mapstructure:"max_passes" toml:"max_passes"`
	MinRealLength  int     `mapstructure:"min_real_length" toml:"min_real_length"`
}

// SiftConfig holds the final sift threshold.
type SiftConfig struct {
	Threshold float64 `mapstructure:"threshold" toml:"threshold"`
}

// LogConfig selects logger output.
type LogConfig struct {
	Level       string `mapstructure:"level" toml:"level"`
	Development bool   `mapstructure:"development" toml:"development"`
}

// Config is the complete linker configuration.
type Config struct {
	WorkDir   string       `mapstructure:"work_dir" toml:"work_dir"`
	Overwrite bool         `mapstructure:"overwrite" toml:"overwrite"`
	Run       string       `mapstructure:"run" toml:"run"`
	Oracle    OracleConfig `mapstructure:"oracle" toml:"oracle"`
	Grow      GrowConfig   `mapstructure:"grow" toml:"grow"`
	Merge     MergeConfig  `mapstructure:"merge" toml:"merge"`
	Sift      SiftConfig   `mapstructure:"sift" toml:"sift"`
	Log       LogConfig    `mapstructure:"log" toml:"log"`
}

// SetDefaults installs built-in defaults in v.
func SetDefaults(v *viper.Viper) {
	g := grow.DefaultConfig()
	m := merge.DefaultConfig()
	v.SetDefault("work_dir", ".")
	v.SetDefault("overwrite", false)
	v.SetDefault("run", "")
	v.SetDefault("oracle.predict", oracle.DefaultCommands.Predict)
	v.SetDefault("oracle.fit", oracle.DefaultCommands.Fit)
	v.SetDefault("oracle.proximity", oracle.DefaultCommands.Proximity)
	v.SetDefault("oracle.elements", "")
	v.SetDefault("oracle.fit_args", []string{})
	v.SetDefault("grow.interval", g.Interval)
	v.SetDefault("grow.err_size", g.ErrSize)
	v.SetDefault("grow.max_cands", g.MaxCands)
	v.SetDefault("grow.final_max_cands", g.FinalMaxCands)
	v.SetDefault("grow.margin", g.Margin)
	v.SetDefault("grow.sigma_factor", g.SigmaFactor)
	v.SetDefault("grow.min_err", g.MinErr)
	v.SetDefault("grow.min_cands", g.MinCands)
	v.SetDefault("merge.threshold", m.Threshold)
	v.SetDefault("merge.init_threshold", m.InitThreshold)
	v.SetDefault("merge.overlap_divisor", m.Rule.Divisor)
	v.SetDefault("merge.overlap_offset", m.Rule.Offset)
	v.SetDefault("merge.max_passes", m.MaxPasses)
	v.SetDefault("merge.min_real_length", m.MinRealLength)
	v.SetDefault("sift.threshold", 50.)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// Init prepares v to read cfgFile, or linker.toml from the working or home
// directory if cfgFile is empty, and LINKER_* environment variables.
// Nested keys map to environment names with underscores, so grow.err_size
// is LINKER_GROW_ERR_SIZE.
func Init(v *viper.Viper, cfgFile string) {
	SetDefaults(v)
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("linker")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}
	v.SetEnvPrefix("LINKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load reads the config file if there is one and returns the validated
// configuration.  A missing default config file is not an error; a missing
// named one is.
func Load(v *viper.Viper) (Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) {
			return Config{}, fmt.Errorf("config: %w", err)
		}
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return c, c.Validate()
}

// Validate checks value ranges.
func (c Config) Validate() error {
	var bad []string
	if c.Grow.Interval <= 0 {
		bad = append(bad, "grow.interval must be positive")
	}
	if c.Grow.ErrSize <= 0 {
		bad = append(bad, "grow.err_size must be positive")
	}
	if c.Grow.MaxCands <= 0 {
		bad = append(bad, "grow.max_cands must be positive")
	}
	if c.Merge.OverlapDivisor <= 0 {
		bad = append(bad, "merge.overlap_divisor must be positive")
	}
	for _, th := range []struct {
		name string
		v    float64
	}{
		{"merge.threshold", c.Merge.Threshold},
		{"merge.init_threshold", c.Merge.InitThreshold},
		{"sift.threshold", c.Sift.Threshold},
	} {
		if th.v <= 0 {
			bad = append(bad, th.name+" must be positive")
		}
	}
	if len(bad) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(bad, "; "))
	}
	return nil
}

// GrowParams returns the candidate search parameters.
func (c Config) GrowParams() grow.Config {
	return grow.Config{
		Interval:      c.Grow.Interval,
		ErrSize:       c.Grow.ErrSize,
		MaxCands:      c.Grow.MaxCands,
		FinalMaxCands: c.Grow.FinalMaxCands,
		Margin:        c.Grow.Margin,
		SigmaFactor:   c.Grow.SigmaFactor,
		MinErr:        c.Grow.MinErr,
		MinCands:      c.Grow.MinCands,
	}
}

// MergeParams returns the merge parameters.
func (c Config) MergeParams() merge.Config {
	return merge.Config{
		Threshold:     c.Merge.Threshold,
		InitThreshold: c.Merge.InitThreshold,
		Rule:          track.OverlapRule{Divisor: c.Merge.OverlapDivisor, Offset: c.Merge.OverlapOffset},
		MaxPasses:     c.Merge.MaxPasses,
		MinRealLength: c.Merge.MinRealLength,
	}
}

// Commands returns the oracle command set.
func (c Config) Commands() oracle.Commands {
	return oracle.Commands{
		Predict:   c.Oracle.Predict,
		Fit:       c.Oracle.Fit,
		Proximity: c.Oracle.Proximity,
		Elements:  c.Oracle.Elements,
		FitArgs:   c.Oracle.FitArgs,
	}
}

// WriteTOML writes the effective configuration to path.
func (c Config) WriteTOML(path string) error {
	b, err := toml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
