// Package config provides configuration management for tb-variance.
// It loads a .env file, an optional YAML settings file and TBV_* environment variables.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/shunichi-ikebuchi/tb-variance/pkg/pipeline"
	"github.com/shunichi-ikebuchi/tb-variance/pkg/statement"
	"github.com/shunichi-ikebuchi/tb-variance/pkg/variance"
)

// EnvPrefix prefixes every environment override, e.g. TBV_VARIANCE_POLICY.
const EnvPrefix = "TBV"

// Config represents the application configuration.
type Config struct {
	Variance VarianceConfig `mapstructure:"variance"`
	Taxonomy TaxonomyConfig `mapstructure:"taxonomy"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Display  DisplayConfig  `mapstructure:"display"`
	Server   ServerConfig   `mapstructure:"server"`
	Debug    bool           `mapstructure:"debug"`
}

// VarianceConfig represents the flagging rule.
type VarianceConfig struct {
	ThresholdPercent float64 `mapstructure:"threshold_percent"`
	// AbsoluteThreshold is a decimal amount, "" for the policy default, or "off".
	AbsoluteThreshold string `mapstructure:"absolute_threshold"`
	Policy            string `mapstructure:"policy"`
}

// TaxonomyConfig points at an optional keyword taxonomy YAML file.
type TaxonomyConfig struct {
	File string `mapstructure:"file"`
}

// StorageConfig represents the local data layout.
type StorageConfig struct {
	Root      string `mapstructure:"root"`
	DBPath    string `mapstructure:"db_path"`
	ExportDir string `mapstructure:"export_dir"`
}

// DisplayConfig represents presentation settings.
type DisplayConfig struct {
	CurrencySymbol string `mapstructure:"currency_symbol"`
	PeriodLabel    string `mapstructure:"period_label"`
}

// ServerConfig represents the HTTP shell settings.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
	// PrincipalHeader names the header an upstream identity provider uses to pass an
	// opaque user identifier.
	PrincipalHeader  string `mapstructure:"principal_header"`
	RequirePrincipal bool   `mapstructure:"require_principal"`
}

var disabledValues = map[string]bool{"off": true, "disabled": true, "none": true}

// Load loads configuration.
// envPath, when set, must name a readable .env file; otherwise .env in the current
// directory is loaded if present. settingsPath optionally names a YAML settings file.
func Load(envPath, settingsPath string) (*Config, error) {
	// Load .env file
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
	} else {
		_ = godotenv.Load()
	}

	v := viper.New()

	// Default values
	v.SetDefault("variance.threshold_percent", variance.DefaultThresholdPercent)
	v.SetDefault("variance.absolute_threshold", "")
	v.SetDefault("variance.policy", string(variance.PolicyPercentOnly))
	v.SetDefault("taxonomy.file", "")
	v.SetDefault("storage.root", "./tb-variance-data")
	v.SetDefault("storage.db_path", "")
	v.SetDefault("storage.export_dir", "")
	v.SetDefault("display.currency_symbol", "$")
	v.SetDefault("display.period_label", "last month")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.principal_header", "X-Authenticated-User")
	v.SetDefault("server.require_principal", false)
	v.SetDefault("debug", false)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if settingsPath == "" {
		settingsPath = os.Getenv(EnvPrefix + "_SETTINGS")
	}
	if settingsPath != "" {
		v.SetConfigFile(settingsPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read settings file: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// DEBUG=true is honoured for parity with other tooling
	if os.Getenv("DEBUG") == "true" {
		c.Debug = true
	}

	return &c, nil
}

// Validate validates the configuration.
// It checks value ranges and that every required field path (e.g. {"server", "addr"})
// is set.
func (c *Config) Validate(required ...[]string) error {
	var problems []string

	if _, err := c.Thresholds(); err != nil {
		problems = append(problems, err.Error())
	}

	var missing []string
	for _, path := range required {
		if len(path) < 2 {
			continue
		}

		var value string
		switch path[0] {
		case "storage":
			switch path[1] {
			case "root":
				value = c.Storage.Root
			case "dbPath":
				value = c.Storage.DBPath
			case "exportDir":
				value = c.Storage.ExportDir
			}
		case "server":
			switch path[1] {
			case "addr":
				value = c.Server.Addr
			case "principalHeader":
				value = c.Server.PrincipalHeader
			}
		case "taxonomy":
			if path[1] == "file" {
				value = c.Taxonomy.File
			}
		}

		if value == "" {
			missing = append(missing, joinPath(path))
		}
	}

	if len(missing) > 0 {
		problems = append(problems, fmt.Sprintf("missing required configuration: %v", missing))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s\nPlease check your settings file or TBV_* environment variables", strings.Join(problems, "; "))
	}

	return nil
}

// Thresholds converts the variance settings into classifier thresholds.
func (c *Config) Thresholds() (variance.Thresholds, error) {
	policy, err := variance.ParsePolicy(c.Variance.Policy)
	if err != nil {
		return variance.Thresholds{}, err
	}

	th := variance.Thresholds{
		Policy:           policy,
		ThresholdPercent: decimal.NewFromFloat(c.Variance.ThresholdPercent),
	}

	abs := strings.ToLower(strings.TrimSpace(c.Variance.AbsoluteThreshold))
	switch {
	case disabledValues[abs]:
	case abs == "":
		if policy == variance.PolicyPercentOrAbsolute {
			th.AbsoluteThreshold = decimal.NewNullDecimal(decimal.NewFromInt(variance.DefaultAbsoluteThreshold))
		}
	default:
		d, err := decimal.NewFromString(abs)
		if err != nil {
			return variance.Thresholds{}, fmt.Errorf("invalid absolute threshold %q: %w", c.Variance.AbsoluteThreshold, err)
		}
		th.AbsoluteThreshold = decimal.NewNullDecimal(d)
	}

	if err := th.Validate(); err != nil {
		return variance.Thresholds{}, err
	}
	return th, nil
}

// LoadTaxonomy returns the configured taxonomy, or the default one when no file is set.
func (c *Config) LoadTaxonomy() (*statement.Taxonomy, error) {
	if c.Taxonomy.File == "" {
		return statement.DefaultTaxonomy(), nil
	}
	tax, err := statement.LoadTaxonomy(c.Taxonomy.File)
	if err != nil {
		return nil, err
	}
	slog.Debug("Loaded taxonomy", "file", c.Taxonomy.File, "rules", len(tax.Rules()))
	return tax, nil
}

// Pipeline builds the pipeline configuration.
func (c *Config) Pipeline() (pipeline.Config, error) {
	th, err := c.Thresholds()
	if err != nil {
		return pipeline.Config{}, err
	}
	tax, err := c.LoadTaxonomy()
	if err != nil {
		return pipeline.Config{}, err
	}
	return pipeline.Config{
		Thresholds:     th,
		Taxonomy:       tax,
		CurrencySymbol: c.Display.CurrencySymbol,
		PeriodLabel:    c.Display.PeriodLabel,
	}, nil
}

// joinPath joins a path slice into a dot-separated string.
func joinPath(path []string) string {
	return strings.Join(path, ".")
}
