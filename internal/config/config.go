package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable usmo reads,
// e.g. USMO_LOG_LEVEL or USMO_USE_SAS.
const EnvPrefix = "USMO"

// Config holds the settings for a single usmo invocation.
type Config struct {
	// LogLevel controls the verbosity of logging (debug, info, warn, error).
	// Default: "warn"
	LogLevel string `mapstructure:"log_level"`

	// LogFormat selects the log encoder, "console" or "json".
	// Default: "console"
	LogFormat string `mapstructure:"log_format"`

	// MountTool is the identifier looked for in a process's command name to
	// recognise a blob-filesystem mount.
	// Default: "blobfuse2"
	MountTool string `mapstructure:"mount_tool"`

	// LocalCopyTool is the native recursive copy program.
	// Default: "cp"
	LocalCopyTool string `mapstructure:"local_copy_tool"`

	// CloudCopyTool is the bulk cloud copy program.
	// Default: "azcopy"
	CloudCopyTool string `mapstructure:"cloud_copy_tool"`

	// CredentialTool is the identity-backed CLI used to mint SAS tokens.
	// Default: "az"
	CredentialTool string `mapstructure:"credential_tool"`

	// UseSAS appends a freshly minted SAS token to every translated blob URL.
	// Default: false
	UseSAS bool `mapstructure:"use_sas"`

	// SASExpiry is how long a minted token stays valid.
	// Default: 168h (7 days)
	SASExpiry time.Duration `mapstructure:"sas_expiry"`

	// PropagateFailures makes a failed transfer turn into a non-zero exit.
	// Default: true
	PropagateFailures bool `mapstructure:"propagate_failures"`
}

// setDefaults registers every key so that env-only overrides are picked up by Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "warn")
	v.SetDefault("log_format", "console")
	v.SetDefault("mount_tool", "blobfuse2")
	v.SetDefault("local_copy_tool", "cp")
	v.SetDefault("cloud_copy_tool", "azcopy")
	v.SetDefault("credential_tool", "az")
	v.SetDefault("use_sas", false)
	v.SetDefault("sas_expiry", 7*24*time.Hour)
	v.SetDefault("propagate_failures", true)
}

// Load builds a Config from defaults, an optional config file and USMO_* environment
// variables, in increasing order of precedence. When configFile is empty the user
// config directory is searched for usmo/config.yaml; a missing file is not an error.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "usmo"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// Validate performs basic validation on the configuration.
// Returns an error if any invalid settings are detected.
func (c *Config) Validate() error {
	tools := map[string]string{
		"mount_tool":      c.MountTool,
		"local_copy_tool": c.LocalCopyTool,
		"cloud_copy_tool": c.CloudCopyTool,
		"credential_tool": c.CredentialTool,
	}
	for key, value := range tools {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%s cannot be empty", key)
		}
	}
	if c.SASExpiry <= 0 {
		return fmt.Errorf("invalid sas_expiry: %s (must be positive)", c.SASExpiry)
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("invalid log_format: %q (must be console or json)", c.LogFormat)
	}
	return nil
}
