package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// configName is the config file name without extension.
const configName = ".midiset"

const configType = "yaml"

// envPrefix is the environment variable prefix, e.g. MIDISET_WORKERS.
const envPrefix = "MIDISET"

// FlagKeys maps config keys to the command-line flag that overrides them.
var FlagKeys = map[string]string{
	"output":            "output",
	"workers":           "jobs",
	"no_plot":           "no-plot",
	"db_path":           "db-path",
	"compression_level": "compression-level",
	"progress":          "progress",
	"log.level":         "log-level",
	"log.format":        "log-format",
	"log.output":        "log-output",
}

// LoadConfig resolves settings from defaults, an optional YAML file, MIDISET_*
// environment variables and any flags in flags that the user explicitly set,
// in increasing order of precedence. If configPath is empty the file is
// searched for in CWD and $HOME; a missing file is not an error.
func LoadConfig(configPath string, flags *pflag.FlagSet) (*Config, error) {
	viperCfg := viper.New()

	applyDefaults(viperCfg)

	viperCfg.SetConfigType(configType)
	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viperCfg.AutomaticEnv()

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(configName)
		viperCfg.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viperCfg.AddConfigPath(home)
		}
	}

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFound) {
			return nil, fmt.Errorf("read config: %w", readErr)
		}
	}

	if flags != nil {
		for key, name := range FlagKeys {
			f := flags.Lookup(name)
			if f == nil || !f.Changed {
				continue
			}
			if err := viperCfg.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag --%s: %w", name, err)
			}
		}
	}

	var cfg Config

	unmarshalErr := viperCfg.Unmarshal(&cfg)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal config: %w", unmarshalErr)
	}

	validateErr := cfg.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("validate config: %w", validateErr)
	}

	return &cfg, nil
}

func applyDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("input_dir", "")
	viperCfg.SetDefault("output", "")
	viperCfg.SetDefault("db_path", "")
	viperCfg.SetDefault("workers", DefaultNumWorkers)
	viperCfg.SetDefault("compression_level", DefaultCompressionLevel)
	viperCfg.SetDefault("progress", DefaultProgress)
	viperCfg.SetDefault("no_plot", false)

	viperCfg.SetDefault("log.level", DefaultLogLevel)
	viperCfg.SetDefault("log.format", DefaultLogFormat)
	viperCfg.SetDefault("log.output", DefaultLogOutput)
}
