package config

import (
	"errors"
	"fmt"
	"strings"
)

// Progress display modes.
const (
	ProgressBar  = "bar"
	ProgressTUI  = "tui"
	ProgressNone = "none"
)

const (
	// DefaultCompressionLevel is the highest zstd level.
	DefaultCompressionLevel = 22
	MinCompressionLevel     = 1
	MaxCompressionLevel     = 22

	// DefaultNumWorkers of zero means min(NumCPU, archive count), picked at run time.
	DefaultNumWorkers = 0
	DefaultProgress   = ProgressBar
	DefaultLogLevel   = "info"
	DefaultLogFormat  = "text"
	DefaultLogOutput  = "stderr"
)

var (
	ErrInvalidWorkers          = errors.New("workers must be >= 0")
	ErrInvalidCompressionLevel = fmt.Errorf("compression level must be between %d and %d", MinCompressionLevel, MaxCompressionLevel)
	ErrInvalidProgress         = errors.New("progress must be one of bar, tui, none")
	ErrInvalidLogFormat        = errors.New("log format must be text or json")
	ErrInvalidLogLevel         = errors.New("log level must be one of debug, info, warn, error")
)

// Config holds application settings.
// Field tags use mapstructure for viper unmarshalling.
type Config struct {
	InputDir         string    `mapstructure:"input_dir"`
	OutputDir        string    `mapstructure:"output"`
	DbPath           string    `mapstructure:"db_path"` // empty disables the run ledger
	NumWorkers       int       `mapstructure:"workers"`
	CompressionLevel int       `mapstructure:"compression_level"`
	Progress         string    `mapstructure:"progress"`
	NoPlot           bool      `mapstructure:"no_plot"`
	Log              LogConfig `mapstructure:"log"`
}

// LogConfig selects the slog handler built at startup.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// Validate checks ranges and enumerations. Paths are checked by the commands
// that use them.
func (c *Config) Validate() error {
	if c.NumWorkers < 0 {
		return ErrInvalidWorkers
	}

	if c.CompressionLevel < MinCompressionLevel || c.CompressionLevel > MaxCompressionLevel {
		return fmt.Errorf("%w: got %d", ErrInvalidCompressionLevel, c.CompressionLevel)
	}

	switch c.Progress {
	case ProgressBar, ProgressTUI, ProgressNone:
	default:
		return fmt.Errorf("%w: got %q", ErrInvalidProgress, c.Progress)
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: got %q", ErrInvalidLogLevel, c.Log.Level)
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: got %q", ErrInvalidLogFormat, c.Log.Format)
	}

	return nil
}
