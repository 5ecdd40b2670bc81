package types

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Config holds the settings read from config.yaml and the environment.
type Config struct {
	DataDir      string `mapstructure:"data_dir" yaml:"data_dir,omitempty"`
	DefaultStack string `mapstructure:"default_stack" yaml:"default_stack"`
	LogLevel     string `mapstructure:"log_level" yaml:"log_level"`
	Color        string `mapstructure:"color" yaml:"color"`
	// PDFDir is the directory "bib sync" scans for new PDFs.
	PDFDir string `mapstructure:"pdf_dir" yaml:"pdf_dir,omitempty"`
}

// Log levels accepted in Config.LogLevel.
const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

// Color modes accepted in Config.Color.
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

// DefaultConfig returns the configuration used when config.yaml sets
// nothing.
func DefaultConfig() Config {
	return Config{
		DefaultStack: DefaultStackName,
		LogLevel:     LogLevelWarn,
		Color:        ColorAuto,
	}
}

// Validate checks that the Config is well-formed.
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.DefaultStack, stackNameRules...),
		validation.Field(&c.LogLevel, validation.Required,
			validation.In(LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError)),
		validation.Field(&c.Color, validation.Required,
			validation.In(ColorAuto, ColorAlways, ColorNever)),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}
