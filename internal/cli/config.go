package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/bib/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"
	envPrefix      = "BIB"

	cfgKeyDataDir      = "data_dir"
	cfgKeyDefaultStack = "default_stack"
	cfgKeyLogLevel     = "log_level"
	cfgKeyColor        = "color"
	cfgKeyPDFDir       = "pdf_dir"
)

// loadConfig reads config.yaml from configDir with BIB_ environment
// overrides. A missing config directory or file yields the defaults.
// data_dir is not bound to the environment: BIB_DATA_DIR ranks below the
// config file and is handled by paths.ResolveDataDir.
func loadConfig(configDir string) (types.Config, error) {
	def := types.DefaultConfig()

	v := viper.New()
	v.SetDefault(cfgKeyDefaultStack, def.DefaultStack)
	v.SetDefault(cfgKeyLogLevel, def.LogLevel)
	v.SetDefault(cfgKeyColor, def.Color)
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)

	v.SetEnvPrefix(envPrefix)
	for _, key := range []string{cfgKeyDefaultStack, cfgKeyLogLevel, cfgKeyColor, cfgKeyPDFDir} {
		if err := v.BindEnv(key); err != nil {
			return def, fmt.Errorf("%w: bind %s: %w", types.ErrInvalidConfig, key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return def, fmt.Errorf("%w: read %s: %w", types.ErrInvalidConfig,
				filepath.Join(configDir, configFileExt), err)
		}
	}

	var cfg types.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return def, fmt.Errorf("%w: %w", types.ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return def, err
	}
	return cfg, nil
}

// writeConfigIfMissing creates config.yaml with cfg. An existing file is
// left untouched and reported as not written.
func writeConfigIfMissing(configDir string, cfg types.Config) (bool, error) {
	path := filepath.Join(configDir, configFileExt)
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("%w: stat config file: %w", types.ErrIO, err)
	}

	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return false, fmt.Errorf("%w: create config directory: %w", types.ErrIO, err)
	}
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return false, fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return false, fmt.Errorf("%w: write config: %w", types.ErrIO, err)
	}
	return true, nil
}

// newLogger returns a text logger on w at level, or at debug when verbose.
func newLogger(w io.Writer, level string, verbose bool) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelWarn
	}
	if verbose {
		lvl = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}
