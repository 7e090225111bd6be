// Package config loads stmtscan settings into viper: the embedded defaults,
// then an optional user file, then STMTSCAN_* environment variables.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

//go:embed default.yaml
var defaultYAML []byte

const (
	EnvPrefix = "STMTSCAN"
	FileName  = ".stmtscan"
)

// Load prepares the global viper instance. An explicit cfgFile must exist;
// otherwise .stmtscan.yaml is looked up in the working and home directories
// and silently skipped when absent.
func Load(cfgFile string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}

	if err := LoadDefaults(); err != nil {
		return err
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home)
		}
		viper.SetConfigName(FileName)
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.MergeInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("reading config file: %w", err)
		}
	}

	return Validate()
}

// LoadDefaults replaces the current viper configuration with the embedded
// defaults. Tests use it directly.
func LoadDefaults() error {
	viper.SetConfigType("yaml")
	if err := viper.ReadConfig(bytes.NewReader(defaultYAML)); err != nil {
		return fmt.Errorf("loading embedded configuration: %w", err)
	}
	return nil
}

// Validate checks the values a bad user file can break at runtime.
func Validate() error {
	var errs []error

	for _, key := range []string{"line_regex.transaction", "line_regex.row_shape"} {
		pattern := viper.GetString(key)
		if pattern == "" {
			errs = append(errs, fmt.Errorf("%s is required", key))
			continue
		}
		if _, err := regexp.Compile(pattern); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
	}

	if viper.GetFloat64("spatial.lookback") <= 0 {
		errs = append(errs, errors.New("spatial.lookback must be positive"))
	}

	if t := viper.GetInt("detector.fuzzy_threshold"); t < 0 || t > 100 {
		errs = append(errs, fmt.Errorf("detector.fuzzy_threshold must be within 0..100, got %d", t))
	}

	for _, mode := range []string{"default", "strict", "lenient"} {
		band := viper.GetIntSlice("detector.bands." + mode)
		if len(band) != 2 || band[0] > band[1] {
			errs = append(errs, fmt.Errorf("detector.bands.%s must be [low, high], got %v", mode, band))
		}
	}

	return errors.Join(errs...)
}
