package main

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/jamesainslie/ferry/pkg/ferry/config"
	"github.com/jamesainslie/ferry/pkg/ferry/logging"
	"github.com/jamesainslie/ferry/pkg/ferry/types"
)

// defaultLogMaxSize is used when the configured rotation size is empty or
// unparseable.
const defaultLogMaxSize = 10 * types.MiB

// bootstrapLogging initializes the logging system from the resolved
// configuration. Verbose mode mirrors debug output to stderr.
func bootstrapLogging() error {
	level := viper.GetString("logging.level")
	consoleLevel := ""
	if getVerbose() {
		level = "debug"
		consoleLevel = "debug"
	}

	cfg := logging.Config{
		Level: level,
		Path:  viper.GetString("logging.path"),
		Rotation: parseRotationConfig(config.RotationConfig{
			MaxSize:    viper.GetString("logging.rotation.max_size"),
			MaxAge:     viper.GetInt("logging.rotation.max_age"),
			MaxBackups: viper.GetInt("logging.rotation.max_backups"),
			Daily:      viper.GetBool("logging.rotation.daily"),
		}),
		Components:   viper.GetStringMapString("logging.components"),
		ConsoleLevel: consoleLevel,
	}

	if err := logging.Init(cfg); err != nil {
		return fmt.Errorf("initialize logging: %w", err)
	}
	return nil
}

// parseRotationConfig converts the string-based file configuration into
// the logging package's numeric form. Empty or invalid sizes fall back to
// the default rather than failing startup.
func parseRotationConfig(rc config.RotationConfig) logging.RotationConfig {
	maxSize := int64(defaultLogMaxSize)
	if rc.MaxSize != "" {
		if parsed, err := types.ParseSize(rc.MaxSize); err == nil {
			maxSize = parsed
		}
	}
	return logging.RotationConfig{
		MaxSize:    maxSize,
		MaxAge:     rc.MaxAge,
		MaxBackups: rc.MaxBackups,
		Daily:      rc.Daily,
	}
}
