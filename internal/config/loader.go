package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	envConfigDefaultPath = "DGG_CONFIG_DEFAULT_PATH"
	defaultConfigName    = "config.yaml"
)

// Load builds configuration from defaults, optional config file, env vars, and returns the resolved path.
// Precedence: defaults < config file < env vars < caller overrides.
func Load(logger *zerolog.Logger, explicitPath string) (Config, string, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetDefault("chat_url", cfg.ChatURL)
	v.SetDefault("api_url", cfg.APIURL)
	v.SetDefault("auth_token", cfg.AuthToken)
	v.SetDefault("session_id", cfg.SessionID)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("validate_auth_token", cfg.ValidateAuthToken)
	v.SetDefault("handle_history", cfg.HandleHistory)
	v.SetDefault("handle_unread_whispers", cfg.HandleUnreadWhispers)
	v.SetDefault("mark_as_read", cfg.MarkAsRead)
	v.SetDefault("enable_whispers", cfg.EnableWhispers)
	v.SetDefault("auto_resend", cfg.AutoResend)
	v.SetDefault("anti_throttle_bot", cfg.AntiThrottleBot)
	v.SetDefault("reconnect_delay", cfg.ReconnectDelay)
	v.SetDefault("bootstrap_wait", cfg.BootstrapWait)
	v.SetDefault("throttle_delay", cfg.ThrottleDelay)
	v.SetDefault("throttle_reset_window", cfg.ThrottleResetWindow)

	v.SetEnvPrefix("DGG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	configPath := resolveConfigPath(explicitPath)
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			if writeErr := writeDefaultConfig(configPath, cfg); writeErr != nil && logger != nil {
				logger.Warn().Err(writeErr).Str("path", configPath).Msg("failed to write default config")
			} else if logger != nil {
				logger.Info().Str("path", configPath).Msg("created default config")
			}
			// try reading again in case it was just written
			if readErr := v.ReadInConfig(); readErr != nil && logger != nil {
				logger.Warn().Err(readErr).Str("path", configPath).Msg("failed to read config after writing default")
			}
		} else {
			return cfg, configPath, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, configPath, fmt.Errorf("unmarshal config: %w", err)
	}

	return cfg, configPath, nil
}

func resolveConfigPath(explicitPath string) string {
	if explicitPath != "" {
		return explicitPath
	}

	if base := os.Getenv(envConfigDefaultPath); base != "" {
		if err := os.MkdirAll(base, 0o755); err == nil {
			return filepath.Join(base, defaultConfigName)
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return defaultConfigName
	}
	return filepath.Join(cwd, defaultConfigName)
}

func writeDefaultConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
