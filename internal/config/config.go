package config

import "time"

// Config holds client configuration values. Feature toggles that the
// engine consults are explicit fields here, not ambient env lookups.
type Config struct {
	ChatURL   string `mapstructure:"chat_url" yaml:"chat_url"`
	APIURL    string `mapstructure:"api_url" yaml:"api_url"`
	AuthToken string `mapstructure:"auth_token" yaml:"auth_token"`
	SessionID string `mapstructure:"session_id" yaml:"session_id"`
	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`

	ValidateAuthToken    bool `mapstructure:"validate_auth_token" yaml:"validate_auth_token"`
	HandleHistory        bool `mapstructure:"handle_history" yaml:"handle_history"`
	HandleUnreadWhispers bool `mapstructure:"handle_unread_whispers" yaml:"handle_unread_whispers"`
	MarkAsRead           bool `mapstructure:"mark_as_read" yaml:"mark_as_read"`
	EnableWhispers       bool `mapstructure:"enable_whispers" yaml:"enable_whispers"`
	AutoResend           bool `mapstructure:"auto_resend" yaml:"auto_resend"`

	AntiThrottleBot string `mapstructure:"anti_throttle_bot" yaml:"anti_throttle_bot"`

	ReconnectDelay      time.Duration `mapstructure:"reconnect_delay" yaml:"reconnect_delay"`
	BootstrapWait       time.Duration `mapstructure:"bootstrap_wait" yaml:"bootstrap_wait"`
	ThrottleDelay       time.Duration `mapstructure:"throttle_delay" yaml:"throttle_delay"`
	ThrottleResetWindow time.Duration `mapstructure:"throttle_reset_window" yaml:"throttle_reset_window"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		ChatURL:             "wss://destiny.gg/ws",
		APIURL:              "https://www.destiny.gg/api",
		LogLevel:            "info",
		ValidateAuthToken:   true,
		ReconnectDelay:      3 * time.Second,
		BootstrapWait:       time.Second,
		ThrottleDelay:       200 * time.Millisecond,
		ThrottleResetWindow: 600 * time.Second,
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.ChatURL != "" {
		c.ChatURL = other.ChatURL
	}
	if other.APIURL != "" {
		c.APIURL = other.APIURL
	}
	if other.AuthToken != "" {
		c.AuthToken = other.AuthToken
	}
	if other.SessionID != "" {
		c.SessionID = other.SessionID
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.AntiThrottleBot != "" {
		c.AntiThrottleBot = other.AntiThrottleBot
	}
	if other.ReconnectDelay != 0 {
		c.ReconnectDelay = other.ReconnectDelay
	}
	if other.BootstrapWait != 0 {
		c.BootstrapWait = other.BootstrapWait
	}
	if other.ThrottleDelay != 0 {
		c.ThrottleDelay = other.ThrottleDelay
	}
	if other.ThrottleResetWindow != 0 {
		c.ThrottleResetWindow = other.ThrottleResetWindow
	}
}
