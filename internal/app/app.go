package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/dggchat/internal/api"
	"github.com/vovakirdan/dggchat/internal/chat"
	"github.com/vovakirdan/dggchat/internal/config"
)

// App wires the REST client and the chat engine together.
type App struct {
	Chat *chat.Chat
	API  *api.Client

	log *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg config.Config, logger *zerolog.Logger) (*App, error) {
	apiClient := api.NewClient(cfg.APIURL, cfg.AuthToken, cfg.SessionID, logger)

	engine, err := chat.New(chat.Options{
		URL:                  cfg.ChatURL,
		AuthToken:            cfg.AuthToken,
		SessionID:            cfg.SessionID,
		ValidateAuthToken:    cfg.ValidateAuthToken,
		HandleHistory:        cfg.HandleHistory,
		HandleUnreadWhispers: cfg.HandleUnreadWhispers,
		MarkAsRead:           cfg.MarkAsRead,
		EnableWhispers:       cfg.EnableWhispers,
		ReconnectDelay:       cfg.ReconnectDelay,
		BootstrapWait:        cfg.BootstrapWait,
		Throttle: chat.ThrottleConfig{
			BaseDelay:       cfg.ThrottleDelay,
			ResetWindow:     cfg.ThrottleResetWindow,
			BaseFactor:      chat.DefaultBaseFactor,
			MaxFactor:       chat.DefaultMaxFactor,
			AutoResend:      cfg.AutoResend,
			AntiThrottleBot: cfg.AntiThrottleBot,
		},
	}, apiClient, logger)
	if err != nil {
		return nil, fmt.Errorf("init chat engine: %w", err)
	}

	return &App{
		Chat: engine,
		API:  apiClient,
		log:  logger,
	}, nil
}

// Run connects to chat and blocks until ctx cancellation or a fatal
// bootstrap error.
func (a *App) Run(ctx context.Context) error {
	a.log.Info().Msg("starting chat client")
	return a.Chat.RunForever(ctx)
}
