package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/dggchat/internal/app"
	"github.com/vovakirdan/dggchat/internal/config"
	"github.com/vovakirdan/dggchat/internal/log"
	"github.com/vovakirdan/dggchat/internal/proto"
)

type cli struct {
	configPath string
	overrides  config.Config

	cfg    config.Config
	logger *zerolog.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:           "dggchat",
		Short:         "destiny.gg chat client",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			bootstrapLogger := log.New("info")
			cfg, path, err := config.Load(bootstrapLogger, c.configPath)
			if err != nil {
				return fmt.Errorf("load config %s: %w", path, err)
			}
			cfg.UpdateFrom(c.overrides)
			c.cfg = cfg
			c.logger = log.New(cfg.LogLevel)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&c.configPath, "config", "", "path to config file")
	root.PersistentFlags().StringVar(&c.overrides.ChatURL, "chat-url", "", "chat websocket URL")
	root.PersistentFlags().StringVar(&c.overrides.APIURL, "api-url", "", "backend API URL")
	root.PersistentFlags().StringVar(&c.overrides.AuthToken, "auth-token", "", "account auth token")
	root.PersistentFlags().StringVar(&c.overrides.SessionID, "session-id", "", "browser session id")
	root.PersistentFlags().StringVar(&c.overrides.LogLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(newRunCmd(c))
	root.AddCommand(newHistoryCmd(c))
	root.AddCommand(newWhispersCmd(c))
	root.AddCommand(newStreamCmd(c))
	return root
}

// newRunCmd connects to chat and prints events until interrupted.
func newRunCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "connect to chat and print events",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			application, err := app.New(c.cfg, c.logger)
			if err != nil {
				return err
			}

			engine := application.Chat
			engine.On(proto.KindChatMessage, func(e *proto.Event) error {
				fmt.Printf("%s: %s\n", e.Sender(), e.Content)
				return nil
			})
			engine.On(proto.KindBroadcast, func(e *proto.Event) error {
				fmt.Printf("*** %s\n", e.Content)
				return nil
			})
			engine.On(proto.KindWhisper, func(e *proto.Event) error {
				fmt.Printf("[whisper] %s: %s\n", e.Sender(), e.Content)
				return nil
			})
			engine.On(proto.KindMention, func(e *proto.Event) error {
				fmt.Printf("[mention] %s: %s\n", e.Sender(), e.Content)
				return nil
			})
			engine.On(proto.KindServedConnections, func(e *proto.Event) error {
				fmt.Printf("connected, %d connections served\n", e.Count)
				return nil
			})
			engine.OnFallback(proto.KindErrorMessage, func(e *proto.Event) error {
				c.logger.Error().Str("payload", e.Content).Msg("server error")
				return nil
			})
			engine.On(proto.KindHandlerError, func(e *proto.Event) error {
				for _, err := range e.HandlerErrs {
					c.logger.Error().Err(err).Msg("handler failed")
				}
				return nil
			})

			return application.Run(ctx)
		},
	}
}

// newHistoryCmd prints recent chat history frames.
func newHistoryCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "print recent chat history",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := app.New(c.cfg, c.logger)
			if err != nil {
				return err
			}
			frames, err := application.API.ChatHistory(cmd.Context())
			if err != nil {
				return err
			}
			for _, frame := range frames {
				ev, err := proto.ParseFrame(frame)
				if err != nil || ev.Kind != proto.KindChatMessage {
					continue
				}
				fmt.Printf("%s: %s\n", ev.Sender(), ev.Content)
			}
			return nil
		},
	}
}

// newWhispersCmd prints unread whispers per user.
func newWhispersCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "whispers",
		Short: "print unread whispers (requires session id)",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := app.New(c.cfg, c.logger)
			if err != nil {
				return err
			}
			unread, err := application.Chat.GetUnreadWhispers(cmd.Context())
			if err != nil {
				return err
			}
			if len(unread) == 0 {
				fmt.Println("no unread whispers")
				return nil
			}
			for user, whispers := range unread {
				for _, w := range whispers {
					fmt.Printf("%s: %s\n", user, w.Content)
				}
			}
			return nil
		},
	}
}

// newStreamCmd prints info about the current or last stream.
func newStreamCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "stream",
		Short: "print stream info",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := app.New(c.cfg, c.logger)
			if err != nil {
				return err
			}
			info, err := application.API.StreamInfo(cmd.Context())
			if err != nil {
				return err
			}
			if info.Live {
				fmt.Printf("live: %s (%d viewers)\n", info.Game, info.Viewers)
			} else {
				fmt.Printf("offline, last stream: %s\n", info.Game)
			}
			return nil
		},
	}
}
