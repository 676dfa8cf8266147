package main

import (
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"

	"github.com/sugun00/Meta-martin/api/internal/config"
	"github.com/sugun00/Meta-martin/api/internal/handle"
	"github.com/sugun00/Meta-martin/api/internal/httpserver"
	"github.com/sugun00/Meta-martin/api/internal/telegram"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server (and the Telegram bot when a token is set)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig(ctx)
			if err != nil {
				return err
			}
			log := ctx.logger(os.Stdout)

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(runCtx, cfg, log, appOptions{journal: true, metrics: true})
			if err != nil {
				return err
			}
			defer a.Close()

			if a.svc.CredentialConfigured() {
				log.Info().Str("provider", a.svc.EngineName()).Msg("model credential configured")
			} else {
				log.Warn().Msg("no model API key configured, running in demo mode")
			}

			var wg sync.WaitGroup
			if token := strings.TrimSpace(cfg.TelegramBotToken); token != "" {
				bot, err := tgbotapi.NewBotAPI(token)
				if err != nil {
					return err
				}
				router := &telegram.Router{Bot: bot, Relay: a.svc, Log: log.With().Str("component", "telegram").Logger()}
				log.Info().Str("bot", bot.Self.UserName).Msg("telegram polling started")
				wg.Add(1)
				go func() {
					defer wg.Done()
					telegram.RunPolling(runCtx, bot, log, func(u tgbotapi.Update) { router.HandleUpdate(runCtx, u) })
					router.Wait()
				}()
			}

			h := handle.New(a.svc, handle.Info{Service: config.ServiceName, Version: config.Version}, log)
			srv := httpserver.New(httpserver.NewRouter(h, a.metrics.Handler(), log), httpserver.Options{
				Addr:            cfg.Addr(),
				ReadTimeout:     cfg.ReadTimeout,
				WriteTimeout:    cfg.WriteTimeout,
				IdleTimeout:     cfg.IdleTimeout,
				ShutdownTimeout: cfg.ShutdownTimeout,
			}, log)

			err = srv.Run(runCtx)
			stop()
			wg.Wait()
			return err
		},
	}
}
