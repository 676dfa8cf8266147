package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/sugun00/Meta-martin/api/internal/config"
	"github.com/sugun00/Meta-martin/api/internal/imageconv"
	"github.com/sugun00/Meta-martin/api/internal/logging"
	"github.com/sugun00/Meta-martin/api/internal/metrics"
	"github.com/sugun00/Meta-martin/api/internal/ocr"
	"github.com/sugun00/Meta-martin/api/internal/ocr/gemini"
	"github.com/sugun00/Meta-martin/api/internal/ocr/openai"
	"github.com/sugun00/Meta-martin/api/internal/relay"
	"github.com/sugun00/Meta-martin/api/internal/store"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		c.config, c.configErr = config.Load(path)
	})
	return c.config, c.configErr
}

func (c *commandContext) logger(w io.Writer) zerolog.Logger {
	cfg, err := c.ensureConfig()
	if err != nil {
		return logging.NewWithWriter(w, "info", "json")
	}
	return logging.NewWithWriter(w, cfg.LogLevel, cfg.LogFormat)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

// app is the assembled relay plus the resources it owns.
type app struct {
	svc     *relay.Service
	metrics *metrics.Relay
	journal *store.Journal
	closers []func() error
}

type appOptions struct {
	journal bool
	metrics bool
}

func buildApp(ctx context.Context, cfg *config.Config, log zerolog.Logger, opts appOptions) (*app, error) {
	a := &app{}

	engine, err := a.buildEngine(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	if opts.metrics {
		a.metrics = metrics.NewRelay()
	}
	if opts.journal && cfg.DatabaseURL != "" {
		if err := a.openJournal(ctx, cfg.DatabaseURL); err != nil {
			// The journal is an audit trail only; run without it.
			log.Warn().Err(err).Str("db", config.SafeDSNSummary(cfg.DatabaseURL)).Msg("journal disabled")
		} else {
			log.Info().Str("db", config.SafeDSNSummary(cfg.DatabaseURL)).Msg("journal connected")
		}
	}

	relayOpts := relay.Options{
		Engine:         engine,
		Converter:      imageconv.New(cfg.MaxImageDimension, cfg.HEICEnabled),
		MaxUploadBytes: cfg.MaxUploadBytes,
		UploadDir:      cfg.UploadDir,
		Metrics:        a.metrics,
		Logger:         log,
	}
	if a.journal != nil {
		relayOpts.Journal = a.journal
	}
	a.svc = relay.New(relayOpts)
	return a, nil
}

// buildEngine returns nil when the selected provider has no credential.
func (a *app) buildEngine(ctx context.Context, cfg *config.Config) (ocr.Engine, error) {
	engines := &ocr.Engines{}
	if cfg.OpenAIConfigured() {
		engines.OpenAI = openai.New(cfg.OpenAIAPIKey, cfg.OpenAIModel).
			WithBaseURL(cfg.OpenAIBaseURL).
			WithMaxTokens(cfg.OpenAIMaxTokens)
	}
	if cfg.GeminiConfigured() && cfg.LLMProvider == "gemini" {
		g, err := gemini.New(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, g.Close)
		engines.Gemini = g
	}
	return engines.GetEngine(cfg.LLMProvider)
}

func (a *app) openJournal(ctx context.Context, dsn string) error {
	db, err := store.Open(ctx, dsn)
	if err != nil {
		return err
	}
	j := store.NewJournal(db)
	if err := j.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return err
	}
	a.journal = j
	a.closers = append(a.closers, db.Close)
	return nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
	a.closers = nil
}

func requireConfig(c *commandContext) (*config.Config, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
