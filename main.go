package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/5741327-hash/tesseractx-bot/bot"
	"github.com/5741327-hash/tesseractx-bot/config"
	"github.com/5741327-hash/tesseractx-bot/draft"
	"github.com/5741327-hash/tesseractx-bot/fetcher"
	"github.com/5741327-hash/tesseractx-bot/generator"
	"github.com/5741327-hash/tesseractx-bot/metrics"
	"github.com/5741327-hash/tesseractx-bot/pipeline"
	"github.com/5741327-hash/tesseractx-bot/publisher"
	"github.com/5741327-hash/tesseractx-bot/server"
	"github.com/5741327-hash/tesseractx-bot/telegram"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath string
		addr       string
		verbose    bool
		noRegister bool
	)
	flagSet := pflag.NewFlagSet("tesseractx-bot", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "config/config.jsonc", "path to the JSONC config file")
	flagSet.StringVar(&addr, "addr", "", "http listen address (overrides server_addr and PORT)")
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "debug logs in console format")
	flagSet.BoolVar(&noRegister, "no-webhook-register", false, "do not call setWebhook on start")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.ServerAddr = addr
	}
	logger := newLogger(cfg.Log, verbose)

	llm, images, err := buildLLM(cfg, logger)
	if err != nil {
		return err
	}

	tg, err := telegram.New(cfg.Telegram.Token, "", nil)
	if err != nil {
		return err
	}

	fetch := fetcher.New(fetcher.Options{
		UserAgents:       cfg.Fetch.UserAgents,
		Referer:          cfg.Fetch.Referer,
		AcceptLanguage:   cfg.Fetch.AcceptLanguage,
		ArticleTimeout:   cfg.Fetch.ArticleTimeout.Std(),
		ImageTimeout:     cfg.Fetch.ImageTimeout.Std(),
		MaxResponseBytes: cfg.Fetch.MaxResponseBytes,
	}, logger)

	rewriter, err := generator.NewRewriter(llm, generator.PromptOptions{
		ChannelName:   cfg.Post.ChannelName,
		Language:      cfg.Post.Language,
		CaptionBudget: cfg.Post.CaptionBudget,
	}, logger)
	if err != nil {
		return err
	}

	store := draft.NewStore()
	resolver := pipeline.NewImageResolver(fetch, images, logger)
	pipe, err := pipeline.New(fetch, rewriter, resolver, store, pipeline.Options{MinManualLength: cfg.Post.MinManualLength}, logger)
	if err != nil {
		return err
	}
	pub, err := publisher.New(tg, store, cfg.Telegram.ChannelID, cfg.Post.PublishDelay.Std(), logger)
	if err != nil {
		return err
	}
	b, err := bot.New(tg, pipe, pub, store, bot.Options{
		OperatorID:      cfg.Telegram.OperatorID,
		ChannelName:     cfg.Post.ChannelName,
		MinManualLength: cfg.Post.MinManualLength,
		ShortTextReply:  *cfg.Post.ShortTextReply,
	}, logger)
	if err != nil {
		return err
	}
	srv, err := server.New(b, cfg.Telegram.WebhookSecret, 0, logger)
	if err != nil {
		return err
	}
	metrics.Init(cfg.Post.ChannelName, cfg.LLM.Provider)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go srv.Work(ctx)

	if !noRegister && cfg.Telegram.WebhookURL != "" {
		hook := strings.TrimRight(cfg.Telegram.WebhookURL, "/") + server.WebhookPath
		rctx, cancel := context.WithTimeout(ctx, 15*time.Second)
		err := tg.SetWebhook(rctx, hook, cfg.Telegram.WebhookSecret)
		cancel()
		if err != nil {
			return fmt.Errorf("registering webhook: %w", err)
		}
		logger.Info().Str("url", hook).Msg("[cli] webhook registered")
	}

	if !verbose {
		gin.SetMode(gin.ReleaseMode)
	}
	httpServer := &http.Server{Addr: cfg.ServerAddr, Handler: srv.Routes()}
	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.ServerAddr).Str("provider", cfg.LLM.Provider).Msg("[cli] starting webhook server")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info().Msg("[cli] shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func newLogger(cfg config.LogConfig, verbose bool) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	if verbose {
		level = zerolog.DebugLevel
	}
	var logger zerolog.Logger
	if cfg.Pretty || verbose {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.DateTime})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(level).With().Timestamp().Logger()
}

// buildLLM picks the text and image model clients for the configured provider.
func buildLLM(cfg config.Config, logger zerolog.Logger) (generator.LLMClient, generator.ImageGenerator, error) {
	if cfg.LLM == nil || cfg.LLM.Provider == "" {
		return nil, nil, fmt.Errorf("llm config missing; please set llm.provider/model/api_key in config")
	}
	settings := &generator.LLMSettings{
		Provider:   cfg.LLM.Provider,
		Model:      cfg.LLM.Model,
		ImageModel: cfg.LLM.ImageModel,
		APIKey:     cfg.LLM.APIKey,
		BaseURL:    cfg.LLM.BaseURL,
	}
	switch cfg.LLM.Provider {
	case "openai":
		llm, err := generator.NewOpenAILLMFromConfig(settings)
		if err != nil {
			return nil, nil, err
		}
		images, err := generator.NewOpenAIImagesFromConfig(settings)
		if err != nil {
			return nil, nil, err
		}
		return llm, images, nil
	case "deepseek":
		// OpenAI-compatible chat endpoint only; images fall back to the placeholder.
		if cfg.LLM.BaseURL == "" {
			return nil, nil, fmt.Errorf("llm provider deepseek requires base_url (OpenAI-compatible endpoint)")
		}
		llm, err := generator.NewOpenAILLMFromConfig(settings)
		if err != nil {
			return nil, nil, err
		}
		logger.Warn().Msg("[cli] deepseek has no image model; drafts without a lead image get the placeholder")
		return llm, nil, nil
	case "mock":
		return generator.MockLLM{}, generator.MockImages{}, nil
	default:
		return nil, nil, fmt.Errorf("llm provider %s not supported", cfg.LLM.Provider)
	}
}
