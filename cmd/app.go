package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/oauth2"

	"github.com/whenfree/whenfree/internal/calendar"
	"github.com/whenfree/whenfree/internal/config"
	"github.com/whenfree/whenfree/internal/engine"
	"github.com/whenfree/whenfree/internal/google"
	"github.com/whenfree/whenfree/internal/instrumentation"
	"github.com/whenfree/whenfree/internal/store"
)

// app bundles the wired application services the commands share.
type app struct {
	cfg     *config.Config
	store   *store.Store
	oauth   *oauth2.Config
	tokens  *google.TokenManager
	engine  *engine.Engine
	metrics *instrumentation.Metrics
	logger  *slog.Logger
	loc     *time.Location
}

// newApp loads the configuration, opens the database and wires the engine.
// Callers own the returned app and must Close it.
func newApp(cfgPath string, metrics *instrumentation.Metrics, logger *slog.Logger) (*app, error) {
	if cfgPath == "" {
		cfgPath = config.DefaultPath()
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", cfgPath, err)
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q in config: %w", cfg.Timezone, err)
	}

	st, err := store.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", cfg.DBPath, err)
	}

	if metrics == nil {
		metrics = &instrumentation.Metrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	oauthConf := google.NewOAuthConfig(cfg.Google)
	tokens := google.NewTokenManager(oauthConf, st, metrics, logger)

	factory := func(ctx context.Context, accessToken string) (engine.Gateway, error) {
		return calendar.NewClient(ctx, google.HTTPClient(ctx, accessToken), metrics)
	}

	eng := engine.New(st, tokens, factory, engine.Options{
		DefaultLocation: loc,
		FanOut:          cfg.FanOut,
		Logger:          logger,
		Metrics:         metrics,
	})

	return &app{
		cfg:     cfg,
		store:   st,
		oauth:   oauthConf,
		tokens:  tokens,
		engine:  eng,
		metrics: metrics,
		logger:  logger,
		loc:     loc,
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

// requireOAuthCredentials fails early when the config is missing the Google
// OAuth client, which link and serve both need.
func (a *app) requireOAuthCredentials() error {
	if a.cfg.Google.ClientID == "" || a.cfg.Google.ClientSecret == "" {
		return fmt.Errorf("google.client_id and google.client_secret must be set in the config file")
	}
	return nil
}
