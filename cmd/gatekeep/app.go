package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/jg-phare/gatekeep/pkg/chat"
	"github.com/jg-phare/gatekeep/pkg/config"
	"github.com/jg-phare/gatekeep/pkg/llm"
	"github.com/jg-phare/gatekeep/pkg/logging"
	"github.com/jg-phare/gatekeep/pkg/orchestrator"
	"github.com/jg-phare/gatekeep/pkg/permission"
	"github.com/jg-phare/gatekeep/pkg/prompt"
	"github.com/jg-phare/gatekeep/pkg/store"
	"github.com/jg-phare/gatekeep/pkg/tools"
	"github.com/jg-phare/gatekeep/pkg/transcript"
)

// app holds everything a chat-capable command needs.
type app struct {
	cfg        *config.Config
	logger     *zap.Logger
	store      *store.Store
	transcript *transcript.Log
	registry   *tools.Registry
	wallet     *tools.MemoryWallet
	client     llm.Client
	usage      *llm.UsageTracker
	checker    *permission.Checker
	manager    *chat.Manager
}

func openStore(cfg *config.Config, logger *zap.Logger) (*store.Store, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	s, err := store.Open(cfg.Store.Path, store.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	logger.Debug("store opened", zap.String("path", s.Path()))
	return s, nil
}

// newWallet seeds an in-memory wallet. Balance keys may be symbols or mints.
func newWallet(ctx context.Context, cfg config.WalletConfig, dir tools.TokenDirectory) (*tools.MemoryWallet, error) {
	balances := make(map[string]float64, len(cfg.Balances))
	for key, amount := range cfg.Balances {
		token, err := dir.Resolve(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("wallet balance %q: %w", key, err)
		}
		balances[token.Mint] += amount
	}
	return tools.NewMemoryWallet(cfg.Address, balances), nil
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (a *app, err error) {
	a = &app{cfg: cfg, logger: logger, usage: llm.NewUsageTracker()}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	if a.store, err = openStore(cfg, logger); err != nil {
		return nil, err
	}

	directory := tools.NewStaticTokenDirectory()
	if a.wallet, err = newWallet(ctx, cfg.Wallet, directory); err != nil {
		return nil, err
	}
	a.registry, err = tools.DefaultRegistry(tools.Deps{
		Directory: directory,
		Quotes:    &tools.StaticQuotes{Prices: tools.DefaultPrices},
		Wallet:    a.wallet,
		Scheduler: a.store,
	}, tools.WithDisabled(cfg.Permission.DisabledTools...))
	if err != nil {
		return nil, err
	}

	a.checker, err = permission.NewChecker(permission.CheckerConfig{
		Mode:          cfg.PermissionMode(),
		DisabledTools: cfg.Permission.DisabledTools,
		Rules:         cfg.Permission.Rules,
		Tools:         a.registry,
	})
	if err != nil {
		return nil, err
	}

	retry := llm.DefaultRetryConfig()
	retry.MaxRetries = cfg.LLM.MaxRetries
	a.client = llm.NewClient(llm.ClientConfig{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		HTTPClient:  &http.Client{Timeout: cfg.GetLLMTimeout()},
		Retry:       retry,
		Usage:       a.usage,
		Logger:      logger,
	})

	selector, err := a.newSelector(ctx)
	if err != nil {
		return nil, err
	}
	orch, err := orchestrator.New(orchestrator.Config{
		Catalog:  a.registry,
		Selector: selector,
		Timeout:  cfg.GetSelectorTimeout(),
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}

	var recorder transcript.Recorder = transcript.Nop{}
	if cfg.Transcript.Enabled {
		if a.transcript, err = transcript.Open(cfg.Transcript.Dir, logger); err != nil {
			return nil, err
		}
		recorder = a.transcript
	}

	a.manager, err = chat.NewManager(chat.Config{
		Registry:      a.registry,
		Selector:      orch,
		Client:        a.client,
		Store:         a.store,
		Permissions:   a.checker,
		Transcript:    recorder,
		Logger:        logger,
		WalletAddress: a.wallet.Address(),
		MaxSteps:      cfg.Session.MaxSteps,
		ContextLimit:  cfg.LLM.ContextLimit,
		ModelTimeout:  cfg.GetModelTimeout(),
		ToolTimeout:   cfg.GetToolTimeout(),
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (a *app) newSelector(ctx context.Context) (orchestrator.Selector, error) {
	vars := prompt.Vars{WalletAddress: a.wallet.Address()}
	switch a.cfg.Selector.Provider {
	case config.SelectorGemini:
		return orchestrator.NewGeminiSelector(ctx, orchestrator.GeminiConfig{
			APIKey:        a.cfg.Selector.APIKey,
			Model:         a.cfg.Selector.Model,
			BaseURL:       a.cfg.Selector.BaseURL,
			Vars:          vars,
			HistoryWindow: a.cfg.Selector.HistoryWindow,
		})
	default:
		return &orchestrator.LLMSelector{
			Client:        a.client,
			Model:         a.cfg.Selector.Model,
			Vars:          vars,
			HistoryWindow: a.cfg.Selector.HistoryWindow,
		}, nil
	}
}

// reload applies the parts of a new configuration that can change while
// running: permission rules and the log level. Everything else needs a
// restart.
func (a *app) reload(next *config.Config) {
	if err := a.checker.SetRules(next.Permission.Rules); err != nil {
		a.logger.Warn("permission rules not reloaded", zap.Error(err))
	} else {
		a.logger.Info("permission rules reloaded", zap.Int("rules", len(next.Permission.Rules)))
	}
	if !verbose {
		if lvl, err := logging.ParseLevel(next.Logging.Level); err == nil {
			level.SetLevel(lvl)
		}
	}
}

func (a *app) Close() error {
	var err error
	if a.transcript != nil {
		err = multierr.Append(err, a.transcript.Close())
	}
	if a.store != nil {
		err = multierr.Append(err, a.store.Close())
	}
	if total, requests := a.usage.Total(); requests > 0 {
		a.logger.Debug("token usage",
			zap.Int("requests", requests),
			zap.Int("input_tokens", total.InputTokens),
			zap.Int("output_tokens", total.OutputTokens))
		for model, u := range a.usage.ByModel() {
			a.logger.Debug("token usage by model", zap.String("model", model),
				zap.Int("input_tokens", u.InputTokens), zap.Int("output_tokens", u.OutputTokens))
		}
	}
	return err
}
