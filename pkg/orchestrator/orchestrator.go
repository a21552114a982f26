// Package orchestrator narrows the tool catalog to the names the model may
// call on a given turn.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jg-phare/gatekeep/pkg/prompt"
	"github.com/jg-phare/gatekeep/pkg/tools"
	"github.com/jg-phare/gatekeep/pkg/types"
)

// Catalog is the subset of tools.Registry the orchestrator reads.
type Catalog interface {
	Names() []string
	Get(name string) (tools.Tool, error)
}

// Config configures an Orchestrator.
type Config struct {
	Catalog          Catalog
	Selector         Selector
	Baseline         string        // always offered; default tools.BaselineTool
	ConfirmationTool string        // removed under suppressConfirmation; default tools.ConfirmationTool
	Timeout          time.Duration // per Select call; zero means the caller's deadline only
	Logger           *zap.Logger
}

// Orchestrator selects the permitted tool names for a turn.
type Orchestrator struct {
	catalog      Catalog
	selector     Selector
	baseline     string
	confirmation string
	timeout      time.Duration
	logger       *zap.Logger
}

// New validates cfg and returns an Orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Catalog == nil {
		return nil, errors.New("orchestrator: catalog is required")
	}
	if cfg.Selector == nil {
		return nil, errors.New("orchestrator: selector is required")
	}
	if cfg.Baseline == "" {
		cfg.Baseline = tools.BaselineTool
	}
	if cfg.ConfirmationTool == "" {
		cfg.ConfirmationTool = tools.ConfirmationTool
	}
	if _, err := cfg.Catalog.Get(cfg.Baseline); err != nil {
		return nil, fmt.Errorf("orchestrator: baseline tool: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		catalog:      cfg.Catalog,
		selector:     cfg.Selector,
		baseline:     cfg.Baseline,
		confirmation: cfg.ConfirmationTool,
		timeout:      cfg.Timeout,
		logger:       logger.Named("orchestrator"),
	}, nil
}

// Select returns the tool names the model may call for the latest user
// message in history.
//
// A nil result means no tools are needed and the model should answer
// directly. Otherwise the baseline tool comes first, followed by the
// inferred names in inference order without duplicates. With
// suppressConfirmation set the confirmation tool is never returned.
func (o *Orchestrator) Select(ctx context.Context, history []types.Message, suppressConfirmation bool) ([]string, error) {
	if _, ok := types.LastUserMessage(history); !ok {
		return nil, ErrEmptyHistory
	}

	names := o.catalog.Names()
	req := SelectionRequest{History: history, Tools: make([]prompt.ToolSummary, 0, len(names))}
	known := make(map[string]bool, len(names))
	for _, name := range names {
		t, err := o.catalog.Get(name)
		if err != nil {
			continue
		}
		known[name] = true
		req.Tools = append(req.Tools, prompt.ToolSummary{
			Name:                 name,
			Description:          t.Description(),
			RequiresConfirmation: t.RequiresConfirmation(),
		})
	}

	callCtx := ctx
	if o.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	start := time.Now()
	inferred, err := o.selector.SelectTools(callCtx, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			err = &types.TimeoutError{Op: "orchestrator", After: o.timeout}
		}
		o.logger.Warn("tool selection failed", zap.Error(err))
		return nil, &OrchestrationError{Cause: err}
	}

	var valid []string
	for _, name := range inferred {
		if !known[name] {
			o.logger.Warn("selector returned unknown tool", zap.String("tool", name))
			continue
		}
		valid = append(valid, name)
	}
	if len(valid) == 0 {
		o.logger.Debug("no tools selected", zap.Duration("elapsed", time.Since(start)))
		return nil, nil
	}

	result := make([]string, 0, len(valid)+1)
	seen := make(map[string]bool, len(valid)+1)
	add := func(name string) {
		if seen[name] || (suppressConfirmation && name == o.confirmation) {
			return
		}
		seen[name] = true
		result = append(result, name)
	}
	add(o.baseline)
	for _, name := range valid {
		add(name)
	}

	o.logger.Debug("tools selected",
		zap.Strings("tools", result),
		zap.Bool("suppress_confirmation", suppressConfirmation),
		zap.Duration("elapsed", time.Since(start)))
	return result, nil
}
