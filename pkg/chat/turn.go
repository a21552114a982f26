package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jg-phare/gatekeep/pkg/gate"
	"github.com/jg-phare/gatekeep/pkg/llm"
	"github.com/jg-phare/gatekeep/pkg/permission"
	"github.com/jg-phare/gatekeep/pkg/prompt"
	"github.com/jg-phare/gatekeep/pkg/store"
	"github.com/jg-phare/gatekeep/pkg/tools"
	"github.com/jg-phare/gatekeep/pkg/transcript"
	"github.com/jg-phare/gatekeep/pkg/types"
	"github.com/jg-phare/gatekeep/pkg/window"
)

// TurnResult is what one turn added and where the gate stands afterwards.
type TurnResult struct {
	Messages     []types.Message // appended this turn, in order
	Reply        string          // text to show the user
	ToolsOffered []string        // nil when the model answered without tools
	State        types.ConfirmationState
	Pending      *types.Confirmation    // open request after the turn
	Executed     []types.ToolInvocation // calls whose handlers ran, with results
	Steps        int                    // model calls
	Usage        llm.TokenUsage
}

// turn is the working state of one RunTurn. Everything it appends lives in
// s.history[start:] until persist succeeds.
type turn struct {
	s        *Session
	start    int
	userTurn int
	text     string

	ids     map[string]bool // tool call ids already in history
	offered []string
	late    []store.AttachedResult // results for invocations from earlier turns
	opened  *types.Confirmation
	done    string // confirmation to mark executed after persist
	steps   int
	usage   llm.TokenUsage

	mu       sync.Mutex
	executed []types.ToolInvocation
}

func (s *Session) runTurn(ctx context.Context) (*TurnResult, error) {
	n := len(s.history)
	if n == 0 || s.history[n-1].Role != types.RoleUser {
		return nil, ErrNoUserMessage
	}
	s.reloadDegen(ctx)
	snapshot := cloneHistory(s.history)
	t := &turn{
		s:        s,
		start:    n,
		userTurn: types.CountUserMessages(s.history),
		text:     s.history[n-1].Content,
	}

	reply, err := t.run(ctx)
	if err == nil {
		err = t.persist(ctx)
	}
	if err != nil {
		s.history = snapshot
		t.abandon(ctx, err)
		return nil, err
	}

	state := types.ConfirmationIdle
	if t.done != "" {
		if err := s.cfg.Gate.MarkExecuted(ctx, s.conv.ID, t.done); err != nil {
			s.logger.Error("confirmation not marked executed", zap.String("tool_call_id", t.done), zap.Error(err))
		} else {
			state = types.ConfirmationExecuted
		}
	}
	return t.result(ctx, reply, state), nil
}

// reloadDegen picks up a toggle made from another session of the same user.
// An unreadable preference disables the bypass for this turn.
func (s *Session) reloadDegen(ctx context.Context) {
	prefs, err := s.cfg.Store.GetPreferences(ctx, s.conv.UserID)
	if err != nil {
		s.logger.Warn("read preferences", zap.Error(err))
		s.degen = false
		return
	}
	if prefs.DegenMode != s.degen {
		s.logger.Info("degen mode reloaded", zap.Bool("enabled", prefs.DegenMode))
		s.degen = prefs.DegenMode
	}
}

func (t *turn) run(ctx context.Context) (string, error) {
	s := t.s
	pending, ok, err := s.cfg.Gate.Pending(ctx, s.conv.ID)
	if err != nil {
		return "", err
	}

	summarize := false
	if ok {
		switch pending.State {
		case types.ConfirmationAwaiting:
			res, err := s.cfg.Gate.Resolve(ctx, s.conv.ID, t.text, t.userTurn)
			if err != nil {
				return "", err
			}
			s.record(transcript.Event{
				Type:       transcript.EventConfirmationResolved,
				ToolCallID: pending.ToolCallID,
				Tool:       pending.Tool,
				Text:       res.Verdict.String(),
				State:      string(res.Action.State),
			})
			switch res.Verdict {
			case gate.Assent:
				if err := t.runConfirmed(ctx, res.Action); err != nil {
					return "", err
				}
				summarize = true
			case gate.Refusal:
				t.attach(pending.ToolCallID, types.DataResult(map[string]any{
					"status": "rejected",
					"tool":   pending.Tool,
				}))
			default:
				reply := prompt.GetReminder(prompt.ReminderReprompt, map[string]string{"MESSAGE": describe(pending)})
				t.appendAssistant(reply, nil)
				return reply, nil
			}
		case types.ConfirmationConfirmed:
			// A previous turn got the assent but failed before finishing.
			if err := t.runConfirmed(ctx, pending); err != nil {
				return "", err
			}
			summarize = true
		}
	}
	return t.converse(ctx, summarize)
}

// runConfirmed executes a confirmed action under a call id derived from the
// confirmation, so a retried turn replays the recorded result.
func (t *turn) runConfirmed(ctx context.Context, conf types.Confirmation) error {
	s := t.s
	if _, err := s.cfg.Gate.Authorize(ctx, s.conv.ID, conf.ToolCallID); err != nil {
		return err
	}
	// Rules and mode may have changed while the request was awaiting.
	d, err := s.checker().Check(ctx, conf.Tool, conf.Args)
	if err != nil {
		return err
	}
	if d.Behavior == permission.BehaviorDeny {
		if err := s.cfg.Gate.Revoke(ctx, s.conv.ID, conf.ToolCallID); err != nil {
			return err
		}
		t.attach(conf.ToolCallID, types.ErrorResult(denied(d)))
		s.record(transcript.Event{
			Type:       transcript.EventConfirmationResolved,
			ToolCallID: conf.ToolCallID,
			Tool:       conf.Tool,
			Text:       "denied",
			State:      string(types.ConfirmationRejected),
		})
		return nil
	}
	inv := types.NewCall(conf.ToolCallID+"_exec", conf.Tool, conf.Args)
	t.appendAssistant("", []types.ToolInvocation{inv})

	result, err := t.execute(ctx, inv, true)
	if err != nil {
		return err
	}
	t.attach(inv.ToolCallID, result)
	t.attach(conf.ToolCallID, types.DataResult(map[string]any{
		"status":      "confirmed",
		"executionId": inv.ToolCallID,
	}))
	t.done = conf.ToolCallID
	return nil
}

// converse runs the model loop. With summarize set no tools are offered and
// the model only reports on what already ran.
func (t *turn) converse(ctx context.Context, summarize bool) (string, error) {
	s := t.s
	if !summarize {
		offered, err := s.cfg.Selector.Select(ctx, s.history, s.degen)
		if err != nil {
			return "", err
		}
		t.offered = offered
	}
	allowed := make(map[string]bool, len(t.offered))
	for _, name := range t.offered {
		allowed[name] = true
	}

	system := prompt.AgentPrompt(prompt.AgentOptions{
		Vars:         t.vars(),
		Degen:        s.degen,
		ToolsOffered: t.offered,
	})
	defs := s.cfg.Registry.LLMTools(t.offered)

	var text string
	for t.steps < s.cfg.MaxSteps {
		resp, err := t.complete(ctx, system, defs)
		if err != nil {
			return "", err
		}
		text = resp.Text
		if text == "" {
			text = resp.Refusal
		}
		if len(resp.ToolUses) == 0 {
			t.appendAssistant(text, nil)
			s.record(transcript.Event{Type: transcript.EventAssistantMessage, Text: text})
			return text, nil
		}

		for _, use := range resp.ToolUses {
			if !s.cfg.Registry.Has(use.Name) {
				return "", &tools.UnknownToolError{Name: use.Name}
			}
		}
		calls := t.calls(resp.ToolUses)
		t.appendAssistant(text, calls)
		if err := t.dispatch(ctx, calls, resp.ToolUses, allowed); err != nil {
			return "", err
		}

		if t.opened != nil {
			if text == "" {
				text = prompt.GetReminder(prompt.ReminderAwaitingConfirmation, map[string]string{"MESSAGE": describe(*t.opened)})
				t.appendAssistant(text, nil)
			}
			s.record(transcript.Event{Type: transcript.EventAssistantMessage, Text: text})
			return text, nil
		}
	}

	s.logger.Warn("turn hit the step limit", zap.Int("steps", t.steps))
	return text, nil
}

func (t *turn) complete(ctx context.Context, system string, defs []llm.Tool) (*llm.CompletionResponse, error) {
	s := t.s
	req := llm.BuildCompletionRequest(
		llm.ClientConfig{Model: s.modelLocked()},
		system,
		window.Fit(toChatMessages(s.history), window.Budget(s.contextLimit()), nil),
		defs,
		llm.RequestOptions{User: s.conv.UserID},
	)

	mctx, cancel := ctx, context.CancelFunc(func() {})
	if s.cfg.ModelTimeout > 0 {
		mctx, cancel = context.WithTimeout(ctx, s.cfg.ModelTimeout)
	}
	defer cancel()

	t.steps++
	stream, err := s.cfg.Client.Complete(mctx, req)
	if err == nil {
		var resp *llm.CompletionResponse
		if resp, err = stream.Accumulate(); err == nil {
			t.usage.InputTokens += resp.Usage.InputTokens
			t.usage.OutputTokens += resp.Usage.OutputTokens
			return resp, nil
		}
	}
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return nil, &types.TimeoutError{Op: "model", After: s.cfg.ModelTimeout}
	}
	return nil, fmt.Errorf("chat: model call: %w", err)
}

// calls turns the model's tool uses into invocations, replacing ids that
// are missing or already used in this conversation.
func (t *turn) calls(uses []llm.ToolUse) []types.ToolInvocation {
	if t.ids == nil {
		t.ids = make(map[string]bool)
		for _, m := range t.s.history {
			for _, inv := range m.ToolInvocations {
				t.ids[inv.ToolCallID] = true
			}
		}
	}
	out := make([]types.ToolInvocation, len(uses))
	for i, use := range uses {
		id := use.ID
		if id == "" || t.ids[id] {
			id = types.NewToolCallID()
		}
		t.ids[id] = true
		out[i] = types.NewCall(id, use.Name, use.Input)
	}
	return out
}

// dispatch handles one response's tool calls. Lookup tools run concurrently
// after the confirmation and sensitive calls have been routed.
func (t *turn) dispatch(ctx context.Context, calls []types.ToolInvocation, uses []llm.ToolUse, allowed map[string]bool) error {
	s := t.s
	var batch []types.ToolInvocation
	for i, inv := range calls {
		if uses[i].Raw != "" {
			t.attach(inv.ToolCallID, types.ErrorResult("arguments are not valid JSON"))
			continue
		}
		if !allowed[inv.ToolName] {
			t.attach(inv.ToolCallID, types.ErrorResult(fmt.Sprintf("%s is not available for this request", inv.ToolName)))
			continue
		}
		if err := s.cfg.Registry.Validate(inv.ToolName, inv.Args); err != nil {
			t.attach(inv.ToolCallID, types.ErrorResult(err.Error()))
			continue
		}
		tool, err := s.cfg.Registry.Get(inv.ToolName)
		if err != nil {
			return err
		}

		if inv.ToolName == tools.ConfirmationTool {
			if err := t.requestConfirmation(ctx, inv); err != nil {
				return err
			}
			continue
		}

		d, err := s.checker().Check(ctx, inv.ToolName, inv.Args)
		if err != nil {
			return err
		}
		switch d.Behavior {
		case permission.BehaviorDeny:
			t.attach(inv.ToolCallID, types.ErrorResult(denied(d)))
		case permission.BehaviorAsk:
			if err := t.open(ctx, inv, inv.ToolName, inv.Args, ""); err != nil {
				return err
			}
		default:
			if !tool.RequiresConfirmation() {
				batch = append(batch, inv)
				continue
			}
			result, err := t.execute(ctx, inv, false)
			if err != nil {
				return err
			}
			t.attach(inv.ToolCallID, result)
		}
	}
	return t.runBatch(ctx, batch)
}

func (t *turn) runBatch(ctx context.Context, batch []types.ToolInvocation) error {
	if len(batch) == 0 {
		return nil
	}
	results := make([]types.ToolResult, len(batch))
	g, gctx := errgroup.WithContext(ctx)
	for i, inv := range batch {
		g.Go(func() error {
			r, err := t.execute(gctx, inv, false)
			results[i] = r
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for i, inv := range batch {
		t.attach(inv.ToolCallID, results[i])
	}
	return nil
}

// requestConfirmation handles an askForConfirmation call. Problems with its
// arguments become an error result the model can correct.
func (t *turn) requestConfirmation(ctx context.Context, inv types.ToolInvocation) error {
	s := t.s
	req, err := tools.ParseConfirmationRequest(inv.Args)
	if err != nil {
		t.attach(inv.ToolCallID, types.ErrorResult(err.Error()))
		return nil
	}
	target, err := s.cfg.Registry.Get(req.Tool)
	if err != nil {
		t.attach(inv.ToolCallID, types.ErrorResult(err.Error()))
		return nil
	}
	if err := s.cfg.Registry.Validate(req.Tool, req.Args); err != nil {
		t.attach(inv.ToolCallID, types.ErrorResult(err.Error()))
		return nil
	}
	d, err := s.checker().Check(ctx, req.Tool, req.Args)
	if err != nil {
		return err
	}
	switch {
	case d.Behavior == permission.BehaviorDeny:
		t.attach(inv.ToolCallID, types.ErrorResult(denied(d)))
		return nil
	case !target.RequiresConfirmation() && d.Behavior != permission.BehaviorAsk:
		t.attach(inv.ToolCallID, types.ErrorResult(fmt.Sprintf("%s does not need confirmation; call it directly", req.Tool)))
		return nil
	}
	return t.open(ctx, inv, req.Tool, req.Args, req.Message)
}

// open asks the gate for a confirmation keyed by inv. One request per turn.
func (t *turn) open(ctx context.Context, inv types.ToolInvocation, tool string, args map[string]any, message string) error {
	s := t.s
	if t.opened != nil {
		t.attach(inv.ToolCallID, types.ErrorResult("another action is already awaiting confirmation"))
		return nil
	}
	if message == "" {
		message = prompt.GetReminder(prompt.ReminderConfirmationRequired, map[string]string{
			"TOOL": tool,
			"ARGS": compactJSON(args),
		})
	}
	rec, err := s.cfg.Gate.Request(ctx, s.conv.ID, gate.Action{
		ToolCallID: inv.ToolCallID,
		Tool:       tool,
		Args:       args,
		Message:    message,
	}, t.userTurn)
	if errors.Is(err, gate.ErrAlreadyRejected) {
		t.attach(inv.ToolCallID, types.ErrorResult(
			prompt.GetReminder(prompt.ReminderAlreadyRejected, map[string]string{"TOOL": tool})))
		return nil
	}
	if err != nil {
		return err
	}
	t.opened = &rec
	s.record(transcript.Event{
		Type:       transcript.EventConfirmationRequested,
		ToolCallID: rec.ToolCallID,
		Tool:       rec.Tool,
		Args:       rec.Args,
		Text:       rec.Message,
		State:      string(rec.State),
	})
	return nil
}

func (t *turn) appendAssistant(text string, calls []types.ToolInvocation) {
	msg := types.NewAssistantMessage(t.s.conv.ID, text, calls)
	msg.CreatedAt = t.s.cfg.Now().UTC()
	t.s.history = append(t.s.history, msg)
}

// attach records a result on the newest invocation with toolCallID. Results
// for invocations from earlier turns are persisted separately.
func (t *turn) attach(toolCallID string, result types.ToolResult) {
	idx := types.AttachResult(t.s.history, toolCallID, result)
	switch {
	case idx < 0:
		t.s.logger.Warn("tool result not attached", zap.String("tool_call_id", toolCallID))
	case idx < t.start:
		t.late = append(t.late, store.AttachedResult{ToolCallID: toolCallID, Result: result})
	}
}

func (t *turn) persist(ctx context.Context) error {
	s := t.s
	msgs := make([]types.Message, 0, len(s.unsaved)+len(s.history)-t.start)
	msgs = append(msgs, s.unsaved...)
	msgs = append(msgs, s.history[t.start:]...)
	if err := s.cfg.Store.SaveTurn(ctx, store.Turn{
		ConversationID: s.conv.ID,
		Messages:       msgs,
		Results:        t.late,
	}); err != nil {
		return err
	}
	s.unsaved = nil
	return nil
}

// abandon undoes gate side effects of a failed turn. History has already
// been restored by the caller.
func (t *turn) abandon(ctx context.Context, cause error) {
	s := t.s
	ctx = context.WithoutCancel(ctx)
	if t.opened != nil {
		if err := s.cfg.Gate.Withdraw(ctx, s.conv.ID, t.opened.ToolCallID); err != nil {
			s.logger.Error("withdraw confirmation", zap.String("tool_call_id", t.opened.ToolCallID), zap.Error(err))
		}
	}
	s.record(transcript.Event{Type: transcript.EventTurnFailed, Text: cause.Error()})
	s.logger.Warn("turn failed", zap.Int("user_turn", t.userTurn), zap.Error(cause))
}

func (t *turn) result(ctx context.Context, reply string, state types.ConfirmationState) *TurnResult {
	s := t.s
	res := &TurnResult{
		Messages:     cloneHistory(s.history[t.start:]),
		Reply:        reply,
		ToolsOffered: t.offered,
		State:        state,
		Executed:     t.executed,
		Steps:        t.steps,
		Usage:        t.usage,
	}
	pending, ok, err := s.cfg.Gate.Pending(ctx, s.conv.ID)
	if err != nil {
		s.logger.Warn("read gate state", zap.Error(err))
		return res
	}
	if ok {
		res.State = pending.State
		res.Pending = &pending
	}
	return res
}

func (t *turn) vars() prompt.Vars {
	s := t.s
	var sensitive []string
	for _, name := range s.cfg.Registry.Names() {
		if ok, _ := s.cfg.Registry.RequiresConfirmation(name); ok {
			sensitive = append(sensitive, name)
		}
	}
	return prompt.Vars{
		WalletAddress:    s.cfg.WalletAddress,
		Now:              s.cfg.Now(),
		SearchTool:       tools.BaselineTool,
		ConfirmationTool: tools.ConfirmationTool,
		ScheduleTool:     tools.CreateActionName,
		SensitiveTools:   sensitive,
	}
}

func describe(c types.Confirmation) string {
	if c.Message != "" {
		return c.Message
	}
	return prompt.GetReminder(prompt.ReminderConfirmationRequired, map[string]string{
		"TOOL": c.Tool,
		"ARGS": compactJSON(c.Args),
	})
}

func denied(d permission.Decision) string {
	if d.Message != "" {
		return d.Message
	}
	return "permission denied"
}

func compactJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
