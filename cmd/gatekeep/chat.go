package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jg-phare/gatekeep/pkg/chat"
	"github.com/jg-phare/gatekeep/pkg/permission"
	"github.com/jg-phare/gatekeep/pkg/types"
)

var (
	chatConversation string
	chatTitle        string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat interactively in the terminal",
	Long: `Start an interactive chat. Lines starting with / are commands:

  /degen on|off       toggle confirmation bypass for this user
  /model NAME         switch the model for this conversation
  /block TOOL [MATCH] deny a tool (glob) until exit, optionally only for
                      matching recipients or tokens
  /unblock TOOL       drop the /block rules for TOOL
  /rules              list rules added with /block
  /new [TITLE]        start a new conversation
  /quit               exit`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatConversation, "conversation", "", "Resume an existing conversation")
	chatCmd.Flags().StringVar(&chatTitle, "title", "", "Title for a new conversation")
}

func runChat(cmd *cobra.Command, args []string) error {
	if err := requireUser(); err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	var session *chat.Session
	if chatConversation != "" {
		session, err = a.manager.Open(ctx, chatConversation)
	} else {
		session, err = a.manager.Create(ctx, userID, chatTitle)
	}
	if err != nil {
		return err
	}
	if session.UserID() != userID {
		return fmt.Errorf("conversation %s belongs to another user", session.ID())
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "conversation %s (model %s, degen %v)\n", session.ID(), session.Model(), session.Degen())

	return repl(ctx, a, session, cmd.InOrStdin(), out)
}

func repl(ctx context.Context, a *app, session *chat.Session, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			next, quit, err := command(ctx, a, session, line, out)
			if err != nil {
				fmt.Fprintln(out, "error:", err)
			}
			if quit {
				return nil
			}
			session = next
			continue
		}

		res, err := session.Send(ctx, line)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			a.logger.Warn("turn failed", zap.String("conversation_id", session.ID()), zap.Error(err))
			fmt.Fprintln(out, chat.FailureMessage())
			continue
		}
		printTurn(out, res)
	}
}

func command(ctx context.Context, a *app, session *chat.Session, line string, out io.Writer) (*chat.Session, bool, error) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return session, true, nil
	case "/degen":
		if len(fields) != 2 || (fields[1] != "on" && fields[1] != "off") {
			return session, false, fmt.Errorf("usage: /degen on|off")
		}
		if err := session.SetDegenMode(ctx, fields[1] == "on"); err != nil {
			return session, false, err
		}
		fmt.Fprintf(out, "degen mode %s\n", fields[1])
	case "/model":
		if len(fields) != 2 {
			return session, false, fmt.Errorf("usage: /model NAME")
		}
		if err := session.SetModel(ctx, fields[1]); err != nil {
			return session, false, err
		}
		fmt.Fprintf(out, "model %s\n", session.Model())
	case "/block":
		if len(fields) < 2 || len(fields) > 3 {
			return session, false, fmt.Errorf("usage: /block TOOL [MATCH]")
		}
		rule := permission.Rule{Tool: fields[1], Behavior: permission.BehaviorDeny}
		if len(fields) == 3 {
			rule.Match = fields[2]
		}
		if err := a.checker.AddSessionRule(rule); err != nil {
			return session, false, err
		}
		fmt.Fprintf(out, "blocked %s\n", describeRule(rule))
	case "/unblock":
		if len(fields) != 2 {
			return session, false, fmt.Errorf("usage: /unblock TOOL")
		}
		fmt.Fprintf(out, "removed %d rule(s)\n", a.checker.RemoveSessionRules(fields[1]))
	case "/rules":
		rules := a.checker.SessionRules()
		if len(rules) == 0 {
			fmt.Fprintln(out, "no session rules")
		}
		for _, r := range rules {
			fmt.Fprintf(out, "  %s %s\n", r.Behavior, describeRule(r))
		}
	case "/new":
		next, err := a.manager.Create(ctx, userID, strings.TrimSpace(strings.TrimPrefix(line, "/new")))
		if err != nil {
			return session, false, err
		}
		a.manager.Close(session.ID())
		fmt.Fprintf(out, "conversation %s\n", next.ID())
		return next, false, nil
	default:
		return session, false, fmt.Errorf("unknown command %s", fields[0])
	}
	return session, false, nil
}

func describeRule(r permission.Rule) string {
	if r.Match == "" {
		return r.Tool
	}
	return r.Tool + " " + r.Match
}

func printTurn(out io.Writer, res *chat.TurnResult) {
	for _, inv := range res.Executed {
		status := "ok"
		if inv.Result != nil && inv.Result.IsError() {
			status = inv.Result.Error
		}
		fmt.Fprintf(out, "  [%s %s]\n", inv.ToolName, status)
	}
	if res.Reply != "" {
		fmt.Fprintln(out, res.Reply)
	}
	if res.State == types.ConfirmationAwaiting && res.Pending != nil {
		args, _ := json.Marshal(res.Pending.Args)
		fmt.Fprintf(out, "  (awaiting confirmation: %s %s)\n", res.Pending.Tool, args)
	}
}
