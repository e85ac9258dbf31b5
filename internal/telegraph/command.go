package telegraph

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Runner executes an external command and returns its combined output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// CommandSender runs a shell command template for each request and, inside
// tmux, flashes a display-message as well.
type CommandSender struct {
	template string
	inTmux   bool
	run      Runner
}

// CommandSenderOpts holds parameters for creating a CommandSender.
type CommandSenderOpts struct {
	// Template is a shell command, e.g. "notify-send 'Agent HUD' '{{.Agent}}: {{.Message}}'".
	Template string
	// Tmux forces the tmux display-message on or off. Nil means detect $TMUX.
	Tmux *bool
	// Runner overrides command execution for tests.
	Runner Runner
}

// NewCommandSender creates a CommandSender. At least one of a template or a
// tmux session is required.
func NewCommandSender(opts CommandSenderOpts) (*CommandSender, error) {
	inTmux := os.Getenv("TMUX") != ""
	if opts.Tmux != nil {
		inTmux = *opts.Tmux
	}
	if opts.Template == "" && !inTmux {
		return nil, fmt.Errorf("telegraph: command template is required outside tmux")
	}
	run := opts.Runner
	if run == nil {
		run = execRunner
	}
	return &CommandSender{template: opts.Template, inTmux: inTmux, run: run}, nil
}

func (s *CommandSender) Name() string { return "command" }

// Send runs the configured command for the first event in msg.
func (s *CommandSender) Send(ctx context.Context, msg OutboundMessage) error {
	var errs []string
	if s.template != "" {
		cmdStr := expandTemplate(s.template, msg)
		if out, err := s.run(ctx, "sh", "-c", cmdStr); err != nil {
			errs = append(errs, fmt.Sprintf("command failed: %v: %s", err, strings.TrimSpace(string(out))))
		}
	}
	if s.inTmux {
		if _, err := s.run(ctx, "tmux", "display-message", msg.Text); err != nil {
			errs = append(errs, fmt.Sprintf("tmux display-message failed: %v", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("telegraph: %s", strings.Join(errs, "; "))
	}
	return nil
}

// expandTemplate replaces placeholders in the command template with request
// values taken from the first formatted event.
func expandTemplate(command string, msg OutboundMessage) string {
	var evt FormattedEvent
	if len(msg.Events) > 0 {
		evt = msg.Events[0]
	}
	field := func(name string) string {
		for _, f := range evt.Fields {
			if f.Name == name {
				return shellQuoteSafe(f.Value)
			}
		}
		return ""
	}
	r := strings.NewReplacer(
		"{{.Title}}", shellQuoteSafe(evt.Title),
		"{{.Message}}", shellQuoteSafe(evt.Body),
		"{{.Agent}}", field("Agent"),
		"{{.Priority}}", field("Priority"),
		"{{.Type}}", field("Type"),
		"{{.ID}}", field("Request"),
		"{{.Text}}", shellQuoteSafe(msg.Text),
	)
	return r.Replace(command)
}

// shellQuoteSafe strips single quotes so values can sit inside a
// single-quoted shell argument.
func shellQuoteSafe(s string) string {
	return strings.ReplaceAll(s, "'", "")
}
