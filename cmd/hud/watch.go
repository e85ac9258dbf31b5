package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/agenthud/internal/client"
	"github.com/zulandar/agenthud/internal/discovery"
	"github.com/zulandar/agenthud/internal/models"
	"github.com/zulandar/agenthud/internal/protocol"
	"golang.org/x/term"
)

// defaultWidth is used when stdout is not a terminal.
const defaultWidth = 120

func newWatchCmd() *cobra.Command {
	var (
		configPath string
		raw        bool
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream hub events as an observer",
		Long:  "Discovers the hub, registers as an observer and prints every event as it arrives. Reconnects if the hub restarts. On a terminal lines are trimmed to the window width; use --raw for one JSON frame per line.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			p := newEventPrinter(out, raw)

			ctx, cancel := signalContext()
			defer cancel()

			d := cfg.Discovery
			obs := client.NewObserver(client.ObserverOpts{
				Host:           d.Host,
				MinPort:        d.PortMin,
				MaxPort:        d.PortMax,
				AttemptTimeout: ms(d.AttemptTimeoutMS),
				ReconnectDelay: ms(d.ReconnectDelayMS),
				Backoff:        ms(d.BackoffMS),
				Logger:         newLogger(cfg.Log, cmd.ErrOrStderr()),
				OnEvent:        p.print,
				OnConnect: func(port int) {
					p.status(fmt.Sprintf("Connected to hub on port %d (Ctrl+C to stop)", port))
				},
			})
			err = obs.Run(ctx)
			if errors.Is(err, discovery.ErrNotFound) {
				return fmt.Errorf("no hub found on %s ports %d..%d", d.Host, d.PortMin, d.PortMax)
			}
			return err
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().BoolVar(&raw, "raw", false, "print raw JSON frames")
	return cmd
}

// terminalWidth reports the column count when w is a terminal.
func terminalWidth(w io.Writer) (int, bool) {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return 0, false
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		return defaultWidth, true
	}
	return width, true
}

// eventPrinter renders hub frames. Calls come from the observer's read
// goroutine and from OnConnect, so writes are serialized.
type eventPrinter struct {
	mu    sync.Mutex
	out   io.Writer
	raw   bool
	width int
}

func newEventPrinter(out io.Writer, raw bool) *eventPrinter {
	width, tty := terminalWidth(out)
	if !tty {
		width = 0
	}
	return &eventPrinter{out: out, raw: raw, width: width}
}

func (p *eventPrinter) status(line string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, line)
}

func (p *eventPrinter) print(f protocol.Frame) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.raw {
		data, _ := json.Marshal(f)
		fmt.Fprintln(p.out, string(data))
		return
	}
	line := formatFrame(f)
	if line == "" {
		return
	}
	if p.width > 0 {
		line = truncate(line, p.width)
	}
	fmt.Fprintln(p.out, line)
}

// formatFrame renders one event as a single human-readable line.
func formatFrame(f protocol.Frame) string {
	ts := protocol.ParseTimestamp(f.Timestamp)
	if ts.IsZero() {
		ts = time.Now()
	}
	prefix := ts.Local().Format("15:04:05")

	switch f.Type {
	case protocol.TypeAgentConnected, protocol.TypeAgentUpdate:
		var a models.Agent
		if json.Unmarshal(f.Data, &a) != nil {
			return ""
		}
		verb := "updated"
		if f.Type == protocol.TypeAgentConnected {
			verb = "connected"
		}
		status := string(a.Status)
		if a.StatusText != "" {
			status = a.StatusText
		}
		return fmt.Sprintf("[%s] agent %s %s (%s) %s", prefix, a.Name, verb, a.ID, status)

	case protocol.TypeAgentDisconnected:
		var gone struct {
			AgentID string `json:"agentId"`
			Name    string `json:"name"`
		}
		json.Unmarshal(f.Data, &gone)
		return fmt.Sprintf("[%s] agent %s disconnected (%s)", prefix, gone.Name, gone.AgentID)

	case protocol.TypeAgentMessage:
		var m struct {
			AgentName string          `json:"agentName"`
			Kind      string          `json:"kind"`
			Payload   json.RawMessage `json:"payload"`
		}
		json.Unmarshal(f.Data, &m)
		return fmt.Sprintf("[%s] %s %s %s", prefix, m.AgentName, m.Kind, string(m.Payload))

	case protocol.TypeHumanInputRequest:
		var r models.HumanInputRequest
		if json.Unmarshal(f.Data, &r) != nil {
			return ""
		}
		if !r.Pending() {
			return fmt.Sprintf("[%s] request %s answered", prefix, r.ID)
		}
		line := fmt.Sprintf("[%s] [%s] %s asks (%s): %s", prefix, r.Priority, r.AgentName, r.ID, r.Message)
		if len(r.Options) > 0 {
			line += fmt.Sprintf(" %v", r.Options)
		}
		return line

	case protocol.TypeRequestsCleared:
		var c struct {
			Count int `json:"count"`
		}
		json.Unmarshal(f.Data, &c)
		return fmt.Sprintf("[%s] %d requests cleared", prefix, c.Count)

	case protocol.TypeContentEmission, protocol.TypeMarkdownContent, protocol.TypeCodeContent, protocol.TypeImageContent:
		var item models.ContentItem
		if json.Unmarshal(f.Data, &item) != nil {
			return ""
		}
		return fmt.Sprintf("[%s] %s posted %s %q", prefix, item.AgentName, item.Type, item.Title)

	case protocol.TypeRegistrationAck:
		return ""
	default:
		return fmt.Sprintf("[%s] %s", prefix, f.Type)
	}
}
