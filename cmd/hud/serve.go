package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/agenthud/internal/config"
	"github.com/zulandar/agenthud/internal/hub"
	"github.com/zulandar/agenthud/internal/journal"
	"github.com/zulandar/agenthud/internal/models"
	"github.com/zulandar/agenthud/internal/server"
	"github.com/zulandar/agenthud/internal/telegraph"
	"github.com/zulandar/agenthud/internal/telegraph/discord"
	"github.com/zulandar/agenthud/internal/telegraph/slack"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		host       string
		portMin    int
		portMax    int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the relay hub",
		Long:  "Binds the first free port in the configured range and relays events between agents and observers until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("host") {
				cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port-min") {
				cfg.Server.PortMin = portMin
			}
			if cmd.Flags().Changed("port-max") {
				cfg.Server.PortMax = portMax
			}
			if cfg.Server.PortMin > cfg.Server.PortMax {
				return fmt.Errorf("port range %d..%d is empty", cfg.Server.PortMin, cfg.Server.PortMax)
			}
			return runServe(cmd, cfg)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "interface to bind")
	cmd.Flags().IntVar(&portMin, "port-min", 8080, "first port to try")
	cmd.Flags().IntVar(&portMax, "port-max", 8199, "last port to try")
	return cmd
}

func runServe(cmd *cobra.Command, cfg *config.Config) error {
	log := newLogger(cfg.Log, cmd.ErrOrStderr())
	ctx, cancel := signalContext()
	defer cancel()

	opts := hub.Opts{Logger: log}
	var reader server.JournalReader

	if cfg.Journal.Driver != "" {
		db, err := journal.Open(cfg.Journal)
		if err != nil {
			return err
		}
		j := journal.New(db, log)
		go j.Run(ctx)
		retention := time.Duration(cfg.Journal.RetentionDays) * 24 * time.Hour
		if err := j.StartRetention(ctx, cfg.Journal.CleanupSchedule, retention); err != nil {
			return err
		}
		opts.Recorder = j
		reader = j
		fmt.Fprintf(cmd.OutOrStdout(), "Journal: %s (retention %dd)\n", cfg.Journal.Driver, cfg.Journal.RetentionDays)
	}

	senders, err := buildSenders(cfg.Notify, log)
	if err != nil {
		return err
	}
	if len(senders) > 0 {
		d := telegraph.NewDispatcher(telegraph.DispatcherOpts{
			Senders:     senders,
			MinPriority: models.ParsePriority(cfg.Notify.MinPriority),
			Logger:      log,
		})
		go d.Run(ctx)
		opts.Notifier = d
		for _, s := range senders {
			fmt.Fprintf(cmd.OutOrStdout(), "Notifying via %s (min priority %s)\n", s.Name(), cfg.Notify.MinPriority)
		}
	}

	h := hub.New(opts)
	hubDone := make(chan error, 1)
	go func() { hubDone <- h.Run(ctx) }()

	err = server.Start(ctx, server.StartOpts{
		Hub:        h,
		Journal:    reader,
		Host:       cfg.Server.Host,
		MinPort:    cfg.Server.PortMin,
		MaxPort:    cfg.Server.PortMax,
		SendBuffer: cfg.Server.SendBuffer,
		Logger:     log,
		Out:        cmd.OutOrStdout(),
	})
	cancel()
	<-hubDone
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Hub stopped.")
	return nil
}

// buildSenders creates a sender for each configured notification channel.
func buildSenders(cfg config.NotifyConfig, log *slog.Logger) ([]telegraph.Sender, error) {
	var senders []telegraph.Sender
	if cfg.Command != "" {
		s, err := telegraph.NewCommandSender(telegraph.CommandSenderOpts{Template: cfg.Command})
		if err != nil {
			return nil, err
		}
		senders = append(senders, s)
	}
	if cfg.Slack.BotToken != "" {
		s, err := slack.New(slack.SenderOpts{BotToken: cfg.Slack.BotToken, ChannelID: cfg.Slack.ChannelID})
		if err != nil {
			return nil, err
		}
		if _, err := s.Verify(); err != nil {
			log.Warn("slack token check failed; notifications may not arrive", "error", err)
		}
		senders = append(senders, s)
	}
	if cfg.Discord.BotToken != "" {
		s, err := discord.New(discord.SenderOpts{BotToken: cfg.Discord.BotToken, ChannelID: cfg.Discord.ChannelID})
		if err != nil {
			return nil, err
		}
		senders = append(senders, s)
	}
	return senders, nil
}
