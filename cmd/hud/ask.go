package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/agenthud/internal/client"
	"github.com/zulandar/agenthud/internal/models"
)

func newAskCmd() *cobra.Command {
	var (
		configPath string
		name       string
		kind       string
		priority   string
		options    []string
		timeout    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "ask <message>",
		Short: "Ask the human a question and print the answer",
		Long:  "Registers as a short-lived agent, submits one human input request and blocks until it is answered or times out. Handy from shell scripts.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			agent, err := connectAgent(ctx, cfg, name, newLogger(cfg.Log, cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			defer agent.Close()

			ans, err := agent.RequestHumanInput(ctx, client.Question{
				Type:     models.ParseRequestType(kind),
				Message:  args[0],
				Priority: models.ParsePriority(priority),
				Options:  options,
				Timeout:  timeout,
			})
			if errors.Is(err, client.ErrTimeout) {
				return fmt.Errorf("no answer within %s", timeout)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ans.Response)
			if ans.AdditionalContext != "" {
				fmt.Fprintln(cmd.ErrOrStderr(), ans.AdditionalContext)
			}
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&name, "name", "shell", "agent name shown to the observer")
	cmd.Flags().StringVar(&kind, "type", "input", "request type: input, approval, choice, confirmation, text")
	cmd.Flags().StringVar(&priority, "priority", "", "Low, Medium, High or Critical (derived when empty)")
	cmd.Flags().StringSliceVar(&options, "option", nil, "answer option (repeatable)")
	cmd.Flags().DurationVar(&timeout, "timeout", client.DefaultRequestTimeout, "how long to wait for an answer")
	return cmd
}
