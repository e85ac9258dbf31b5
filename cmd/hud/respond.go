package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newRespondCmd() *cobra.Command {
	var (
		configPath string
		extra      string
	)

	cmd := &cobra.Command{
		Use:   "respond <request-id> <response...>",
		Short: "Answer a pending human input request",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			api, err := findHub(ctx, cfg)
			if err != nil {
				return err
			}
			response := strings.Join(args[1:], " ")
			if err := api.Respond(ctx, args[0], response, extra); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Answered %s: %s\n", args[0], response)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&extra, "context", "", "additional context for the agent")
	return cmd
}

func newClearCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Drop every request from the hub's ledger",
		Long:  "Clears pending and answered requests. Agents still waiting on a cleared request time out on their own.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			api, err := findHub(ctx, cfg)
			if err != nil {
				return err
			}
			if err := api.ClearRequests(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Requests cleared.")
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}
