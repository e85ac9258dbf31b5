package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/agenthud/internal/client"
	"github.com/zulandar/agenthud/internal/models"
)

func newStatusCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show connected agents and pending requests",
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
			return showStatus(ctx, cmd.OutOrStdout(), api)
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func showStatus(ctx context.Context, out io.Writer, api *client.API) error {
	agents, err := api.Agents(ctx)
	if err != nil {
		return err
	}
	pending, err := api.Requests(ctx, "pending")
	if err != nil {
		return err
	}
	items, err := api.Content(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Hub: %s\n\n", api.BaseURL)
	fmt.Fprintf(out, "Agents (%d)\n", len(agents))
	for _, a := range agents {
		status := string(a.Status)
		if a.StatusText != "" {
			status = a.StatusText
		}
		fmt.Fprintf(out, "  %-36s  %-20s  %-12s  last active %s\n",
			a.ID, truncate(a.Name, 20), status, a.LastActivity.Local().Format("15:04:05"))
	}
	fmt.Fprintf(out, "\nPending requests (%d)\n", len(pending))
	for _, r := range pending {
		fmt.Fprintf(out, "  %-36s  %-8s  %-12s  %s: %s\n",
			r.ID, r.Priority, r.RequestType, r.AgentName, truncate(r.Message, 60))
	}
	fmt.Fprintf(out, "\nContent items: %d\n", len(items))
	if len(items) > 0 {
		fmt.Fprintf(out, "Latest: %s\n", describeContent(items[0]))
	}
	return nil
}

func describeContent(item models.ContentItem) string {
	return fmt.Sprintf("%s %q from %s", item.Type, item.Title, item.AgentName)
}
