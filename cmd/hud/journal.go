package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/agenthud/internal/journal"
	"github.com/zulandar/agenthud/internal/models"
)

func newJournalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect or prune the audit journal",
		Long:  "Works directly against the journal database named in the config. Only useful with a persistent driver (mysql or a file-backed sqlite DSN).",
	}
	cmd.AddCommand(newJournalRequestsCmd())
	cmd.AddCommand(newJournalPruneCmd())
	return cmd
}

func openJournal(configPath string) (*journal.Journal, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if cfg.Journal.Driver == "" {
		return nil, fmt.Errorf("journal is disabled in %s", configPath)
	}
	db, err := journal.Open(cfg.Journal)
	if err != nil {
		return nil, err
	}
	return journal.New(db, nil), nil
}

func newJournalRequestsCmd() *cobra.Command {
	var (
		configPath string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "requests",
		Short: "List recent journaled requests with their responses",
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := openJournal(configPath)
			if err != nil {
				return err
			}
			return listJournalRequests(cmd.Context(), cmd.OutOrStdout(), j, limit)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of requests to show")
	return cmd
}

func listJournalRequests(ctx context.Context, out io.Writer, j *journal.Journal, limit int) error {
	if ctx == nil {
		ctx = context.Background()
	}
	recs, err := j.RecentRequests(ctx, limit)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		fmt.Fprintln(out, "No requests journaled.")
		return nil
	}
	for _, r := range recs {
		fmt.Fprintf(out, "%s  %s  %-9s  %-8s  %s: %s\n",
			r.CreatedAt.Local().Format("2006-01-02 15:04"), r.ID, r.Status, r.Priority, r.AgentName, truncate(r.Message, 60))
		if r.Status != string(models.RequestCompleted) {
			continue
		}
		resps, err := j.Responses(ctx, r.ID)
		if err != nil {
			return err
		}
		for _, resp := range resps {
			fmt.Fprintf(out, "    -> %s", resp.Response)
			if resp.AdditionalContext != "" {
				fmt.Fprintf(out, " (%s)", truncate(resp.AdditionalContext, 40))
			}
			fmt.Fprintln(out)
		}
	}
	return nil
}

func newJournalPruneCmd() *cobra.Command {
	var (
		configPath string
		days       int
	)

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete journal rows older than the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("days") {
				days = cfg.Journal.RetentionDays
			}
			if days <= 0 {
				return fmt.Errorf("--days must be positive")
			}
			j, err := openJournal(configPath)
			if err != nil {
				return err
			}
			cutoff := time.Now().UTC().Add(-time.Duration(days) * 24 * time.Hour)
			n, err := j.Prune(context.Background(), cutoff)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d rows older than %s\n", n, cutoff.Format(time.RFC3339))
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().IntVar(&days, "days", 7, "retention window in days (defaults to journal.retention_days)")
	return cmd
}
