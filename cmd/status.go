package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/labsync/internal/model"
	"github.com/sells-group/labsync/internal/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the store schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withStore(cmd.Context(), func(context.Context, store.Store) error {
			fmt.Fprintf(os.Stdout, "%s store migrated\n", cfg.Store.Driver)
			return nil
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show message counts per stage and the DLQ depth",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withStore(cmd.Context(), func(ctx context.Context, st store.Store) error {
			counts, err := st.CountStageStatuses(ctx)
			if err != nil {
				return eris.Wrap(err, "status")
			}
			depth, err := st.CountDLQ(ctx)
			if err != nil {
				return eris.Wrap(err, "status")
			}
			totals, err := st.SumAllocations(ctx)
			if err != nil {
				return eris.Wrap(err, "status")
			}
			renderStatus(os.Stdout, counts, depth, totals)
			return nil
		})
	},
}

var messagesCmd = &cobra.Command{
	Use:   "messages",
	Short: "List stored messages",
	RunE: func(cmd *cobra.Command, _ []string) error {
		stageName, _ := cmd.Flags().GetString("stage")
		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		filter, err := messageFilter(stageName, status, limit)
		if err != nil {
			return err
		}

		return withStore(cmd.Context(), func(ctx context.Context, st store.Store) error {
			msgs, err := st.ListMessages(ctx, filter)
			if err != nil {
				return eris.Wrap(err, "messages")
			}
			if len(msgs) == 0 {
				fmt.Fprintln(os.Stderr, "No messages found.")
				return nil
			}
			renderMessages(os.Stdout, msgs)
			return nil
		})
	},
}

func messageFilter(stageName, status string, limit int) (store.MessageFilter, error) {
	f := store.MessageFilter{
		Stage:  model.Stage(stageName),
		Status: model.StageStatus(status),
		Limit:  limit,
	}
	if f.Stage != "" && !f.Stage.Valid() {
		return f, eris.Errorf("unknown stage %q", stageName)
	}
	if f.Status != "" && !f.Status.Valid() {
		return f, eris.Errorf("unknown status %q", status)
	}
	if f.Status != "" && f.Stage == "" {
		return f, eris.New("--status requires --stage")
	}
	return f, nil
}

func init() {
	messagesCmd.Flags().String("stage", "", "filter by stage (extraction, design, allocation)")
	messagesCmd.Flags().String("status", "", "filter by status (pending, succeeded, failed)")
	messagesCmd.Flags().Int("limit", 50, "max messages")

	rootCmd.AddCommand(migrateCmd, statusCmd, messagesCmd)
}
