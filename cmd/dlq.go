package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/labsync/internal/chain"
	"github.com/sells-group/labsync/internal/model"
	"github.com/sells-group/labsync/internal/resilience"
	"github.com/sells-group/labsync/internal/store"
)

var dlqCmd = &cobra.Command{
	Use:   "dlq",
	Short: "Inspect and replay failed stage tasks",
}

var dlqListCmd = &cobra.Command{
	Use:   "list",
	Short: "List dead-lettered tasks",
	RunE: func(cmd *cobra.Command, _ []string) error {
		filter, err := dlqFilter(cmd)
		if err != nil {
			return err
		}
		return withStore(cmd.Context(), func(ctx context.Context, st store.Store) error {
			entries, err := st.ListDLQ(ctx, filter)
			if err != nil {
				return eris.Wrap(err, "dlq list")
			}
			if len(entries) == 0 {
				fmt.Fprintln(os.Stderr, "DLQ is empty.")
				return nil
			}
			renderDLQ(os.Stdout, entries)
			return nil
		})
	},
}

var dlqReplayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Re-run dead-lettered tasks that are due",
	RunE: func(cmd *cobra.Command, _ []string) error {
		filter, err := dlqFilter(cmd)
		if err != nil {
			return err
		}
		return withPipeline(cmd.Context(), func(ctx context.Context, env *pipelineEnv) error {
			res, err := chain.NewReplayer(env.Store, env.Handlers()).Replay(ctx, filter)
			if err != nil {
				return eris.Wrap(err, "dlq replay")
			}
			fmt.Fprintf(os.Stdout, "attempted %d, succeeded %d, failed %d\n", res.Attempted, res.Succeeded, res.Failed)
			return nil
		})
	},
}

func dlqFilter(cmd *cobra.Command) (resilience.DLQFilter, error) {
	stageName, _ := cmd.Flags().GetString("stage")
	errType, _ := cmd.Flags().GetString("error-type")
	limit, _ := cmd.Flags().GetInt("limit")

	f := resilience.DLQFilter{Stage: model.Stage(stageName), ErrorType: errType, Limit: limit}
	if f.Stage != "" && !f.Stage.Valid() {
		return f, eris.Errorf("unknown stage %q", stageName)
	}
	switch errType {
	case "", resilience.ClassTransient, resilience.ClassPermanent:
	default:
		return f, eris.Errorf("unknown error type %q", errType)
	}
	return f, nil
}

func init() {
	for _, c := range []*cobra.Command{dlqListCmd, dlqReplayCmd} {
		c.Flags().String("stage", "", "filter by stage")
		c.Flags().String("error-type", "", "filter by error type (transient, permanent)")
		c.Flags().Int("limit", 20, "max entries")
	}
	dlqCmd.AddCommand(dlqListCmd, dlqReplayCmd)
	rootCmd.AddCommand(dlqCmd)
}
