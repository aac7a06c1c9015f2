package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/labsync/internal/intake"
	"github.com/sells-group/labsync/internal/model"
	"github.com/sells-group/labsync/internal/stage"
	"github.com/sells-group/labsync/internal/store"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Store a message typed in by hand",
	RunE: func(cmd *cobra.Command, _ []string) error {
		msgText, _ := cmd.Flags().GetString("text")
		sender, _ := cmd.Flags().GetString("sender")
		chat, _ := cmd.Flags().GetString("chat")

		return withStore(cmd.Context(), func(ctx context.Context, st store.Store) error {
			svc := intake.NewService(st, nil, false)
			msg, err := svc.Ingest(ctx, model.Message{
				SenderName:   sender,
				ChatID:       chat,
				Text:         msgText,
				DateReceived: time.Now().UTC(),
			})
			if err != nil {
				return eris.Wrap(err, "ingest")
			}
			return printJSON(os.Stdout, msg)
		})
	},
}

var extractCmd = &cobra.Command{
	Use:   "extract <message-id>",
	Short: "Extract meeting details from a stored message",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPipeline(cmd.Context(), func(ctx context.Context, env *pipelineEnv) error {
			meeting, err := env.Extraction.ExtractAndSave(ctx, args[0])
			if err != nil {
				return eris.Wrap(err, "extract")
			}
			return printJSON(os.Stdout, meeting)
		})
	},
}

var designCmd = &cobra.Command{
	Use:   "design <meeting-id>",
	Short: "Design a budget for an extracted meeting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPipeline(cmd.Context(), func(ctx context.Context, env *pipelineEnv) error {
			budget, err := env.Design.DesignAndSave(ctx, args[0])
			if err != nil {
				return eris.Wrap(err, "design")
			}
			renderBudget(os.Stdout, budget)
			return nil
		})
	},
}

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Run every stage that is still pending, once",
	Long:  "Designs budgets for meetings that lack one, then extracts messages still pending extraction.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		return withPipeline(cmd.Context(), func(ctx context.Context, env *pipelineEnv) error {
			res, err := env.Sweeper.ProcessPending(ctx, limit)
			if err != nil {
				return eris.Wrap(err, "process")
			}
			fmt.Fprintf(os.Stdout, "extracted %d, designed %d, failed %d\n", res.Extracted, res.Designed, res.Failed)
			return nil
		})
	},
}

func withPipeline(ctx context.Context, fn func(context.Context, *pipelineEnv) error) error {
	env, err := initPipeline(ctx, false)
	if err != nil {
		return err
	}
	defer env.Close()
	return fn(ctx, env)
}

func init() {
	ingestCmd.Flags().String("text", "", "message text")
	ingestCmd.Flags().String("sender", intake.UnknownSender, "sender name")
	ingestCmd.Flags().String("chat", "", "chat id")
	_ = ingestCmd.MarkFlagRequired("text")

	processCmd.Flags().Int("limit", stage.DefaultSweepLimit, "max records per pass")

	rootCmd.AddCommand(ingestCmd, extractCmd, designCmd, processCmd)
}
