package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/labsync/internal/export"
	"github.com/sells-group/labsync/internal/model"
	"github.com/sells-group/labsync/internal/stage"
	"github.com/sells-group/labsync/internal/store"
)

var budgetCmd = &cobra.Command{
	Use:   "budget",
	Short: "Inspect and export designed budgets",
}

var budgetShowCmd = &cobra.Command{
	Use:   "show <budget-id>",
	Short: "Show a budget and its allocations",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		byMeeting, _ := cmd.Flags().GetBool("meeting")

		return withStore(cmd.Context(), func(ctx context.Context, st store.Store) error {
			b, err := loadBudget(ctx, st, args[0], byMeeting)
			if err != nil {
				return err
			}
			allocs, err := st.ListAllocations(ctx, b.ID)
			if err != nil {
				return eris.Wrap(err, "budget show")
			}
			return writeBudget(os.Stdout, format, b, allocs)
		})
	},
}

var budgetExportCmd = &cobra.Command{
	Use:   "export <budget-id>",
	Short: "Write a budget to an xlsx workbook",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")
		byMeeting, _ := cmd.Flags().GetBool("meeting")

		return withStore(cmd.Context(), func(ctx context.Context, st store.Store) error {
			b, err := loadBudget(ctx, st, args[0], byMeeting)
			if err != nil {
				return err
			}
			if out == "" {
				out = b.ID + ".xlsx"
			}
			if err := export.BudgetXLSX(b, out); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "wrote %s\n", out)
			return nil
		})
	},
}

var allocateCmd = &cobra.Command{
	Use:   "allocate <budget-id>",
	Short: "Allocate part of a budget to a team or category",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in := stage.AllocationInput{BudgetID: args[0]}
		in.AllocatedTo, _ = cmd.Flags().GetString("to")
		in.Category, _ = cmd.Flags().GetString("category")
		in.AllocatedAmount, _ = cmd.Flags().GetFloat64("amount")
		in.ActualSpent, _ = cmd.Flags().GetFloat64("spent")
		in.AllocatedBy, _ = cmd.Flags().GetString("by")
		in.Notes, _ = cmd.Flags().GetString("notes")

		return withStore(cmd.Context(), func(ctx context.Context, st store.Store) error {
			alloc, err := stage.NewAllocationService(st).Create(ctx, in)
			if err != nil {
				return eris.Wrap(err, "allocate")
			}
			return printJSON(os.Stdout, alloc)
		})
	},
}

func loadBudget(ctx context.Context, st store.Store, id string, byMeeting bool) (*model.Budget, error) {
	var b *model.Budget
	var err error
	if byMeeting {
		b, err = st.GetBudgetByMeeting(ctx, id)
	} else {
		b, err = st.GetBudget(ctx, id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "load budget %s", id)
	}
	if b == nil {
		return nil, eris.Errorf("budget not found: %s", id)
	}
	return b, nil
}

type budgetView struct {
	*model.Budget
	Allocations []model.Allocation `json:"allocations"`
}

func writeBudget(w io.Writer, format string, b *model.Budget, allocs []model.Allocation) error {
	if allocs == nil {
		allocs = []model.Allocation{}
	}
	switch format {
	case formatTable, "":
		renderBudget(w, b)
		if len(allocs) > 0 {
			fmt.Fprintln(w)
			renderAllocations(w, allocs)
		}
		return nil
	case formatJSON:
		return printJSON(w, budgetView{Budget: b, Allocations: allocs})
	case formatYAML:
		return printYAML(w, budgetView{Budget: b, Allocations: allocs})
	}
	return eris.Errorf("unknown format %q (want table, json, or yaml)", format)
}

func init() {
	budgetShowCmd.Flags().String("format", formatTable, "output format: table, json, yaml")
	budgetShowCmd.Flags().Bool("meeting", false, "treat the argument as a meeting id")
	budgetExportCmd.Flags().String("out", "", "output path (default <budget-id>.xlsx)")
	budgetExportCmd.Flags().Bool("meeting", false, "treat the argument as a meeting id")
	budgetCmd.AddCommand(budgetShowCmd, budgetExportCmd)

	allocateCmd.Flags().String("to", "", "team or person receiving the allocation")
	allocateCmd.Flags().String("category", "", "budget category")
	allocateCmd.Flags().Float64("amount", 0, "allocated amount")
	allocateCmd.Flags().Float64("spent", 0, "amount already spent")
	allocateCmd.Flags().String("by", "", "who made the allocation")
	allocateCmd.Flags().String("notes", "", "free-form notes")
	_ = allocateCmd.MarkFlagRequired("to")
	_ = allocateCmd.MarkFlagRequired("category")
	_ = allocateCmd.MarkFlagRequired("amount")

	rootCmd.AddCommand(budgetCmd, allocateCmd)
}
