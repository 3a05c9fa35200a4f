package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/kasuboski/animez/pkg/logger"
	"github.com/kasuboski/animez/pkg/manager"
	"go.uber.org/zap"

	"github.com/spf13/cobra"
)

var (
	reconcileDryRun bool
	reconcileAll    bool
)

// reconcileCmd represents the reconcile command
var reconcileCmd = &cobra.Command{
	Use:   "reconcile [anime-id]",
	Short: "repair season numbering and grouping",
	Long:  `renumber seasons contiguously, group unnumbered episodes into seasons and drop empty seasons`,
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		log := logger.Get()
		ctx := logger.WithCtx(context.Background(), log)

		if reconcileAll == (len(args) == 1) {
			log.Fatal("pass an anime id or --all")
		}

		a, err := newApp(ctx)
		if err != nil {
			log.Fatalw("failed to start", zap.Error(err))
		}
		defer a.Close()

		if reconcileAll {
			if reconcileDryRun {
				log.Fatal("--dry-run needs a single anime id")
			}
			if err := a.manager.ReconcileAll(ctx); err != nil {
				log.Fatalw("reconcile finished with errors", zap.Error(err))
			}
			log.Info("reconciled every anime")
			return
		}

		animeID, err := parseID(args[0], "anime")
		if err != nil {
			log.Fatal(err)
		}

		if reconcileDryRun {
			layout, changes, err := a.manager.PlanSeasons(ctx, animeID)
			if err != nil {
				log.Fatalw("failed to plan seasons", zap.Error(err))
			}
			fmt.Print(layout.String())

			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.SetStyle(table.StyleRounded)
			tw.AppendHeader(table.Row{"Episode ID", "Season", "New Season"})
			for _, change := range changes {
				tw.AppendRow(table.Row{strings.Join(change.Path, "."), change.From, change.To})
			}
			tw.Render()
			return
		}

		result, err := a.manager.ReconcileSeasons(ctx, animeID)
		if err != nil {
			log.Fatalw("failed to reconcile seasons", zap.Error(err))
		}
		printReconcileResult(result)
	},
}

func printReconcileResult(result *manager.ReconcileResult) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Deleted", "Created", "Renumbered", "Episodes Moved", "Counts Updated"})
	tw.AppendRow(table.Row{result.SeasonsDeleted, result.SeasonsCreated, result.SeasonsRenumbered, result.EpisodesMoved, result.CountsUpdated})
	tw.Render()

	for _, msg := range result.Errors {
		fmt.Fprintln(os.Stderr, "error:", msg)
	}
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
	reconcileCmd.Flags().BoolVar(&reconcileDryRun, "dry-run", false, "print the planned layout without writing it")
	reconcileCmd.Flags().BoolVar(&reconcileAll, "all", false, "reconcile every anime")
}
