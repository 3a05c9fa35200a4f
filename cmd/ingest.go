package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/kasuboski/animez/pkg/logger"
	"github.com/kasuboski/animez/pkg/manager"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/spf13/cobra"
)

var (
	ingestSeason int32
	ingestRepair bool
)

// ingestCmd runs an ingest in the foreground and shows its progress
var ingestCmd = &cobra.Command{
	Use:   "ingest <anime-id>",
	Short: "download and upload an anime's episodes",
	Long:  `transfer an anime's pending_download episodes, or with --repair every episode that isn't at its canonical url`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		log := logger.Get()
		ctx := logger.WithCtx(context.Background(), log)

		animeID, err := parseID(args[0], "anime")
		if err != nil {
			log.Fatal(err)
		}

		a, err := newApp(ctx)
		if err != nil {
			log.Fatalw("failed to start", zap.Error(err))
		}
		defer a.Close()

		req := manager.IngestRequest{AnimeID: int32(animeID), Mode: manager.ModePending}
		if ingestRepair {
			req.Mode = manager.ModeRepair
		}
		if cmd.Flags().Changed("season") {
			req.SeasonNumber = &ingestSeason
		}

		run, err := a.manager.StartIngest(ctx, req)
		if err != nil {
			log.Fatalw("failed to start ingest", zap.Error(err))
		}

		status := watchRun(run)
		if status.Error != nil {
			log.Fatalw("ingest failed", zap.String("error", *status.Error))
		}

		printIngestResult(status.Result)
	},
}

// watchRun draws a progress bar from the run's snapshots until it finishes
func watchRun(run *manager.Run) manager.RunStatus {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription("starting"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionClearOnFinish(),
	)

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-run.Done():
			_ = bar.Finish()
			return run.Status()
		case <-ticker.C:
			snap := run.Status().Progress
			if snap.Total > 0 && bar.GetMax() != snap.Total {
				bar.ChangeMax(snap.Total)
			}
			bar.Describe(fmt.Sprintf("%d downloading, %d uploading | %s", snap.Downloading, snap.Uploading, snap.Message))
			_ = bar.Set(snap.Completed)
		}
	}
}

func printIngestResult(result *manager.IngestResult) {
	if result == nil {
		return
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Episode", "Status", "Attempts", "URL / Error"})
	for _, r := range result.Results {
		detail := r.CanonicalURL
		if r.Error != "" {
			detail = r.Error
		}
		status := string(r.Status)
		if r.Skipped {
			status += " (skipped)"
		}
		tw.AppendRow(table.Row{r.EpisodeID, status, r.Attempts, detail})
	}
	tw.AppendFooter(table.Row{
		"total " + strconv.Itoa(result.Total),
		fmt.Sprintf("%d ready, %d failed", result.Ready, result.Failed),
		fmt.Sprintf("%d missing", result.SourceMissing),
		fmt.Sprintf("%d skipped", result.Skipped),
	})
	tw.Render()
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().Int32VarP(&ingestSeason, "season", "s", 0, "limit to one season, or seasons up to it with --repair")
	ingestCmd.Flags().BoolVar(&ingestRepair, "repair", false, "walk every episode that isn't paused instead of only pending downloads")
}
