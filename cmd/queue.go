package cmd

import (
	"context"
	"fmt"

	"github.com/kasuboski/animez/pkg/logger"
	"go.uber.org/zap"

	"github.com/spf13/cobra"
)

// queueCmd enqueues an ingest job for one episode
var queueCmd = &cobra.Command{
	Use:   "queue <episode-id>",
	Short: "queue an episode for the daemon to ingest",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		log := logger.Get()
		ctx := logger.WithCtx(context.Background(), log)

		episodeID, err := parseID(args[0], "episode")
		if err != nil {
			log.Fatal(err)
		}

		a, err := newApp(ctx)
		if err != nil {
			log.Fatalw("failed to start", zap.Error(err))
		}
		defer a.Close()

		jobID, err := a.manager.QueueEpisode(ctx, episodeID)
		if err != nil {
			log.Fatalw("failed to queue episode", zap.Error(err))
		}
		fmt.Printf("queued job %d\n", jobID)
	},
}

func init() {
	rootCmd.AddCommand(queueCmd)
}
