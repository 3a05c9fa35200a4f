package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/kasuboski/animez/pkg/logger"
	"go.uber.org/zap"

	"github.com/spf13/cobra"
)

var (
	episodesSeason int32
	episodesCount  int32
)

// episodesCmd lists an anime's episodes
var episodesCmd = &cobra.Command{
	Use:   "episodes <anime-id>",
	Short: "list an anime's episodes",
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

		episodes, err := a.manager.ListEpisodes(ctx, animeID)
		if err != nil {
			log.Fatalw("failed to list episodes", zap.Error(err))
		}

		tw := table.NewWriter()
		tw.SetOutputMirror(os.Stdout)
		tw.SetStyle(table.StyleRounded)
		tw.AppendHeader(table.Row{"ID", "Season", "Episode", "Status", "URL / Error"})
		for _, e := range episodes {
			season := "-"
			if e.SeasonNumber != nil {
				season = strconv.Itoa(int(*e.SeasonNumber))
			}
			detail := ""
			switch {
			case e.ErrorMessage != nil:
				detail = *e.ErrorMessage
			case e.CanonicalURL != nil:
				detail = *e.CanonicalURL
			}
			tw.AppendRow(table.Row{e.ID, season, e.EpisodeNumber, e.Status, detail})
		}
		tw.AppendFooter(table.Row{"", "", "", "total", len(episodes)})
		tw.Render()
	},
}

// discoverCmd records newly aired episodes as pending_download
var discoverCmd = &cobra.Command{
	Use:   "discover <anime-id> <episode-number>...",
	Short: "add newly aired episodes for download",
	Args:  cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		log := logger.Get()
		ctx := logger.WithCtx(context.Background(), log)

		animeID, err := parseID(args[0], "anime")
		if err != nil {
			log.Fatal(err)
		}

		numbers := make([]int32, 0, len(args)-1)
		for _, arg := range args[1:] {
			n, err := strconv.ParseInt(arg, 10, 32)
			if err != nil {
				log.Fatalf("invalid episode number %q", arg)
			}
			numbers = append(numbers, int32(n))
		}

		a, err := newApp(ctx)
		if err != nil {
			log.Fatalw("failed to start", zap.Error(err))
		}
		defer a.Close()

		ids, err := a.manager.DiscoverEpisodes(ctx, animeID, episodesSeason, numbers)
		if err != nil {
			log.Fatalw("failed to add episodes", zap.Error(err))
		}
		fmt.Printf("added %d episodes\n", len(ids))
	},
}

// importCmd creates a season's episodes from catalog metadata
var importCmd = &cobra.Command{
	Use:   "import <anime-id>",
	Short: "create pending episodes 1..count for a season",
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

		ids, err := a.manager.ImportEpisodes(ctx, animeID, episodesSeason, episodesCount)
		if err != nil {
			log.Fatalw("failed to import episodes", zap.Error(err))
		}
		fmt.Printf("imported %d episodes\n", len(ids))
	},
}

func init() {
	rootCmd.AddCommand(episodesCmd)
	episodesCmd.AddCommand(discoverCmd)
	episodesCmd.AddCommand(importCmd)

	discoverCmd.Flags().Int32VarP(&episodesSeason, "season", "s", 1, "season the episodes belong to")
	importCmd.Flags().Int32VarP(&episodesSeason, "season", "s", 1, "season the episodes belong to")
	importCmd.Flags().Int32VarP(&episodesCount, "count", "c", 0, "number of episodes in the season")
}
