package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/kasuboski/animez/pkg/logger"
	"go.uber.org/zap"

	"github.com/spf13/cobra"
)

var animeTemplate string

// animeCmd lists the catalog
var animeCmd = &cobra.Command{
	Use:   "anime",
	Short: "list anime in the catalog",
	Run: func(cmd *cobra.Command, args []string) {
		log := logger.Get()
		ctx := logger.WithCtx(context.Background(), log)

		a, err := newApp(ctx)
		if err != nil {
			log.Fatalw("failed to start", zap.Error(err))
		}
		defer a.Close()

		animes, err := a.manager.ListAnime(ctx)
		if err != nil {
			log.Fatalw("failed to list anime", zap.Error(err))
		}

		tw := table.NewWriter()
		tw.SetOutputMirror(os.Stdout)
		tw.SetStyle(table.StyleRounded)
		tw.AppendHeader(table.Row{"ID", "Title", "Slug", "Source Template"})
		for _, anime := range animes {
			slug, template := "", ""
			if anime.Slug != nil {
				slug = *anime.Slug
			}
			if anime.SourceTemplate != nil {
				template = *anime.SourceTemplate
			}
			tw.AppendRow(table.Row{anime.ID, anime.Title, slug, template})
		}
		tw.Render()
	},
}

var animeAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "add an anime to the catalog",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		log := logger.Get()
		ctx := logger.WithCtx(context.Background(), log)

		a, err := newApp(ctx)
		if err != nil {
			log.Fatalw("failed to start", zap.Error(err))
		}
		defer a.Close()

		anime, err := a.manager.AddAnime(ctx, args[0], animeTemplate)
		if err != nil {
			log.Fatalw("failed to add anime", zap.Error(err))
		}
		fmt.Printf("added anime %d with slug %s\n", anime.ID, *anime.Slug)
	},
}

func init() {
	rootCmd.AddCommand(animeCmd)
	animeCmd.AddCommand(animeAddCmd)
	animeAddCmd.Flags().StringVarP(&animeTemplate, "template", "t", "", "source url template using {slug}, {season} and {episode}")
}
