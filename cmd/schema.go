package cmd

import (
	"context"
	"log"
	"os"
	"path/filepath"

	"github.com/kasuboski/animez/pkg/storage/sqlite"
	"github.com/spf13/cobra"

	jet "github.com/go-jet/jet/v2/generator/sqlite"
)

var outputDirectory string

// schemaCmd represents the schema command
var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "generate database code",
	Long:  `apply the embedded migrations to a scratch database and generate jet models and tables from it`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		dir, err := os.MkdirTemp("", "animez-schema")
		if err != nil {
			log.Fatal(err)
		}
		defer os.RemoveAll(dir)

		dbPath := filepath.Join(dir, "schema.sqlite")
		tmpStorage, err := sqlite.New(ctx, dbPath)
		if err != nil {
			log.Fatal(err)
		}

		err = tmpStorage.RunMigrations(ctx)
		tmpStorage.Close()
		if err != nil {
			log.Fatal(err)
		}

		err = jet.GenerateDSN(dbPath, outputDirectory)
		if err != nil {
			log.Fatal(err)
		}

		log.Printf("successfully generated to %s", outputDirectory)
	},
}

func init() {
	generateCmd.AddCommand(schemaCmd)
	schemaCmd.Flags().StringVarP(&outputDirectory, "out", "o", "./pkg/storage/sqlite/schema/gen", "directory to output generated code to")
}
