package cmd

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "animez",
	Short: "animez cli",
	Long:  `animez ingests anime episodes into object storage and keeps their seasons in order`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "config file")
}

const (
	defaultJobTicker = time.Minute * 10
)

func initConfig() {
	viper.SetConfigFile(cfgFile)

	viper.SetEnvPrefix("ANIMEZ")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", ""))
	viper.AutomaticEnv()

	viper.SetDefault("storage.filePath", "animez.sqlite")

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.lockFile", "animez.lock")

	viper.SetDefault("cdn.host", "")

	viper.SetDefault("objectStore.endpoint", "")
	viper.SetDefault("objectStore.zone", "")
	viper.SetDefault("objectStore.accessKey", "")
	viper.SetDefault("objectStore.maxRetries", 3)
	viper.SetDefault("objectStore.backoff", 500*time.Millisecond)
	viper.SetDefault("objectStore.timeout", 30*time.Minute)

	viper.SetDefault("source.baseURL", "")
	viper.SetDefault("source.template", "")

	viper.SetDefault("fetch.binary", "yt-dlp")
	viper.SetDefault("fetch.retries", 3)
	viper.SetDefault("fetch.timeout", time.Hour)
	viper.SetDefault("fetch.tempDir", os.TempDir())

	viper.SetDefault("ingest.concurrency", 2)
	viper.SetDefault("ingest.globalConcurrency", 2)
	viper.SetDefault("ingest.maxAttempts", 3)
	viper.SetDefault("ingest.reconcileFirst", true)
	viper.SetDefault("ingest.runRetention", 24*time.Hour)

	viper.SetDefault("reconcile.seasonSize", 12)

	viper.SetDefault("manager.jobs.pendingDownloads", defaultJobTicker)
	viper.SetDefault("manager.jobs.seasonReconcile", time.Hour)
	viper.SetDefault("manager.jobs.jobScheduleInterval", time.Minute)
	viper.SetDefault("manager.jobs.pollInterval", 5*time.Second)
}
