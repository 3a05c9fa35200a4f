package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/kasuboski/animez/pkg/logger"
	"github.com/kasuboski/animez/pkg/manager"
	"github.com/kasuboski/animez/server"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "start the ingest daemon",
	Long:  `start the job scheduler and the ops http server`,
	Run: func(cmd *cobra.Command, args []string) {
		log := logger.Get()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		ctx = logger.WithCtx(ctx, log)

		// lock before newApp so a losing daemon never migrates the catalog
		lockFile := viper.GetString("server.lockFile")
		unlock, err := lockDaemon(lockFile)
		if err != nil {
			log.Fatalw("failed to acquire lock", zap.String("path", lockFile), zap.Error(err))
		}
		defer unlock()

		a, err := newApp(ctx)
		if err != nil {
			log.Fatalw("failed to start", zap.Error(err))
		}
		defer a.Close()

		if err := a.config.ValidateIngest(); err != nil {
			log.Warnw("ingest configuration is incomplete, ingest jobs will fail until it is fixed", zap.Error(err))
		}

		scheduler := manager.NewScheduler(a.store, a.config.Manager, a.manager.Executors())
		srv := server.New(log, a.manager, scheduler)

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return scheduler.Run(ctx)
		})
		g.Go(func() error {
			return srv.Serve(ctx, a.config.Server.Port)
		})

		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			log.Errorw("daemon stopped", zap.Error(err))
		}
	},
}

var errDaemonRunning = errors.New("another animez daemon is already running")

// lockDaemon takes the single-instance lock at path. The returned func releases it.
func lockDaemon(path string) (func(), error) {
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errDaemonRunning
	}
	return func() { lock.Unlock() }, nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
