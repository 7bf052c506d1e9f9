package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benjamin-macmichael/RobocopyManager/internal/daemon"
	"github.com/benjamin-macmichael/RobocopyManager/internal/engine"
	"github.com/benjamin-macmichael/RobocopyManager/internal/logger"
	"github.com/benjamin-macmichael/RobocopyManager/internal/notify"
	"github.com/benjamin-macmichael/RobocopyManager/internal/repository"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Start the daemon: scheduler, coordinator and control API",
	RunE:  runDaemon,
}

func runDaemon(cmd *cobra.Command, args []string) error {
	defer logger.Sync()

	if err := repository.NewJobRepository().ResetStaleRunning(); err != nil {
		logger.Log.Warn("failed to reset stale job statuses",
			zap.Error(err))
	}

	bus := notify.NewBus()
	coord := engine.NewCoordinator(cfg.CopyTool, engine.ExecRunner{}, bus)

	scheduler := engine.NewScheduler(coord, time.Duration(cfg.TickSeconds)*time.Second)
	scheduler.Start()

	srv := daemon.NewServer(coord, cfg.DaemonPort)
	srv.Start()

	logger.Log.Info("robosync daemon started",
		zap.Int("port", cfg.DaemonPort),
		zap.String("copy_tool", cfg.CopyTool))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Log.Info("shutting down",
			zap.String("signal", sig.String()))
	case <-srv.StopCh():
		logger.Log.Info("stop requested via API")
	}

	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Stop(ctx)
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
