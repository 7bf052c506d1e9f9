package cmd

import (
	"fmt"
	"os"

	"github.com/benjamin-macmichael/RobocopyManager/internal/config"
	"github.com/benjamin-macmichael/RobocopyManager/internal/db"
	"github.com/benjamin-macmichael/RobocopyManager/internal/logger"
	"github.com/spf13/cobra"
)

var (
	cfg   *config.Config
	debug bool
)

var rootCmd = &cobra.Command{
	Use:   "robosync",
	Short: "Schedule and archive recurring robocopy jobs",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}

		logger.Init(debug)

		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}

		// Only the daemon itself touches the database; every other
		// command goes through its HTTP API.
		if cmd.Name() == "watch" {
			if err := db.Init(cfg.DBPath); err != nil {
				return err
			}
		}

		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func daemonURL(path string) string {
	return fmt.Sprintf("http://localhost:%d%s", cfg.DaemonPort, path)
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug mode")
}
