package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/benjamin-macmichael/RobocopyManager/internal/model"
	"github.com/spf13/cobra"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage global settings",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show global settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := fetchSettings()
		if err != nil {
			return err
		}

		fmt.Printf("mode:             %s\n", settings.Mode)
		fmt.Printf("empty dirs:       %v\n", settings.IncludeEmptyDirs)
		fmt.Printf("retries:          %d (wait %ds)\n", settings.RetryCount, settings.RetryWaitSec)
		fmt.Printf("versioning:       %v (folder %q)\n", settings.Versioning, model.VersionFolder)
		fmt.Printf("retention days:   %d (0 = forever)\n", settings.RetentionDays)
		fmt.Printf("max versions:     %d (0 = unlimited)\n", settings.MaxVersions)
		return nil
	},
}

var (
	setMode          string
	setEmptyDirs     bool
	setNoEmptyDirs   bool
	setRetries       int
	setRetryWait     int
	setVersioning    bool
	setNoVersioning  bool
	setRetentionDays int
	setMaxVersions   int
)

var settingsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Update global settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := fetchSettings()
		if err != nil {
			return err
		}

		if setMode != "" {
			settings.Mode = model.CopyMode(strings.ToUpper(setMode))
		}
		if setEmptyDirs {
			settings.IncludeEmptyDirs = true
		}
		if setNoEmptyDirs {
			settings.IncludeEmptyDirs = false
		}
		if cmd.Flags().Changed("retries") {
			settings.RetryCount = setRetries
		}
		if cmd.Flags().Changed("retry-wait") {
			settings.RetryWaitSec = setRetryWait
		}
		if setVersioning {
			settings.Versioning = true
		}
		if setNoVersioning {
			settings.Versioning = false
		}
		if cmd.Flags().Changed("retention-days") {
			settings.RetentionDays = setRetentionDays
		}
		if cmd.Flags().Changed("max-versions") {
			settings.MaxVersions = setMaxVersions
		}

		body, _ := json.Marshal(settings)
		req, _ := http.NewRequest(http.MethodPut, daemonURL("/settings"), bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return fmt.Errorf("daemon not running: %w", err)
		}

		defer func(Body io.ReadCloser) {
			_ = Body.Close()
		}(resp.Body)

		if resp.StatusCode != http.StatusOK {
			return decodeError(resp.Body)
		}

		fmt.Println("settings updated")
		return nil
	},
}

func fetchSettings() (model.Settings, error) {
	var settings model.Settings

	resp, err := http.Get(daemonURL("/settings"))
	if err != nil {
		return settings, fmt.Errorf("daemon not running: %w", err)
	}

	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)

	if err := json.NewDecoder(resp.Body).Decode(&settings); err != nil {
		return settings, fmt.Errorf("failed to decode settings: %w", err)
	}

	return settings, nil
}

func init() {
	settingsSetCmd.Flags().StringVar(&setMode, "mode", "", "copy mode: copy, mirror or purge")
	settingsSetCmd.Flags().BoolVar(&setEmptyDirs, "empty-dirs", false, "copy empty subdirectories")
	settingsSetCmd.Flags().BoolVar(&setNoEmptyDirs, "no-empty-dirs", false, "skip empty subdirectories")
	settingsSetCmd.Flags().IntVar(&setRetries, "retries", 0, "copy tool retry count")
	settingsSetCmd.Flags().IntVar(&setRetryWait, "retry-wait", 0, "seconds between retries")
	settingsSetCmd.Flags().BoolVar(&setVersioning, "versioning", false, "enable pre-copy versioning")
	settingsSetCmd.Flags().BoolVar(&setNoVersioning, "no-versioning", false, "disable pre-copy versioning")
	settingsSetCmd.Flags().IntVar(&setRetentionDays, "retention-days", 0, "days to keep versions, 0 keeps forever")
	settingsSetCmd.Flags().IntVar(&setMaxVersions, "max-versions", 0, "versions to keep per file, 0 keeps all")

	settingsCmd.AddCommand(settingsShowCmd, settingsSetCmd)
	rootCmd.AddCommand(settingsCmd)
}
