package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/benjamin-macmichael/RobocopyManager/internal/engine"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "View daemon status",
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := http.Get(daemonURL("/status"))
		if err != nil {
			return fmt.Errorf("daemon not running: %w", err)
		}

		defer func(Body io.ReadCloser) {
			_ = Body.Close()
		}(resp.Body)

		var result struct {
			Running []engine.RunSnapshot `json:"running"`
		}

		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return fmt.Errorf("failed to decode status response: %w", err)
		}

		if len(result.Running) == 0 {
			fmt.Println("no running jobs")
			return nil
		}

		fmt.Printf("%-6s %-16s %-10s %-25s %-25s %s\n",
			"JOB", "NAME", "TRIGGER", "SRC", "DST", "RUNNING FOR")

		for _, snap := range result.Running {
			running := time.Since(snap.StartedAt).Round(time.Second)
			fmt.Printf("%-6d %-16s %-10s %-25s %-25s %s\n",
				snap.JobID, snap.JobName, snap.Trigger, snap.Src, snap.Dst, running)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
