package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/spf13/cobra"
)

var runAllCmd = &cobra.Command{
	Use:   "run-all",
	Short: "Run every enabled job now",
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := http.Post(daemonURL("/jobs/run-all"), "application/json", nil)
		if err != nil {
			return fmt.Errorf("daemon not running: %w", err)
		}

		defer func(Body io.ReadCloser) {
			_ = Body.Close()
		}(resp.Body)

		var result struct {
			Started int `json:"started"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&result)

		fmt.Printf("%d jobs started\n", result.Started)
		return nil
	},
}

var cancelAllCmd = &cobra.Command{
	Use:   "cancel-all",
	Short: "Cancel every running job",
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := http.Post(daemonURL("/jobs/cancel-all"), "application/json", nil)
		if err != nil {
			return fmt.Errorf("daemon not running: %w", err)
		}

		defer func(Body io.ReadCloser) {
			_ = Body.Close()
		}(resp.Body)

		fmt.Println("all jobs canceled")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runAllCmd, cancelAllCmd)
}
