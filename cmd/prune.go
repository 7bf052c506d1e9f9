package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/spf13/cobra"
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Run version-store retention now",
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := http.Post(daemonURL("/prune"), "application/json", nil)
		if err != nil {
			return fmt.Errorf("daemon not running: %w", err)
		}

		defer func(Body io.ReadCloser) {
			_ = Body.Close()
		}(resp.Body)

		var result struct {
			Stores int `json:"stores"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&result)

		fmt.Printf("pruned %d version stores\n", result.Stores)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pruneCmd)
}
