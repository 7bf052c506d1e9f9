package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/benjamin-macmichael/RobocopyManager/internal/model"
	"github.com/spf13/cobra"
)

var (
	historyN   int
	historyJob uint
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View run history",
	RunE: func(cmd *cobra.Command, args []string) error {
		url := fmt.Sprintf("%s?n=%d", daemonURL("/history"), historyN)
		if historyJob != 0 {
			url = fmt.Sprintf("%s&job=%d", url, historyJob)
		}

		resp, err := http.Get(url)
		if err != nil {
			return fmt.Errorf("daemon not running: %w", err)
		}

		defer func(Body io.ReadCloser) {
			_ = Body.Close()
		}(resp.Body)

		var runs []model.RunHistory
		if err := json.NewDecoder(resp.Body).Decode(&runs); err != nil {
			return err
		}

		if len(runs) == 0 {
			fmt.Println("no history yet")
			return nil
		}

		for _, r := range runs {
			status := "✓"
			if r.Status != model.JobStatusSuccess {
				status = "✗"
			}

			fmt.Printf("%s [%s] job=%d %-16s %-9s exit=%d %s\n",
				status,
				r.FinishedAt.Format("2006-01-02 15:04:05"),
				r.JobID,
				r.JobName,
				r.Trigger,
				r.ExitCode,
				r.Status,
			)
		}

		return nil
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyN, "n", 20, "number of history entries to show")
	historyCmd.Flags().UintVar(&historyJob, "job", 0, "only show runs of this job")
	rootCmd.AddCommand(historyCmd)
}
