package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/benjamin-macmichael/RobocopyManager/internal/model"
	"github.com/spf13/cobra"
)

var jobCmd = &cobra.Command{
	Use:   "job",
	Short: "Manage jobs",
}

var (
	jobName     string
	jobThreads  int
	jobSchedule string
	jobExclude  string
	jobEnable   bool
	jobDisable  bool
	jobArchive  bool
	jobNoArch   bool
)

var jobListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := http.Get(daemonURL("/jobs"))
		if err != nil {
			return fmt.Errorf("daemon not running: %w", err)
		}

		defer func(Body io.ReadCloser) {
			_ = Body.Close()
		}(resp.Body)

		var result struct {
			Jobs    []model.Job                `json:"jobs"`
			Running map[string]json.RawMessage `json:"running"`
		}

		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}

		if len(result.Jobs) == 0 {
			fmt.Println("no jobs configured")
			return nil
		}

		fmt.Printf("%-4s %-16s %-10s %-9s %-25s %-25s %s\n",
			"ID", "NAME", "STATUS", "SCHEDULE", "SRC", "DST", "LAST FINISH")

		for _, j := range result.Jobs {
			schedule := "-"
			if j.ScheduleOn {
				schedule = fmt.Sprintf("%02d:%02d", j.ScheduleHour, j.ScheduleMin)
			}
			if !j.Enabled {
				schedule = "off"
			}

			lastFinish := "-"
			if j.LastFinish != nil {
				lastFinish = j.LastFinish.Format("2006-01-02 15:04:05")
			}

			fmt.Printf("%-4d %-16s %-10s %-9s %-25s %-25s %s\n",
				j.ID, j.Name, j.LastStatus, schedule, j.SrcPath, j.DstPath, lastFinish)
		}

		return nil
	},
}

var jobAddCmd = &cobra.Command{
	Use:   "add [src] [dst]",
	Short: "Add a new job",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := map[string]any{
			"src":        args[0],
			"dst":        args[1],
			"name":       jobName,
			"threads":    jobThreads,
			"exclusions": jobExclude,
		}

		if jobSchedule != "" {
			hour, minute, err := parseSchedule(jobSchedule)
			if err != nil {
				return err
			}
			req["schedule_on"] = true
			req["schedule_hour"] = hour
			req["schedule_min"] = minute
		}

		body, _ := json.Marshal(req)
		resp, err := http.Post(daemonURL("/jobs"), "application/json", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("daemon not running: %w", err)
		}

		defer func(Body io.ReadCloser) {
			_ = Body.Close()
		}(resp.Body)

		if resp.StatusCode != http.StatusCreated {
			return decodeError(resp.Body)
		}

		var job model.Job
		_ = json.NewDecoder(resp.Body).Decode(&job)
		fmt.Printf("job added: id=%d src=%s dst=%s\n", job.ID, args[0], args[1])
		return nil
	},
}

var jobUpdateCmd = &cobra.Command{
	Use:   "update [id]",
	Short: "Update a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := map[string]any{}
		if jobName != "" {
			req["name"] = jobName
		}
		if jobThreads != 0 {
			req["threads"] = jobThreads
		}
		if cmd.Flags().Changed("exclude") {
			req["exclusions"] = jobExclude
		}
		if jobSchedule != "" {
			hour, minute, err := parseSchedule(jobSchedule)
			if err != nil {
				return err
			}
			req["schedule_on"] = true
			req["schedule_hour"] = hour
			req["schedule_min"] = minute
		}
		if jobEnable {
			req["enabled"] = true
		}
		if jobDisable {
			req["enabled"] = false
		}
		if jobArchive {
			req["archive_on"] = true
		}
		if jobNoArch {
			req["archive_on"] = false
		}

		body, _ := json.Marshal(req)
		httpReq, _ := http.NewRequest(http.MethodPut, daemonURL("/jobs/"+args[0]), bytes.NewReader(body))
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := http.DefaultClient.Do(httpReq)
		if err != nil {
			return fmt.Errorf("daemon not running: %w", err)
		}

		defer func(Body io.ReadCloser) {
			_ = Body.Close()
		}(resp.Body)

		if resp.StatusCode != http.StatusOK {
			return decodeError(resp.Body)
		}

		fmt.Printf("job %s updated\n", args[0])
		return nil
	},
}

var jobRemoveCmd = &cobra.Command{
	Use:   "remove [id]",
	Short: "Remove a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, _ := http.NewRequest(http.MethodDelete, daemonURL("/jobs/"+args[0]), nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return fmt.Errorf("daemon not running: %w", err)
		}

		defer func(Body io.ReadCloser) {
			_ = Body.Close()
		}(resp.Body)

		fmt.Printf("job %s removed\n", args[0])
		return nil
	},
}

var jobRunCmd = &cobra.Command{
	Use:   "run [id]",
	Short: "Run a job now",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := http.Post(daemonURL("/jobs/"+args[0]+"/run"), "application/json", nil)
		if err != nil {
			return fmt.Errorf("daemon not running: %w", err)
		}

		defer func(Body io.ReadCloser) {
			_ = Body.Close()
		}(resp.Body)

		if resp.StatusCode != http.StatusAccepted {
			return decodeError(resp.Body)
		}

		fmt.Printf("job %s started\n", args[0])
		return nil
	},
}

var jobCancelCmd = &cobra.Command{
	Use:   "cancel [id]",
	Short: "Cancel a running job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := http.Post(daemonURL("/jobs/"+args[0]+"/cancel"), "application/json", nil)
		if err != nil {
			return fmt.Errorf("daemon not running: %w", err)
		}

		defer func(Body io.ReadCloser) {
			_ = Body.Close()
		}(resp.Body)

		fmt.Printf("job %s canceled\n", args[0])
		return nil
	},
}

func parseSchedule(s string) (int, int, error) {
	var hour, minute int
	if _, err := fmt.Sscanf(s, "%d:%d", &hour, &minute); err != nil {
		return 0, 0, fmt.Errorf("invalid schedule %q, expected HH:MM", s)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid schedule %q, expected HH:MM", s)
	}
	return hour, minute, nil
}

func decodeError(body io.Reader) error {
	var result map[string]string
	_ = json.NewDecoder(body).Decode(&result)
	if msg, ok := result["error"]; ok {
		return fmt.Errorf("%s", msg)
	}
	return fmt.Errorf("request failed")
}

func init() {
	jobAddCmd.Flags().StringVar(&jobName, "name", "", "display name")
	jobAddCmd.Flags().IntVar(&jobThreads, "threads", 8, "copy thread count (1-128)")
	jobAddCmd.Flags().StringVar(&jobSchedule, "at", "", "daily schedule time (HH:MM)")
	jobAddCmd.Flags().StringVar(&jobExclude, "exclude", "", "extra excluded subdirectories (semicolon separated)")

	jobUpdateCmd.Flags().StringVar(&jobName, "name", "", "display name")
	jobUpdateCmd.Flags().IntVar(&jobThreads, "threads", 0, "copy thread count (1-128)")
	jobUpdateCmd.Flags().StringVar(&jobSchedule, "at", "", "daily schedule time (HH:MM)")
	jobUpdateCmd.Flags().StringVar(&jobExclude, "exclude", "", "extra excluded subdirectories (semicolon separated)")
	jobUpdateCmd.Flags().BoolVar(&jobEnable, "enable", false, "enable the job")
	jobUpdateCmd.Flags().BoolVar(&jobDisable, "disable", false, "disable the job")
	jobUpdateCmd.Flags().BoolVar(&jobArchive, "archive", false, "enable pre-copy archiving")
	jobUpdateCmd.Flags().BoolVar(&jobNoArch, "no-archive", false, "disable pre-copy archiving")

	jobCmd.AddCommand(jobListCmd, jobAddCmd, jobUpdateCmd, jobRemoveCmd, jobRunCmd, jobCancelCmd)
	rootCmd.AddCommand(jobCmd)
}
