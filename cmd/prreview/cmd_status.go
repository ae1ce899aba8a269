package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var statusServerAddr string

var statusCmd = &cobra.Command{
	Use:   "status <task-id>",
	Short: "Poll getStatus and print a colorized table (CLI convenience over spec §6)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		taskID := args[0]
		resp, err := http.Get(fmt.Sprintf("%s/analyses/%s/status", statusServerAddr, taskID))
		if err != nil {
			return fmt.Errorf("querying submission api: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("submission api returned %s", resp.Status)
		}

		var body struct {
			TaskID    string    `json:"task_id"`
			Status    string    `json:"status"`
			Progress  int       `json:"progress"`
			CreatedAt time.Time `json:"created_at"`
			UpdatedAt time.Time `json:"updated_at"`
			Stage     string    `json:"stage"`
			Error     string    `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return fmt.Errorf("decoding status response: %w", err)
		}

		statusColor := color.New(color.FgGreen)
		switch body.Status {
		case "failed", "cancelled":
			statusColor = color.New(color.FgRed)
		case "processing", "retry":
			statusColor = color.New(color.FgYellow)
		}

		t := table.NewWriter()
		t.SetOutputMirror(cmd.OutOrStdout())
		t.AppendHeader(table.Row{"Field", "Value"})
		t.AppendRows([]table.Row{
			{"Task ID", body.TaskID},
			{"Status", statusColor.Sprint(body.Status)},
			{"Stage", body.Stage},
			{"Progress", fmt.Sprintf("%d%%", body.Progress)},
			{"Updated", humanize.Time(body.UpdatedAt)},
		})
		if body.Error != "" {
			t.AppendRow(table.Row{"Error", color.New(color.FgRed).Sprint(body.Error)})
		}
		t.Render()
		return nil
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusServerAddr, "server", "http://localhost:8080", "submission API base URL")
}
