package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"text/tabwriter"

	"github.com/spf13/cobra"

	api "github.com/ateliercolor/presstrack/api/v1alpha1"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := http.NewRequest(http.MethodGet, serverURL+"/api/v1alpha1/jobs", nil)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("server returned %s", resp.Status)
		}

		var jobs []api.Job
		if err := json.NewDecoder(resp.Body).Decode(&jobs); err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tCLIENT\tMACHINE\tSTATUS\tPRIORITY\tCATEGORY")
		for _, job := range jobs {
			status := job.Status
			if !job.StatusKnown {
				status = status + " (?)"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				job.ID, job.ClientName, job.MachineType, status, job.Priority, job.DisplayCategory)
		}
		return w.Flush()
	},
}
