package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"warden/internal/api"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect the verification queue",
	}

	var asJSON bool
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the in-flight and pending submissions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				view, err := client.Queue(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, view)
				}
				out := cmd.OutOrStdout()
				if view.InFlight == nil && len(view.Pending) == 0 {
					fmt.Fprintln(out, "Queue is empty")
					return nil
				}
				if job := view.InFlight; job != nil {
					running := time.Duration(view.RunningForSeconds * float64(time.Second)).Round(time.Second)
					fmt.Fprintf(out, "Processing %s (%s/%s) for %s\n", job.SubmissionID, job.CommunityID, job.UserID, running)
				}
				if len(view.Pending) == 0 {
					return nil
				}
				fmt.Fprint(out, renderTable(
					[]string{"#", "Submission", "Community", "User", "Enqueued", "ETA"},
					buildJobRows(view.Pending),
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
				))
				return nil
			})
		},
	}
	addJSONFlag(showCmd, &asJSON)

	queueCmd.AddCommand(showCmd)
	return queueCmd
}

func buildJobRows(jobs []api.JobView) [][]string {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		rows = append(rows, []string{
			strconv.Itoa(job.Position),
			job.SubmissionID,
			job.CommunityID,
			job.UserID,
			relativeTime(job.EnqueuedAt),
			(time.Duration(job.ETASeconds) * time.Second).String(),
		})
	}
	return rows
}

func relativeTime(value string) string {
	if value == "" {
		return ""
	}
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return value
	}
	return humanize.Time(ts)
}
