package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"warden/internal/api"
	"warden/internal/review"
)

func newReviewCommand(ctx *commandContext) *cobra.Command {
	reviewCmd := &cobra.Command{
		Use:   "review",
		Short: "List and resolve operator review cases",
	}

	var filter review.Filter
	var listJSON bool
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List review cases (open only unless --all)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				cases, err := client.Reviews(cmd.Context(), filter)
				if err != nil {
					return err
				}
				if listJSON {
					return writeJSON(cmd, cases)
				}
				out := cmd.OutOrStdout()
				if len(cases) == 0 {
					fmt.Fprintln(out, "No review cases")
					return nil
				}
				fmt.Fprint(out, renderTable(
					[]string{"Case", "Community", "User", "Reason", "Extracted", "Opened", "Resolution"},
					buildCaseRows(cases),
					nil,
				))
				return nil
			})
		},
	}
	listCmd.Flags().StringVar(&filter.CommunityID, "community", "", "Only cases for this community")
	listCmd.Flags().StringVar(&filter.UserID, "user", "", "Only cases for this user")
	listCmd.Flags().BoolVar(&filter.IncludeResolved, "all", false, "Include resolved cases")
	addJSONFlag(listCmd, &listJSON)

	var actor, resolution string
	resolveCmd := &cobra.Command{
		Use:   "resolve CASE_ID",
		Short: "Close a review case",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				c, err := client.ResolveReview(cmd.Context(), args[0], operatorName(actor), resolution)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Resolved case %s by %s\n", c.ID, c.ResolvedBy)
				return nil
			})
		},
	}
	resolveCmd.Flags().StringVar(&actor, "actor", "", "Operator recorded on the case (defaults to $USER)")
	resolveCmd.Flags().StringVar(&resolution, "note", "reviewed", "Resolution note")

	reviewCmd.AddCommand(listCmd, resolveCmd)
	return reviewCmd
}

func buildCaseRows(cases []*review.Case) [][]string {
	rows := make([][]string, 0, len(cases))
	for _, c := range cases {
		resolution := "open"
		if !c.ResolvedAt.IsZero() {
			resolution = fmt.Sprintf("%s (%s)", c.Resolution, c.ResolvedBy)
		}
		rows = append(rows, []string{
			c.ID,
			c.CommunityID,
			c.UserID,
			c.Reason,
			c.ExtractedID,
			humanize.Time(c.CreatedAt),
			resolution,
		})
	}
	return rows
}
