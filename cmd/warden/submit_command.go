package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"warden/internal/api"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "submit COMMUNITY USER IMAGE_REF",
		Short: "Submit evidence on behalf of a member",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.Submit(cmd.Context(), api.SubmitRequest{
					CommunityID: args[0],
					UserID:      args[1],
					ImageRef:    args[2],
				})
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				if !resp.Accepted {
					fmt.Fprintf(out, "Rejected (%s): %s\n", resp.Reason, resp.Message)
					return nil
				}
				fmt.Fprintf(out, "Queued %s at position %d\n", resp.SubmissionID, resp.Position)
				fmt.Fprintln(out, resp.Message)
				return nil
			})
		},
	}
	addJSONFlag(cmd, &asJSON)
	return cmd
}
