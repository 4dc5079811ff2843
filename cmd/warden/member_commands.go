package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"warden/internal/api"
)

func newMemberCommand(ctx *commandContext) *cobra.Command {
	memberCmd := &cobra.Command{
		Use:   "member",
		Short: "Relay membership events from the platform",
	}

	memberCmd.AddCommand(
		newMemberEventCommand(ctx, "join", "Record that a member joined a community", (*api.Client).MemberJoined),
		newMemberEventCommand(ctx, "leave", "Record that a member left a community", (*api.Client).MemberLeft),
	)
	return memberCmd
}

type memberEventFunc func(*api.Client, context.Context, string, string) (api.MemberEventResponse, error)

func newMemberEventCommand(ctx *commandContext, use, short string, send memberEventFunc) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   use + " COMMUNITY USER",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				resp, err := send(client, cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s/%s active: %s\n", args[0], args[1], yesNo(resp.Active))
				if resp.Changed {
					fmt.Fprintf(out, "Ledger state is now %s\n", resp.Ledger.State)
				}
				return nil
			})
		},
	}
	addJSONFlag(cmd, &asJSON)
	return cmd
}
