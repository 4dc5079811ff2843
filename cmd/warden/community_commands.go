package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"warden/internal/api"
	"warden/internal/community"
)

func newCommunityCommand(ctx *commandContext) *cobra.Command {
	communityCmd := &cobra.Command{
		Use:   "community",
		Short: "Show and change per-community verification settings",
	}

	var showJSON bool
	showCmd := &cobra.Command{
		Use:   "show [COMMUNITY]",
		Short: "Show settings for one community, or all of them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				var list []*community.Settings
				if len(args) == 1 {
					settings, err := client.Community(cmd.Context(), args[0])
					if err != nil {
						if api.IsNotFound(err) {
							return fmt.Errorf("community %s is not configured", args[0])
						}
						return err
					}
					list = append(list, settings)
				} else {
					all, err := client.Communities(cmd.Context())
					if err != nil {
						return err
					}
					list = all
				}
				if showJSON {
					return writeJSON(cmd, list)
				}
				out := cmd.OutOrStdout()
				if len(list) == 0 {
					fmt.Fprintln(out, "No communities configured")
					return nil
				}
				fmt.Fprint(out, renderTable(
					[]string{"Community", "Privilege", "Review channel", "Enabled", "Ready"},
					buildCommunityRows(list),
					nil,
				))
				return nil
			})
		},
	}
	addJSONFlag(showCmd, &showJSON)

	var privilege, channel string
	var enabled bool
	setCmd := &cobra.Command{
		Use:   "set COMMUNITY",
		Short: "Update settings for a community",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var update community.Update
			flags := cmd.Flags()
			if flags.Changed("privilege") {
				update.PrivilegeID = &privilege
			}
			if flags.Changed("review-channel") {
				update.ReviewChannelID = &channel
			}
			if flags.Changed("enabled") {
				update.Enabled = &enabled
			}
			if update.PrivilegeID == nil && update.ReviewChannelID == nil && update.Enabled == nil {
				return errors.New("nothing to update; pass --privilege, --review-channel or --enabled")
			}
			return ctx.withClient(func(client *api.Client) error {
				settings, err := client.UpdateCommunity(cmd.Context(), args[0], update)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprint(out, renderTable(
					[]string{"Community", "Privilege", "Review channel", "Enabled", "Ready"},
					buildCommunityRows([]*community.Settings{settings}),
					nil,
				))
				if !settings.Configured() {
					fmt.Fprintln(out, "Submissions are rejected until the community is enabled with a privilege id")
				}
				return nil
			})
		},
	}
	setCmd.Flags().StringVar(&privilege, "privilege", "", "Privilege (role) granted on successful verification")
	setCmd.Flags().StringVar(&channel, "review-channel", "", "Channel that receives review cases")
	setCmd.Flags().BoolVar(&enabled, "enabled", true, "Enable or disable verification")

	communityCmd.AddCommand(showCmd, setCmd)
	return communityCmd
}

func buildCommunityRows(list []*community.Settings) [][]string {
	rows := make([][]string, 0, len(list))
	for _, s := range list {
		if s == nil {
			continue
		}
		rows = append(rows, []string{
			s.CommunityID,
			s.PrivilegeID,
			s.ReviewChannelID,
			yesNo(s.Enabled),
			yesNo(s.Configured()),
		})
	}
	return rows
}
