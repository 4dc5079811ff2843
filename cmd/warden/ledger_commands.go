package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"warden/internal/api"
)

func newLedgerCommand(ctx *commandContext) *cobra.Command {
	ledgerCmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect and reset member attempt records",
	}

	var showJSON bool
	showCmd := &cobra.Command{
		Use:   "show COMMUNITY USER",
		Short: "Show a member's attempt record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				view, err := client.Ledger(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				if showJSON {
					return writeJSON(cmd, view)
				}
				fmt.Fprint(cmd.OutOrStdout(), renderKeyValues(ledgerPairs(view)))
				return nil
			})
		},
	}
	addJSONFlag(showCmd, &showJSON)

	var lockedJSON bool
	lockedCmd := &cobra.Command{
		Use:   "locked COMMUNITY",
		Short: "List members awaiting an administrator",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.Locked(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if lockedJSON {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				if len(resp.Records) == 0 {
					fmt.Fprintf(out, "No locked members in %s\n", resp.CommunityID)
					return nil
				}
				rows := make([][]string, 0, len(resp.Records))
				for _, rec := range resp.Records {
					rows = append(rows, []string{
						rec.UserID,
						rec.LockState,
						strconv.Itoa(rec.AttemptCount),
						rec.LastReason,
						relativeTime(rec.LockedAt),
					})
				}
				fmt.Fprint(out, renderTable(
					[]string{"User", "Lock", "Attempts", "Last reason", "Locked"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight},
				))
				return nil
			})
		},
	}
	addJSONFlag(lockedCmd, &lockedJSON)

	var actor string
	unlockCmd := &cobra.Command{
		Use:   "unlock COMMUNITY USER",
		Short: "Reset a member's attempts and resolve their open review cases",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.Unlock(cmd.Context(), args[0], args[1], operatorName(actor))
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Unlocked %s/%s (was %s)\n", args[0], args[1], resp.Previous)
				if resp.ResolvedCases > 0 {
					fmt.Fprintf(out, "Resolved %d open review case(s)\n", resp.ResolvedCases)
				}
				return nil
			})
		},
	}
	unlockCmd.Flags().StringVar(&actor, "actor", "", "Operator recorded on the unlock (defaults to $USER)")

	ledgerCmd.AddCommand(showCmd, lockedCmd, unlockCmd)
	return ledgerCmd
}

func ledgerPairs(view api.LedgerView) [][2]string {
	pairs := [][2]string{
		{"Community", view.CommunityID},
		{"User", view.UserID},
		{"State", view.State},
		{"Attempts", fmt.Sprintf("%d of %d (%d remaining)", view.AttemptCount, view.MaxAttempts, view.Remaining)},
	}
	if view.LockState != "" {
		pairs = append(pairs, [2]string{"Lock", view.LockState})
	}
	if view.LastReason != "" {
		pairs = append(pairs, [2]string{"Last reason", view.LastReason})
	}
	if view.LockedAt != "" {
		pairs = append(pairs, [2]string{"Locked", relativeTime(view.LockedAt)})
	}
	if view.UpdatedAt != "" {
		pairs = append(pairs, [2]string{"Updated", relativeTime(view.UpdatedAt)})
	}
	return pairs
}
