package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"warden/internal/notifications"
	"warden/internal/preflight"
)

func newNotifyCommand(ctx *commandContext) *cobra.Command {
	notifyCmd := &cobra.Command{
		Use:   "notify",
		Short: "Operator notification utilities",
	}

	testCmd := &cobra.Command{
		Use:   "test",
		Short: "Send a test notification through every configured channel",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			channels := preflight.CheckNotificationsFromConfig(cfg)
			if channels.Detail == "Disabled" {
				fmt.Fprintln(out, "Notifications are disabled; set notifications.ntfy_topic or notifications.ses_region")
				return nil
			}
			service, err := notifications.NewService(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("build notifier: %w", err)
			}
			if err := service.Publish(cmd.Context(), notifications.EventTest, nil); err != nil {
				return fmt.Errorf("send test notification: %w", err)
			}
			fmt.Fprintf(out, "Test notification sent (%s)\n", channels.Detail)
			return nil
		},
	}

	notifyCmd.AddCommand(testCmd)
	return notifyCmd
}
