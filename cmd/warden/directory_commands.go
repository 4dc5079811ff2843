package main

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"warden/internal/directory"
	"warden/internal/services"
)

func newDirectoryCommand(ctx *commandContext) *cobra.Command {
	dirCmd := &cobra.Command{
		Use:   "directory",
		Short: "Inspect the identity directory source",
	}

	var asJSON bool
	lookupCmd := &cobra.Command{
		Use:   "lookup ID",
		Short: "Resolve an external id to its canonical name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			id, err := directory.ValidateID(args[0], cfg.Analyzer.MinDigits, cfg.Analyzer.MaxDigits)
			if err != nil {
				return err
			}
			entry, err := directory.NewCSV(cfg.Directory.Path, ctx.cliLogger()).Lookup(cmd.Context(), id)
			if errors.Is(err, services.ErrNotFound) {
				return fmt.Errorf("id %s is not in the directory", id)
			}
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, entry)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", entry.ExternalID, entry.CanonicalName)
			return nil
		},
	}
	addJSONFlag(lookupCmd, &asJSON)

	var statsJSON bool
	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize the directory source file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			stats, err := directory.NewCSV(cfg.Directory.Path, ctx.cliLogger()).Stats()
			if err != nil {
				return err
			}
			if statsJSON {
				return writeJSON(cmd, stats)
			}
			fmt.Fprint(cmd.OutOrStdout(), renderKeyValues([][2]string{
				{"Path", stats.Path},
				{"Rows", humanize.Comma(int64(stats.Rows))},
				{"Entries", humanize.Comma(int64(stats.Entries))},
				{"Non-numeric skipped", humanize.Comma(int64(stats.SkippedNonNumeric))},
				{"Duplicates", humanize.Comma(int64(stats.Duplicates))},
				{"Modified", humanize.Time(stats.ModTime)},
			}))
			return nil
		},
	}
	addJSONFlag(statsCmd, &statsJSON)

	dirCmd.AddCommand(lookupCmd, statsCmd)
	return dirCmd
}
