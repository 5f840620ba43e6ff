package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"clipdraft/internal/api"
	"clipdraft/internal/logstream"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool
	var itemID int64

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show daemon logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			var client logstream.Fetcher
			if c, err := api.NewClient(ctx.apiAddress(), cfg.Paths.APIToken); err == nil {
				client = c
			}
			out := cmd.OutOrStdout()
			printed, err := logstream.Stream(cmd.Context(), client, logstream.Options{
				Lines:   lines,
				Follow:  follow,
				ItemID:  itemID,
				LogPath: cfg.LogPath(),
			}, func(evt api.LogEvent) {
				fmt.Fprintln(out, formatLogEvent(evt))
			}, func(line string) {
				fmt.Fprintln(out, line)
			})
			if err != nil {
				return wrapDialError(err, ctx.apiAddress())
			}
			if !printed && !follow {
				fmt.Fprintln(out, "No log entries")
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of recent entries to show (0 for all buffered)")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new entries")
	cmd.Flags().Int64Var(&itemID, "item", 0, "Only show entries for this item id")
	return cmd
}

func formatLogEvent(evt api.LogEvent) string {
	var b strings.Builder
	b.WriteString(displayTime(evt.Timestamp))
	b.WriteString(" ")
	b.WriteString(fmt.Sprintf("%-5s", strings.ToUpper(evt.Level)))
	if evt.Component != "" {
		b.WriteString(" [")
		b.WriteString(evt.Component)
		b.WriteString("]")
	}
	if evt.ItemID != 0 {
		fmt.Fprintf(&b, " item=%d", evt.ItemID)
	}
	if evt.Step != "" {
		b.WriteString(" step=")
		b.WriteString(evt.Step)
	}
	b.WriteString(" ")
	b.WriteString(evt.Message)
	return b.String()
}
