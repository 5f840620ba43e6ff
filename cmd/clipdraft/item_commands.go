package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"clipdraft/internal/api"
)

func newItemCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newAddCommand(ctx),
		newListCommand(ctx),
		newShowCommand(ctx),
		newRetryCommand(ctx),
		newRemoveCommand(ctx),
	}
}

func newAddCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "add <url>...",
		Short: "Submit video links for transcription and drafting",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				out := cmd.OutOrStdout()
				for _, raw := range args {
					id, err := client.Ingest(cmd.Context(), raw)
					if err != nil {
						return fmt.Errorf("add %s: %w", raw, err)
					}
					fmt.Fprintf(out, "Added item %d: %s\n", id, strings.TrimSpace(raw))
				}
				return nil
			})
		},
	}
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var states []string
	var asJSON bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List items, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				items, err := client.List(cmd.Context(), states...)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, items)
				}
				out := cmd.OutOrStdout()
				if len(items) == 0 {
					fmt.Fprintln(out, "No items")
					return nil
				}
				fmt.Fprint(out, renderItemTable(items))
				fmt.Fprintln(out)
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVarP(&states, "state", "s", nil, "Only show items in these states (repeatable)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	var withHistory bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show an item's transcript, research and drafts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseItemID(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *api.Client) error {
				item, err := client.Get(cmd.Context(), id)
				if err != nil {
					return err
				}
				var history []api.Transition
				if withHistory {
					if history, err = client.History(cmd.Context(), id); err != nil {
						return err
					}
				}
				if asJSON {
					if withHistory {
						return writeJSON(cmd, struct {
							Item    api.Item         `json:"item"`
							History []api.Transition `json:"history"`
						}{Item: item, History: history})
					}
					return writeJSON(cmd, item)
				}
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				for _, line := range renderItemDetail(item, colorize) {
					fmt.Fprintln(out, line)
				}
				if withHistory {
					fmt.Fprintln(out)
					for _, line := range renderSectionHeader("History", colorize) {
						fmt.Fprintln(out, line)
					}
					fmt.Fprint(out, renderHistoryTable(history))
					fmt.Fprintln(out)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&withHistory, "history", false, "Include the item's state history")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <id>...",
		Short: "Retry failed items from the step that failed",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseItemIDs(args)
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *api.Client) error {
				out := cmd.OutOrStdout()
				for _, id := range ids {
					item, err := client.Retry(cmd.Context(), id)
					if err != nil {
						return fmt.Errorf("retry item %d: %w", id, err)
					}
					fmt.Fprintf(out, "Item %d: %s\n", item.ID, stateLabel(item.State))
				}
				return nil
			})
		},
	}
}

func newRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <id>...",
		Aliases: []string{"rm"},
		Short:   "Delete items that are not being processed",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseItemIDs(args)
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *api.Client) error {
				out := cmd.OutOrStdout()
				for _, id := range ids {
					if err := client.Remove(cmd.Context(), id); err != nil {
						return fmt.Errorf("remove item %d: %w", id, err)
					}
					fmt.Fprintf(out, "Removed item %d\n", id)
				}
				return nil
			})
		},
	}
}

func parseItemID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid item id %q", raw)
	}
	return id, nil
}

func parseItemIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := parseItemID(arg)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
