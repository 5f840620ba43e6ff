package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"clipdraft/internal/api"
	"clipdraft/internal/services/gateway"
)

func newGatewayCommand(ctx *commandContext) *cobra.Command {
	gatewayCmd := &cobra.Command{
		Use:   "gateway",
		Short: "Show or change gateway base URLs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showGateways(cmd, ctx)
		},
	}

	gatewayCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the base URL each gateway uses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showGateways(cmd, ctx)
		},
	})

	gatewayCmd.AddCommand(&cobra.Command{
		Use:   "set <name> <url>",
		Short: "Point a gateway at a new base URL (e.g. a fresh tunnel)",
		Long:  "Point a gateway at a new base URL. The change applies to the next call and survives daemon restarts.\nKnown gateways: transcription, research.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return updateGateway(cmd, ctx, args[0], args[1])
		},
	})

	gatewayCmd.AddCommand(&cobra.Command{
		Use:   "reset <name>",
		Short: "Restore a gateway's configured base URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return updateGateway(cmd, ctx, args[0], "")
		},
	})

	return gatewayCmd
}

func showGateways(cmd *cobra.Command, ctx *commandContext) error {
	return ctx.withClient(func(client *api.Client) error {
		urls, err := client.Gateways(cmd.Context())
		if err != nil {
			return err
		}
		printGateways(cmd.OutOrStdout(), urls)
		return nil
	})
}

func updateGateway(cmd *cobra.Command, ctx *commandContext, name, baseURL string) error {
	if !gateway.Known(name) {
		return fmt.Errorf("unknown gateway %q (known: %v)", name, gateway.Names())
	}
	return ctx.withClient(func(client *api.Client) error {
		urls, err := client.SetGateway(cmd.Context(), name, baseURL)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if baseURL == "" {
			fmt.Fprintf(out, "Gateway %s reset to configured default\n", name)
		} else {
			fmt.Fprintf(out, "Gateway %s updated\n", name)
		}
		printGateways(out, urls)
		return nil
	})
}

func printGateways(out io.Writer, urls map[string]string) {
	rows := make([][]string, 0, len(urls))
	for _, name := range gateway.Names() {
		value := urls[name]
		if value == "" {
			value = "(not set)"
		}
		rows = append(rows, []string{name, value})
	}
	fmt.Fprintln(out, renderTable([]string{"Gateway", "Base URL"}, rows, nil))
}
