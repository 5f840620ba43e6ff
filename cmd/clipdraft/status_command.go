package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"clipdraft/internal/api"
	"clipdraft/internal/config"
	"clipdraft/internal/lifecycle"
	"clipdraft/internal/preflight"
	"clipdraft/internal/redisconn"
	"clipdraft/internal/services/gateway"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, queue and dependency status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			var status api.DaemonStatus
			client, err := api.NewClient(ctx.apiAddress(), cfg.Paths.APIToken)
			if err == nil {
				status, err = client.Status(cmd.Context())
			}
			if err != nil {
				// A stopped daemon still gets local checks against the config.
				if !api.IsAPIUnavailable(err) {
					return err
				}
				status = offlineStatus(cmd.Context(), cfg)
			}

			if asJSON {
				return writeJSON(cmd, status)
			}
			printStatus(out, status, colorize)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func offlineStatus(ctx context.Context, cfg *config.Config) api.DaemonStatus {
	gateways := map[string]string{
		gateway.Transcription: cfg.Transcription.BaseURL,
		gateway.Research:      cfg.Research.BaseURL,
	}
	var rdb redis.UniversalClient
	if client, err := redisconn.New(cfg); err == nil && client != nil {
		defer client.Close()
		rdb = client
	}
	return api.DaemonStatus{
		DatabasePath: cfg.DatabasePath(),
		LockFilePath: cfg.LockPath(),
		Workflow:     api.WorkflowStatus{Gateways: gateways},
		Checks:       api.FromPreflight(preflight.RunAll(ctx, cfg, gateways, rdb)),
	}
}

func printStatus(out io.Writer, status api.DaemonStatus, colorize bool) {
	for _, line := range renderSectionHeader("Daemon", colorize) {
		fmt.Fprintln(out, line)
	}
	if status.Running {
		fmt.Fprintln(out, renderStatusLine("Daemon", statusOK, fmt.Sprintf("Running (pid %d)", status.PID), colorize))
	} else {
		fmt.Fprintln(out, renderStatusLine("Daemon", statusError, "Not running", colorize))
	}
	if status.Running {
		wf := status.Workflow
		if wf.Running {
			fmt.Fprintln(out, renderStatusLine("Workflow", statusOK, "Running", colorize))
		} else {
			fmt.Fprintln(out, renderStatusLine("Workflow", statusWarn, "Stopped", colorize))
		}
		queueKind := statusInfo
		if wf.QueueCapacity > 0 && wf.QueueDepth >= wf.QueueCapacity {
			queueKind = statusWarn
		}
		fmt.Fprintln(out, renderStatusLine("Dispatch queue", queueKind, fmt.Sprintf("%d/%d waiting", wf.QueueDepth, wf.QueueCapacity), colorize))
		if wf.LastError != "" {
			fmt.Fprintln(out, renderStatusLine("Last error", statusError, wf.LastError, colorize))
		}
		if wf.LastItem != nil {
			fmt.Fprintln(out, renderStatusLine("Last item", stateKind(wf.LastItem.State),
				fmt.Sprintf("#%d %s", wf.LastItem.ID, stateLabel(wf.LastItem.State)), colorize))
		}
	}
	fmt.Fprintln(out, renderStatusLine("Database", statusInfo, status.DatabasePath, colorize))

	if status.Running {
		fmt.Fprintln(out)
		for _, line := range renderSectionHeader("Items", colorize) {
			fmt.Fprintln(out, line)
		}
		rows := make([][]string, 0, len(lifecycle.AllStates()))
		for _, state := range lifecycle.AllStates() {
			rows = append(rows, []string{stateLabel(string(state)), strconv.Itoa(status.Workflow.Counts[string(state)])})
		}
		fmt.Fprintln(out, renderTable([]string{"State", "Items"}, rows, []columnAlignment{alignLeft, alignRight}))
	}

	fmt.Fprintln(out)
	for _, line := range renderSectionHeader("Gateways", colorize) {
		fmt.Fprintln(out, line)
	}
	printGateways(out, status.Workflow.Gateways)

	if len(status.Checks) > 0 {
		fmt.Fprintln(out)
		for _, line := range renderSectionHeader("Checks", colorize) {
			fmt.Fprintln(out, line)
		}
		for _, check := range status.Checks {
			kind := statusOK
			if !check.Passed {
				kind = statusError
			}
			fmt.Fprintln(out, renderStatusLine(check.Name, kind, check.Detail, colorize))
		}
	}
}
