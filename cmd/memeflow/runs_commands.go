package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"memeflow/internal/runs"
)

const stampLayout = "2006-01-02 15:04:05"

func newRunsCommand(ctx *commandContext) *cobra.Command {
	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect stored runs",
	}

	runsCmd.AddCommand(newRunsListCommand(ctx))
	runsCmd.AddCommand(newRunsShowCommand(ctx))

	return runsCmd
}

func newRunsListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List runs in the output directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openRuns(cmd, "")
			if err != nil {
				return err
			}
			defer store.Close()

			list, err := store.List(cmdContext(cmd))
			if err != nil {
				return err
			}
			if asJSON {
				if list == nil {
					list = []runs.Run{}
				}
				return writeJSON(cmd, list)
			}

			rows := make([][]string, 0, len(list))
			for _, run := range list {
				rows = append(rows, []string{
					run.ID,
					run.CreatedAt.Local().Format(stampLayout),
					run.UpdatedAt.Local().Format(stampLayout),
					flowSummary(run.Flows),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Created", "Updated", "Flows"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print runs as JSON")
	return cmd
}

func newRunsShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the state a run has accumulated",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			if err := runs.ValidateID(id); err != nil {
				return err
			}
			store, err := ctx.openRuns(cmd, "")
			if err != nil {
				return err
			}
			defer store.Close()

			snapshot, err := store.Load(cmdContext(cmd), id)
			if err != nil {
				return err
			}
			if asJSON {
				data, err := runs.MarshalSnapshot(snapshot)
				if err != nil {
					return err
				}
				return writeRaw(cmd, data)
			}
			printSnapshot(cmd, store, snapshot)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full snapshot as JSON")
	return cmd
}

func printSnapshot(cmd *cobra.Command, store *runs.Store, snapshot runs.Snapshot) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run:       %s\n", snapshot.RunID)
	fmt.Fprintf(out, "Created:   %s\n", snapshot.CreatedAt.Local().Format(stampLayout))
	fmt.Fprintf(out, "Directory: %s\n", store.RunDir(snapshot.RunID))

	rows := make([][]string, 0, len(snapshot.Flows))
	for _, record := range snapshot.Flows {
		finished := "-"
		if record.FinishedAt != nil {
			finished = record.FinishedAt.Local().Format(stampLayout)
		}
		detail := record.LastNode
		if record.Error != nil {
			detail = fmt.Sprintf("%s: %s (%s)", record.LastNode, record.Error.Message, record.Error.Kind)
		}
		rows = append(rows, []string{
			record.Name,
			string(record.Status),
			record.StartedAt.Local().Format(stampLayout),
			finished,
			detail,
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Flow", "Status", "Started", "Finished", "Last node"},
		rows,
		nil,
	))

	for _, name := range snapshot.FlowNames() {
		namespace := snapshot.Namespace(name)
		keys := make([]string, 0, len(namespace))
		for key := range namespace {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		fmt.Fprintf(out, "%s: %s\n", name, strings.Join(keys, ", "))
	}
	if len(snapshot.Config) > 0 {
		keys := make([]string, 0, len(snapshot.Config))
		for key := range snapshot.Config {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		fmt.Fprintln(out, "Options:")
		for _, key := range keys {
			fmt.Fprintf(out, "  %s = %s\n", key, snapshot.Config[key].String())
		}
	}
}

func flowSummary(records []runs.FlowRecord) string {
	if len(records) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(records))
	for _, record := range records {
		parts = append(parts, fmt.Sprintf("%s:%s", record.Name, record.Status))
	}
	return strings.Join(parts, " ")
}
