package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"memeflow/internal/cache"
	"memeflow/internal/runs"
	"memeflow/internal/services"
	"memeflow/internal/workflow"
)

type runFlags struct {
	runID    string
	override string
	json     bool
}

func (f *runFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.runID, "run-id", "", "Continue an existing run instead of creating one")
	cmd.Flags().StringVar(&f.override, "set", "", "Option overrides as key=value pairs separated by commas")
	cmd.Flags().BoolVar(&f.json, "json", false, "Print results as JSON")
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var flags runFlags
	var flow string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one flow (text, meme or animation)",
		Example: "  memeflow run --flow text --set platforms=twitter,linkedin\n" +
			"  memeflow run --flow meme --run-id run_20260101_120000_1a2b3c4d",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRunner(cmd, flags.override, func(runner *workflow.Runner, store *runs.Store) error {
				result, err := runner.Run(cmdContext(cmd), workflow.Request{
					Flow:     flow,
					RunID:    flags.runID,
					Override: flags.override,
				})
				var results []workflow.Result
				if result.RunID != "" {
					results = append(results, result)
				}
				if printErr := printResults(cmd, store, results, flags.json); printErr != nil && err == nil {
					err = printErr
				}
				return err
			})
		},
	}

	cmd.Flags().StringVarP(&flow, "flow", "f", "", "Flow to run: "+strings.Join(workflow.FlowNames, ", "))
	_ = cmd.MarkFlagRequired("flow")
	flags.register(cmd)
	return cmd
}

func newAllCommand(ctx *commandContext) *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "all",
		Short: "Run text, meme and animation in sequence on one run",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRunner(cmd, flags.override, func(runner *workflow.Runner, store *runs.Store) error {
				results, err := runner.RunAll(cmdContext(cmd), workflow.Request{
					RunID:    flags.runID,
					Override: flags.override,
				})
				if printErr := printResults(cmd, store, results, flags.json); printErr != nil && err == nil {
					err = printErr
				}
				return err
			})
		},
	}

	flags.register(cmd)
	return cmd
}

type nodeView struct {
	Node       string                 `json:"node"`
	Status     string                 `json:"status"`
	Attempts   int                    `json:"attempts"`
	DurationMS int64                  `json:"duration_ms"`
	Cache      []string               `json:"cache,omitempty"`
	Notes      map[string]string      `json:"notes,omitempty"`
	Error      *services.ErrorDetails `json:"error,omitempty"`
}

type resultView struct {
	RunID      string     `json:"run_id"`
	Flow       string     `json:"flow"`
	State      string     `json:"state"`
	DurationMS int64      `json:"duration_ms"`
	Snapshot   string     `json:"snapshot,omitempty"`
	Nodes      []nodeView `json:"nodes"`
}

func viewResult(store *runs.Store, result workflow.Result) resultView {
	view := resultView{
		RunID:      result.RunID,
		Flow:       result.Flow,
		State:      string(result.State),
		DurationMS: result.Duration.Milliseconds(),
		Nodes:      make([]nodeView, 0, len(result.Nodes)),
	}
	if result.Snapshot.RunID != "" {
		view.Snapshot = store.SnapshotPath(result.RunID)
	}
	for _, node := range result.Nodes {
		view.Nodes = append(view.Nodes, nodeView{
			Node:       node.Node,
			Status:     string(node.Status),
			Attempts:   node.Attempts,
			DurationMS: node.Duration.Milliseconds(),
			Cache:      cacheLabels(node.Cache),
			Notes:      node.Notes,
			Error:      node.Error,
		})
	}
	return view
}

// printResults renders results even when the flow failed, so the caller
// sees which node stopped it.
func printResults(cmd *cobra.Command, store *runs.Store, results []workflow.Result, asJSON bool) error {
	views := make([]resultView, 0, len(results))
	for _, result := range results {
		views = append(views, viewResult(store, result))
	}
	if asJSON {
		return writeJSON(cmd, views)
	}
	out := cmd.OutOrStdout()
	for i, view := range views {
		if i > 0 {
			fmt.Fprintln(out)
		}
		printResultView(out, view)
	}
	return nil
}

func printResultView(out io.Writer, view resultView) {
	fmt.Fprintf(out, "Flow %s on %s: %s in %s\n", view.Flow, view.RunID, view.State, formatDuration(time.Duration(view.DurationMS)*time.Millisecond))
	rows := make([][]string, 0, len(view.Nodes))
	for _, node := range view.Nodes {
		status := node.Status
		if node.Error != nil {
			status = fmt.Sprintf("%s (%s)", node.Status, node.Error.Kind)
		}
		rows = append(rows, []string{
			node.Node,
			status,
			strconv.Itoa(node.Attempts),
			formatDuration(time.Duration(node.DurationMS) * time.Millisecond),
			strings.Join(node.Cache, ", "),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Node", "Status", "Attempts", "Duration", "Cache"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft},
	))
	for _, node := range view.Nodes {
		if node.Error != nil {
			fmt.Fprintf(out, "Failed at %s: %s\n", node.Node, node.Error.Message)
		}
	}
	if view.Snapshot != "" {
		fmt.Fprintf(out, "Snapshot: %s\n", view.Snapshot)
	}
}

func cacheLabels(outcomes []cache.Outcome) []string {
	if len(outcomes) == 0 {
		return nil
	}
	labels := make([]string, 0, len(outcomes))
	for _, outcome := range outcomes {
		labels = append(labels, fmt.Sprintf("%s:%s", outcome.Key, outcome.Reason))
	}
	return labels
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.Round(100 * time.Millisecond).String()
}
