package main

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"memeflow/internal/config"
	"memeflow/internal/flowconfig"
	"memeflow/internal/preflight"
	"memeflow/internal/runs"
	"memeflow/internal/services"
	"memeflow/internal/workflow"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigValidateCommand(ctx))
	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigShowCommand(ctx))
	configCmd.AddCommand(newConfigCheckCommand(ctx))

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			} else {
				expanded, err := config.ExpandPath(target)
				if err != nil {
					return fmt.Errorf("resolve config path: %w", err)
				}
				target = expanded
			}

			dir := filepath.Dir(target)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create config directory %q: %w", dir, err)
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Set llm.api_key (or export LLM_API_KEY) and the input directories before running a flow.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if ctx.configFlag != nil {
				path = strings.TrimSpace(*ctx.configFlag)
			}
			_, resolved, exists, err := config.Load(path)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path: %s\n", resolved)
			if !exists {
				fmt.Fprintln(out, "Config file did not exist; defaults were used")
			}
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	var override string
	var runID string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the option values a flow would run with",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			var inherited map[string]flowconfig.Value
			if id := strings.TrimSpace(runID); id != "" {
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
				inherited = snapshot.Config
			}

			opts, err := flowconfig.Resolve(flowconfig.DefaultsFrom(cfg), override, inherited)
			if err != nil {
				return err
			}
			entries := opts.Entries()
			if asJSON {
				values := make(map[string]flowconfig.Value, len(entries))
				for _, entry := range entries {
					values[entry.Key] = entry.Value
				}
				return writeJSON(cmd, values)
			}

			rows := make([][]string, 0, len(entries))
			for _, entry := range entries {
				source := string(entry.Source)
				if entry.Unknown {
					source += " (unknown)"
				}
				rows = append(rows, []string{entry.Key, entry.Value.String(), source})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Key", "Value", "Source"}, rows, nil))
			return nil
		},
	}

	cmd.Flags().StringVar(&override, "set", "", "Option overrides as key=value pairs separated by commas")
	cmd.Flags().StringVar(&runID, "run-id", "", "Include options stored with an existing run")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print options as JSON")
	return cmd
}

func newConfigCheckCommand(ctx *commandContext) *cobra.Command {
	var flow string
	var override string
	var probe bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check that flows are ready to run",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			opts, err := flowconfig.Resolve(flowconfig.DefaultsFrom(cfg), override, nil)
			if err != nil {
				return err
			}

			flows := workflow.FlowNames
			if name := strings.ToLower(strings.TrimSpace(flow)); name != "" {
				if !slices.Contains(workflow.FlowNames, name) {
					return services.UserInput("cli", "config check",
						fmt.Sprintf("unknown flow %q (expected one of %s)", flow, strings.Join(workflow.FlowNames, ", ")))
				}
				flows = []string{name}
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			var all []preflight.Result
			for i, name := range flows {
				if i > 0 {
					fmt.Fprintln(out)
				}
				results := preflight.RunAll(cfg, name, opts)
				all = append(all, results...)
				for _, line := range renderSectionHeader(name+" flow", colorize) {
					fmt.Fprintln(out, line)
				}
				lines, _ := checkLines(results, colorize)
				for _, line := range lines {
					fmt.Fprintln(out, line)
				}
			}
			fmt.Fprintln(out)
			if probe {
				result := preflight.CheckImageService(cmdContext(cmd), cfg.ImageGen.BaseURL, cfg.ImageGen.APIKey)
				all = append(all, result)
				lines, _ := checkLines([]preflight.Result{result}, colorize)
				for _, line := range lines {
					fmt.Fprintln(out, line)
				}
			} else {
				fmt.Fprintln(out, renderStatusLine("Image service probe", statusInfo, "skipped (pass --probe)", colorize))
			}
			for _, line := range optionLines(opts, colorize) {
				fmt.Fprintln(out, line)
			}
			return preflight.Failures(all)
		},
	}

	cmd.Flags().StringVarP(&flow, "flow", "f", "", "Check a single flow")
	cmd.Flags().StringVar(&override, "set", "", "Option overrides as key=value pairs separated by commas")
	cmd.Flags().BoolVar(&probe, "probe", false, "Also contact the image service health endpoint")
	return cmd
}
