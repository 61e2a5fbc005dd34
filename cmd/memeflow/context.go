package main

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"memeflow/internal/cache"
	"memeflow/internal/config"
	"memeflow/internal/flowconfig"
	"memeflow/internal/logging"
	"memeflow/internal/metrics"
	"memeflow/internal/runs"
	"memeflow/internal/services/imagegen"
	"memeflow/internal/services/llm"
	"memeflow/internal/workflow"
)

// depsFactory builds the collaborators flows run over.
type depsFactory func(cfg *config.Config, store *cache.Store) workflow.Deps

func liveDeps(cfg *config.Config, store *cache.Store) workflow.Deps {
	return workflow.Deps{
		LLM:    llm.NewClient(llm.ConfigFrom(cfg)),
		Images: imagegen.NewClient(imagegen.ConfigFrom(cfg)),
		Cache:  store,
	}
}

type commandContext struct {
	configFlag *string
	newDeps    depsFactory

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger

	metrics *metrics.Metrics
}

func newCommandContext(configFlag *string, deps depsFactory) *commandContext {
	if deps == nil {
		deps = liveDeps
	}
	return &commandContext{
		configFlag: configFlag,
		newDeps:    deps,
		metrics:    metrics.New(),
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// loggerFor returns the process logger. A logger that cannot be built
// falls back to a console logger on stderr.
func (c *commandContext) loggerFor(cmd *cobra.Command) *slog.Logger {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err == nil {
			c.logger, err = logging.NewFromConfig(cfg)
		}
		if err != nil || c.logger == nil {
			c.logger, _ = logging.New(logging.Options{Level: "info", Format: "console", Writer: cmd.ErrOrStderr()})
		}
	})
	return c.logger
}

// openRuns opens the run registry under root, or the configured output
// directory when root is empty.
func (c *commandContext) openRuns(cmd *cobra.Command, root string) (*runs.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(root) == "" {
		root = cfg.Paths.OutputDir
	}
	return runs.Open(root, runs.WithLogger(c.loggerFor(cmd)))
}

func (c *commandContext) openCache(cmd *cobra.Command) (*cache.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return cache.Open(cmdContext(cmd), cfg,
		cache.WithLogger(c.loggerFor(cmd)),
		cache.WithRecorder(c.metrics))
}

// outputRoot resolves output_path from the command's overrides so the run
// registry opens where the flow expects it.
func (c *commandContext) outputRoot(override string) (string, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return "", err
	}
	opts, err := flowconfig.Resolve(flowconfig.DefaultsFrom(cfg), override, nil)
	if err != nil {
		return "", err
	}
	root := opts.String(flowconfig.KeyOutputPath, cfg.Paths.OutputDir)
	return config.ExpandPath(root)
}

// withRunner opens the stores a flow needs and hands fn a runner over them.
func (c *commandContext) withRunner(cmd *cobra.Command, override string, fn func(*workflow.Runner, *runs.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	root, err := c.outputRoot(override)
	if err != nil {
		return err
	}
	store, err := c.openRuns(cmd, root)
	if err != nil {
		return err
	}
	defer store.Close()

	cacheStore, err := c.openCache(cmd)
	if err != nil {
		return err
	}
	defer cacheStore.Close()

	runner := workflow.NewRunner(cfg, store, c.newDeps(cfg, cacheStore),
		workflow.WithRunnerLogger(c.loggerFor(cmd)),
		workflow.WithMetrics(c.metrics))
	return fn(runner, store)
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
