package preflight

import (
	"fmt"
	"strings"

	"memeflow/internal/animation"
	"memeflow/internal/config"
	"memeflow/internal/flowconfig"
	"memeflow/internal/memeflow"
	"memeflow/internal/services"
	"memeflow/internal/textflow"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the checks that apply to flow. opts is the resolved
// invocation config; path options there win over cfg.Paths.
func RunAll(cfg *config.Config, flow string, opts *flowconfig.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	// Output directory (always checked)
	results = append(results, CheckDirectoryAccess("Output directory", optPath(opts, flowconfig.KeyOutputPath, cfg.Paths.OutputDir)))

	switch flow {
	case textflow.Namespace:
		results = append(results,
			CheckReadableDirectory("Business documents", optPath(opts, flowconfig.KeyBusinessDocsPath, cfg.Paths.BusinessDocumentsDir)),
			CheckAPIKey("Language model", cfg.LLM.APIKey),
			CheckPlatforms(opts),
		)
	case memeflow.Namespace:
		results = append(results,
			CheckReadableDirectory("Brand identity", optPath(opts, flowconfig.KeyBrandIdentityPath, cfg.Paths.BrandIdentityDir)),
			CheckReadableDirectory("Meme templates", optPath(opts, flowconfig.KeyMemeTemplatesPath, cfg.Paths.MemeTemplatesDir)),
			CheckAPIKey("Language model", cfg.LLM.APIKey),
			CheckServiceURL("Image service", cfg.ImageGen.BaseURL),
		)
	case animation.Namespace:
		// A skipped or static animation never calls the image service.
		if !animationSkipped(opts) {
			results = append(results, CheckServiceURL("Image service", cfg.ImageGen.BaseURL))
		}
	}

	return results
}

// Failures folds failed results into one configuration error, or nil.
func Failures(results []Result) error {
	var failed []string
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, fmt.Sprintf("%s: %s", r.Name, r.Detail))
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return services.Wrap(services.ErrConfiguration, "preflight", "check",
		"preflight failed: "+strings.Join(failed, "; "), nil)
}

func optPath(opts *flowconfig.Config, key, fallback string) string {
	if opts == nil {
		return fallback
	}
	return opts.String(key, fallback)
}

func animationSkipped(opts *flowconfig.Config) bool {
	if opts == nil {
		return false
	}
	return opts.Bool(flowconfig.KeySkipAnimation, false) ||
		opts.String(flowconfig.KeyAnimationStyle, "") == animation.StyleNone
}
