package memeflow

import (
	"context"
	"net/http"
	"os"
	"strings"

	"memeflow/internal/cache"
	"memeflow/internal/fileutil"
	"memeflow/internal/flowconfig"
	"memeflow/internal/logging"
	"memeflow/internal/services"
	"memeflow/internal/services/llm"
	"memeflow/internal/stage"
)

const imageAnalysisCachePrefix = "image_analysis:"

// ImageAnalysisNode asks the vision model what the selected template shows.
// Results are cached per template and invalidated when the file changes.
type ImageAnalysisNode struct {
	vision Describer
	cache  *cache.Store
}

// NewImageAnalysisNode builds the node.
func NewImageAnalysisNode(vision Describer, store *cache.Store) *ImageAnalysisNode {
	return &ImageAnalysisNode{vision: vision, cache: store}
}

func (n *ImageAnalysisNode) Name() string { return NodeImageAnalysis }

func (n *ImageAnalysisNode) Spec() stage.Spec {
	return stage.Spec{
		Requires: []stage.Key{KeyTemplateSelection},
		Produces: []stage.Key{KeyImageAnalysis},
	}
}

func (n *ImageAnalysisNode) Run(ctx context.Context, in *stage.Input) (*stage.Output, error) {
	var selection TemplateSelection
	if err := in.Decode(KeyTemplateSelection, &selection); err != nil {
		return nil, err
	}
	fingerprint, err := fileutil.HashFiles([]fileutil.DirEntry{{Path: selection.Path, RelPath: selection.RelPath}})
	if err != nil {
		return nil, services.Wrap(services.ErrUserInput, "memeflow", NodeImageAnalysis, "template image is not readable", err)
	}
	key := imageAnalysisCachePrefix + selection.RelPath
	force := in.Config.ForceRefresh(flowconfig.KeyForceRefresh)

	analysis, outcome, err := cache.GetOrComputeByFingerprint(ctx, n.cache, key, fingerprint, force,
		func(ctx context.Context) (ImageAnalysis, error) {
			return n.describe(ctx, selection.Path)
		})
	if err != nil {
		return nil, err
	}
	in.Logger.Info("template analyzed",
		logging.String(logging.FieldEventType, "template_analyzed"),
		logging.String(logging.FieldCacheKey, outcome.Key),
		logging.String("cache", string(outcome.Reason)),
		logging.String("meme_format", analysis.MemeFormat),
		logging.String("emotion", analysis.EmotionalContext),
		logging.Int("humor_opportunities", len(analysis.HumorOpportunities)))

	out := stage.NewOutput()
	out.ReportCache(outcome)
	if err := out.Set(KeyImageAnalysis, analysis); err != nil {
		return nil, err
	}
	return out, nil
}

func (n *ImageAnalysisNode) describe(ctx context.Context, path string) (ImageAnalysis, error) {
	if n.vision == nil {
		return ImageAnalysis{}, services.Wrap(services.ErrConfiguration, "memeflow", NodeImageAnalysis, "vision model is not configured", nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ImageAnalysis{}, services.Wrap(services.ErrUserInput, "memeflow", NodeImageAnalysis, "template image is not readable", err)
	}
	image := llm.Image{Data: data, MimeType: http.DetectContentType(data)}
	raw, err := n.vision.DescribeImage(ctx, imageAnalysisPrompt, imageAnalysisUser, image)
	if err != nil {
		return ImageAnalysis{}, err
	}
	var analysis ImageAnalysis
	if err := llm.Decode("image analysis", raw, &analysis); err != nil {
		return ImageAnalysis{}, err
	}
	if strings.TrimSpace(analysis.ImageDescription) == "" {
		return ImageAnalysis{}, services.Transient(services.ReasonMalformedResponse, "memeflow", NodeImageAnalysis,
			"model returned no image description", nil)
	}
	if strings.TrimSpace(analysis.MemeFormat) == "" {
		analysis.MemeFormat = "custom"
	}
	return analysis, nil
}
