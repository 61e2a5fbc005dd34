package workflow

import (
	"fmt"
	"strings"

	"memeflow/internal/animation"
	"memeflow/internal/cache"
	"memeflow/internal/memeflow"
	"memeflow/internal/services"
	"memeflow/internal/textflow"
)

// Flow names. Each equals the state namespace the flow writes.
const (
	FlowText      = textflow.Namespace
	FlowMeme      = memeflow.Namespace
	FlowAnimation = animation.Namespace
)

// FlowNames lists the catalog in chaining order.
var FlowNames = []string{FlowText, FlowMeme, FlowAnimation}

// LanguageModel is the collaborator surface every flow draws from.
// *llm.Client implements it.
type LanguageModel interface {
	memeflow.Completer
	memeflow.Describer
}

// ImageService brands, renders and animates. *imagegen.Client implements it.
type ImageService interface {
	memeflow.Imager
	animation.Animator
}

// Deps are the collaborators flows are built over.
type Deps struct {
	LLM    LanguageModel
	Images ImageService
	Cache  *cache.Store
}

// TextFlow builds business context, trend research and platform content.
func TextFlow(deps Deps) (*Flow, error) {
	return Compose(FlowText,
		textflow.NewBusinessContextNode(deps.LLM, deps.Cache),
		textflow.NewTrendIntelligenceNode(deps.LLM, deps.Cache),
		textflow.NewContentCurationNode(deps.LLM),
	)
}

// MemeFlow turns content into a branded, captioned meme image.
func MemeFlow(deps Deps) (*Flow, error) {
	return Compose(FlowMeme,
		memeflow.NewSentimentNode(deps.LLM),
		memeflow.NewTemplateSelectionNode(),
		memeflow.NewImageAnalysisNode(deps.LLM, deps.Cache),
		memeflow.NewBrandBlendingNode(deps.Images),
		memeflow.NewTextGenerationNode(deps.LLM),
		memeflow.NewTextSelectionNode(),
		memeflow.NewRenderingNode(deps.Images),
	)
}

// AnimationFlow animates the rendered meme.
func AnimationFlow(deps Deps) (*Flow, error) {
	return Compose(FlowAnimation, animation.NewNode(deps.Images))
}

// Build returns the catalog flow called name.
func Build(name string, deps Deps) (*Flow, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case FlowText:
		return TextFlow(deps)
	case FlowMeme:
		return MemeFlow(deps)
	case FlowAnimation:
		return AnimationFlow(deps)
	default:
		return nil, services.UserInput("workflow", "build",
			fmt.Sprintf("unknown flow %q (expected one of %s)", name, strings.Join(FlowNames, ", ")))
	}
}
