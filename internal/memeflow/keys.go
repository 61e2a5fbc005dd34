package memeflow

import (
	"context"

	"memeflow/internal/services/imagegen"
	"memeflow/internal/services/llm"
	"memeflow/internal/stage"
)

// Namespace is the state namespace owned by the meme flow.
const Namespace = "meme"

// Node names.
const (
	NodeSentimentAnalysis = "sentiment_analysis"
	NodeTemplateSelection = "template_selection"
	NodeImageAnalysis     = "image_analysis"
	NodeBrandBlending     = "brand_blending"
	NodeTextGeneration    = "text_generation"
	NodeTextSelection     = "text_selection"
	NodeMemeRendering     = "meme_rendering"
)

// State keys produced by the meme flow.
var (
	KeyContentAnalysis   = stage.K(Namespace, "content_analysis")
	KeyTemplateSelection = stage.K(Namespace, "template_selection")
	KeyImageAnalysis     = stage.K(Namespace, "image_analysis")
	KeyBrandedTemplate   = stage.K(Namespace, "branded_template")
	KeyMemeCandidates    = stage.K(Namespace, "meme_candidates")
	KeyMemeText          = stage.K(Namespace, "meme_text")
	KeyFinalMeme         = stage.K(Namespace, "final_meme")
)

// Completer is the language-model text call.
type Completer interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Describer is the language-model vision call.
type Describer interface {
	DescribeImage(ctx context.Context, systemPrompt, userPrompt string, image llm.Image) (string, error)
}

// Imager is the image service surface the meme flow uses.
type Imager interface {
	Brand(ctx context.Context, req imagegen.BrandRequest, dest string) (imagegen.Artifact, error)
	Render(ctx context.Context, req imagegen.RenderRequest, dest string) (imagegen.Artifact, error)
}

// Run directory layout.
const (
	memesDirName      = "memes"
	brandedFileName   = "branded_template.png"
	finalMemeFileName = "final_meme.png"
)
