package textflow

import (
	"context"

	"memeflow/internal/stage"
)

// Namespace is the state namespace owned by the text flow.
const Namespace = "text"

// Node names.
const (
	NodeBusinessContext   = "business_context"
	NodeTrendIntelligence = "trend_intelligence"
	NodeContentCuration   = "content_curation"
)

// State keys produced by the text flow.
var (
	KeyBusinessContext   = stage.K(Namespace, "business_context")
	KeyTrendIntelligence = stage.K(Namespace, "trend_intelligence")
	KeyPlatformContent   = stage.K(Namespace, "platform_content")
)

// Completer is the language-model call the text nodes need.
type Completer interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}
