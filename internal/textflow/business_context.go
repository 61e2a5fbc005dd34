package textflow

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"memeflow/internal/cache"
	"memeflow/internal/fileutil"
	"memeflow/internal/flowconfig"
	"memeflow/internal/logging"
	"memeflow/internal/services"
	"memeflow/internal/services/llm"
	"memeflow/internal/stage"
	"memeflow/internal/textutil"
)

const (
	businessContextCacheKey = "business_context"
	// maxDocumentRunes bounds the corpus sent to the model.
	maxDocumentRunes = 60000
)

// documentExtensions are the formats read as plain text.
var documentExtensions = []string{".txt", ".md"}

// BusinessContextNode extracts structured brand context from the business
// documents directory.
type BusinessContextNode struct {
	llm   Completer
	cache *cache.Store
}

// NewBusinessContextNode builds the node.
func NewBusinessContextNode(completer Completer, store *cache.Store) *BusinessContextNode {
	return &BusinessContextNode{llm: completer, cache: store}
}

func (n *BusinessContextNode) Name() string { return NodeBusinessContext }

func (n *BusinessContextNode) Spec() stage.Spec {
	return stage.Spec{Produces: []stage.Key{KeyBusinessContext}}
}

func (n *BusinessContextNode) Run(ctx context.Context, in *stage.Input) (*stage.Output, error) {
	logger := in.Logger
	dir := strings.TrimSpace(in.Config.String(flowconfig.KeyBusinessDocsPath, ""))
	corpus, err := readDocuments(dir)
	if err != nil {
		return nil, err
	}
	logger.Info("business documents read",
		logging.String(logging.FieldEventType, "documents_read"),
		logging.Int("documents", len(corpus.names)),
		logging.Int("characters", len([]rune(corpus.text))),
		logging.String("fingerprint", corpus.fingerprint[:12]))

	force := in.Config.ForceRefresh(flowconfig.KeyForceRefreshContext)
	value, outcome, err := cache.GetOrComputeByFingerprint(ctx, n.cache, businessContextCacheKey, corpus.fingerprint, force,
		func(ctx context.Context) (BusinessContext, error) {
			return n.extract(ctx, corpus)
		})
	if err != nil {
		return nil, err
	}
	logger.Info("business context ready",
		logging.String(logging.FieldEventType, "business_context_ready"),
		logging.String(logging.FieldCacheKey, outcome.Key),
		logging.String("cache", string(outcome.Reason)),
		logging.String("archetype", value.BrandIdentity.BrandArchetype),
		logging.Int("themes", len(value.StrategicMessaging.ContentThemes)))

	out := stage.NewOutput()
	out.ReportCache(outcome)
	if err := out.Set(KeyBusinessContext, value); err != nil {
		return nil, err
	}
	return out, nil
}

func (n *BusinessContextNode) extract(ctx context.Context, corpus documentCorpus) (BusinessContext, error) {
	if n.llm == nil {
		return BusinessContext{}, services.Wrap(services.ErrConfiguration, "textflow", NodeBusinessContext, "language model is not configured", nil)
	}
	user := "Business Documents:\n\n" + textutil.Truncate(corpus.text, maxDocumentRunes) +
		"\n\nExtract the comprehensive business context as JSON:"
	content, err := n.llm.CompleteJSON(ctx, businessContextPrompt, user)
	if err != nil {
		return BusinessContext{}, err
	}
	var result BusinessContext
	if err := llm.Decode("business context", content, &result); err != nil {
		return BusinessContext{}, err
	}
	if strings.TrimSpace(result.BrandIdentity.CoreNarrative) == "" && len(result.CommunicationStyle.ToneDescriptors) == 0 {
		return BusinessContext{}, services.Transient(services.ReasonMalformedResponse, "textflow", NodeBusinessContext,
			"model returned an empty business context", nil)
	}
	result.Documents = corpus.names
	result.Fingerprint = corpus.fingerprint
	return result, nil
}

type documentCorpus struct {
	names       []string
	text        string
	fingerprint string
}

// readDocuments concatenates every readable document under dir. The
// fingerprint covers relative paths and normalized text, so whitespace-only
// edits do not invalidate the cache.
func readDocuments(dir string) (documentCorpus, error) {
	if dir == "" {
		return documentCorpus{}, services.UserInput("textflow", NodeBusinessContext, "business_documents_path is not set")
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		if err == nil || errors.Is(err, fs.ErrNotExist) {
			return documentCorpus{}, services.Wrap(services.ErrNotFound, "textflow", NodeBusinessContext,
				"business documents directory does not exist", err)
		}
		return documentCorpus{}, services.Wrap(services.ErrUserInput, "textflow", NodeBusinessContext,
			"business documents directory is not readable", err)
	}
	entries, err := fileutil.ListFiles(dir, documentExtensions...)
	if err != nil {
		return documentCorpus{}, services.Wrap(services.ErrUserInput, "textflow", NodeBusinessContext,
			"business documents directory is not readable", err)
	}

	var (
		corpus     documentCorpus
		sections   []string
		normalized strings.Builder
	)
	for _, entry := range entries {
		data, err := os.ReadFile(entry.Path)
		if err != nil {
			return documentCorpus{}, services.Wrap(services.ErrUserInput, "textflow", NodeBusinessContext,
				fmt.Sprintf("document %s is not readable", entry.RelPath), err)
		}
		text := textutil.NormalizeText(string(data))
		if text == "" {
			continue
		}
		corpus.names = append(corpus.names, entry.RelPath)
		sections = append(sections, fmt.Sprintf("=== %s ===\n%s", entry.RelPath, text))
		normalized.WriteString(entry.RelPath)
		normalized.WriteByte(0)
		normalized.WriteString(text)
		normalized.WriteByte(0)
	}
	if len(corpus.names) == 0 {
		return documentCorpus{}, services.UserInput("textflow", NodeBusinessContext,
			"no .txt or .md documents with content were found in the business documents directory")
	}
	corpus.text = strings.Join(sections, "\n\n")
	corpus.fingerprint = fileutil.HashBytes([]byte(normalized.String()))
	return corpus, nil
}
