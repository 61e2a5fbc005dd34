package textflow

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"unicode/utf8"

	"memeflow/internal/config"
	"memeflow/internal/fileutil"
	"memeflow/internal/flowconfig"
	"memeflow/internal/logging"
	"memeflow/internal/services"
	"memeflow/internal/services/llm"
	"memeflow/internal/stage"
	"memeflow/internal/textutil"
)

const (
	twitterMaxChars     = 280
	contentSummaryRunes = 1200
	contentDirName      = "content"
)

// ContentCurationNode writes platform-specific posts about the selected
// trend.
type ContentCurationNode struct {
	llm Completer
}

// NewContentCurationNode builds the node.
func NewContentCurationNode(completer Completer) *ContentCurationNode {
	return &ContentCurationNode{llm: completer}
}

func (n *ContentCurationNode) Name() string { return NodeContentCuration }

func (n *ContentCurationNode) Spec() stage.Spec {
	return stage.Spec{
		Requires: []stage.Key{KeyBusinessContext, KeyTrendIntelligence},
		Produces: []stage.Key{KeyPlatformContent},
	}
}

func (n *ContentCurationNode) Run(ctx context.Context, in *stage.Input) (*stage.Output, error) {
	if n.llm == nil {
		return nil, services.Wrap(services.ErrConfiguration, "textflow", NodeContentCuration, "language model is not configured", nil)
	}
	var business BusinessContext
	if err := in.Decode(KeyBusinessContext, &business); err != nil {
		return nil, err
	}
	var trends TrendIntelligence
	if err := in.Decode(KeyTrendIntelligence, &trends); err != nil {
		return nil, err
	}
	platforms, err := requestedPlatforms(in.Config)
	if err != nil {
		return nil, err
	}

	brief := platformBrief{
		summary:     business.Summary(contentSummaryRunes),
		tone:        business.Tone(),
		requested:   in.Config.String(flowconfig.KeyTone, ""),
		keyMessages: business.KeyMessages(),
		topic:       trends.SelectedTopic,
	}
	content := PlatformContent{Files: make(map[string]string, len(platforms))}
	for _, platform := range platforms {
		var (
			value any
			err   error
		)
		switch platform {
		case PlatformTwitter:
			content.Twitter, err = n.twitter(ctx, brief)
			value = content.Twitter
		case PlatformInstagram:
			content.Instagram, err = n.instagram(ctx, brief)
			value = content.Instagram
		case PlatformLinkedIn:
			content.LinkedIn, err = n.linkedin(ctx, brief)
			value = content.LinkedIn
		}
		if err != nil {
			return nil, err
		}
		rel, err := writeContentFile(in.RunDir, platform, value)
		if err != nil {
			return nil, err
		}
		content.Files[platform] = rel
		in.Logger.Info("platform content generated",
			logging.String(logging.FieldEventType, "platform_content_generated"),
			logging.String("platform", platform),
			logging.Int("characters", utf8.RuneCountInString(content.Text(platform))),
			logging.String("file", rel))
	}

	out := stage.NewOutput()
	if err := out.Set(KeyPlatformContent, content); err != nil {
		return nil, err
	}
	return out, nil
}

type platformBrief struct {
	summary     string
	tone        string
	requested   string
	keyMessages string
	topic       TrendingTopic
}

func (b platformBrief) user(platform string) string {
	return fmt.Sprintf(platformUserTemplate, b.summary, b.tone, b.requested, b.keyMessages,
		b.topic.Topic, b.topic.Description, textutil.Label(platform))
}

func (n *ContentCurationNode) twitter(ctx context.Context, brief platformBrief) (*TwitterPost, error) {
	var post TwitterPost
	if err := n.complete(ctx, fmt.Sprintf(twitterPrompt, twitterMaxChars), brief.user(PlatformTwitter), &post); err != nil {
		return nil, err
	}
	post.Post = strings.TrimSpace(post.Post)
	if post.Post == "" {
		return nil, emptyPlatformContent(PlatformTwitter)
	}
	if utf8.RuneCountInString(post.Post) > twitterMaxChars {
		post.Post = textutil.Truncate(post.Post, twitterMaxChars-3)
	}
	post.CharacterCount = utf8.RuneCountInString(post.Post)
	return &post, nil
}

func (n *ContentCurationNode) instagram(ctx context.Context, brief platformBrief) (*InstagramPost, error) {
	var post InstagramPost
	if err := n.complete(ctx, instagramPrompt, brief.user(PlatformInstagram), &post); err != nil {
		return nil, err
	}
	post.Caption = strings.TrimSpace(post.Caption)
	if post.Caption == "" {
		return nil, emptyPlatformContent(PlatformInstagram)
	}
	return &post, nil
}

func (n *ContentCurationNode) linkedin(ctx context.Context, brief platformBrief) (*LinkedInPost, error) {
	var post LinkedInPost
	if err := n.complete(ctx, linkedinPrompt, brief.user(PlatformLinkedIn), &post); err != nil {
		return nil, err
	}
	post.Post = strings.TrimSpace(post.Post)
	if post.Post == "" {
		return nil, emptyPlatformContent(PlatformLinkedIn)
	}
	if post.ProfessionalToneScore < 0 || post.ProfessionalToneScore > 1 {
		post.ProfessionalToneScore = min(1, max(0, post.ProfessionalToneScore))
	}
	return &post, nil
}

func (n *ContentCurationNode) complete(ctx context.Context, system, user string, target any) error {
	content, err := n.llm.CompleteJSON(ctx, system, user)
	if err != nil {
		return err
	}
	return llm.Decode("platform content", content, target)
}

func emptyPlatformContent(platform string) error {
	return services.Transient(services.ReasonMalformedResponse, "textflow", NodeContentCuration,
		fmt.Sprintf("model returned empty %s content", platform), nil)
}

// requestedPlatforms returns the configured platforms in their canonical
// order, rejecting unknown ones.
func requestedPlatforms(cfg *flowconfig.Config) ([]string, error) {
	requested := cfg.Strings(flowconfig.KeyPlatforms, config.SupportedPlatforms)
	seen := make(map[string]struct{}, len(requested))
	for _, platform := range requested {
		platform = strings.ToLower(strings.TrimSpace(platform))
		if platform == "" {
			continue
		}
		if !slices.Contains(config.SupportedPlatforms, platform) {
			return nil, services.UserInput("textflow", NodeContentCuration,
				fmt.Sprintf("unsupported platform %q (expected one of %s)", platform, strings.Join(config.SupportedPlatforms, ", ")))
		}
		seen[platform] = struct{}{}
	}
	if len(seen) == 0 {
		return nil, services.UserInput("textflow", NodeContentCuration, "platforms must list at least one platform")
	}
	var platforms []string
	for _, platform := range config.SupportedPlatforms {
		if _, ok := seen[platform]; ok {
			platforms = append(platforms, platform)
		}
	}
	return platforms, nil
}

func writeContentFile(runDir, platform string, value any) (string, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return "", services.Wrap(services.ErrContract, "textflow", NodeContentCuration, "platform content is not serializable", err)
	}
	rel := filepath.ToSlash(filepath.Join(contentDirName, platform+".json"))
	if err := fileutil.WriteFileAtomic(filepath.Join(runDir, rel), append(data, '\n'), 0o644); err != nil {
		return "", services.Wrap(services.ErrPersistence, "textflow", NodeContentCuration, "platform content could not be written", err)
	}
	return rel, nil
}
