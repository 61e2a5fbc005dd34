package textflow

import (
	"strings"
	"time"
)

// BrandIdentity is who the brand is.
type BrandIdentity struct {
	CoreNarrative          string   `json:"core_narrative"`
	BrandPillars           []string `json:"brand_pillars"`
	UniqueValueProposition string   `json:"unique_value_proposition"`
	BrandPersonalityTraits []string `json:"brand_personality_traits"`
	BrandArchetype         string   `json:"brand_archetype"`
}

// CommunicationStyle is how the brand speaks.
type CommunicationStyle struct {
	ToneDescriptors      []string `json:"tone_descriptors"`
	VoiceCharacteristics string   `json:"voice_characteristics"`
	HumorStyle           string   `json:"humor_style"`
	ExamplePhrases       []string `json:"example_phrases"`
	LanguagePatterns     string   `json:"language_patterns"`
}

// StrategicMessaging is what the brand keeps saying.
type StrategicMessaging struct {
	KeyMessages         []string          `json:"key_messages"`
	MessagingFrameworks map[string]string `json:"messaging_frameworks"`
	ContentThemes       []string          `json:"content_themes"`
}

// AudienceIntelligence is who the brand speaks to.
type AudienceIntelligence struct {
	PrimaryAudience       string `json:"primary_audience"`
	Psychographics        string `json:"psychographics"`
	ExpertiseLevel        string `json:"expertise_level"`
	EngagementPreferences string `json:"engagement_preferences"`
}

// BrandGuardrails bound what content may say.
type BrandGuardrails struct {
	Dos                []string `json:"dos"`
	Donts              []string `json:"donts"`
	SensitiveTopics    []string `json:"sensitive_topics"`
	CompetitorMentions string   `json:"competitor_mentions"`
}

// ContentVariationSeeds keep generated content from sounding the same.
type ContentVariationSeeds struct {
	Perspectives        []string `json:"perspectives"`
	NarrativeApproaches []string `json:"narrative_approaches"`
	EmotionalRanges     []string `json:"emotional_ranges"`
}

// BusinessContext is the structured brand knowledge extracted from the
// business documents.
type BusinessContext struct {
	BrandIdentity         BrandIdentity         `json:"brand_identity"`
	CommunicationStyle    CommunicationStyle    `json:"communication_style"`
	StrategicMessaging    StrategicMessaging    `json:"strategic_messaging"`
	AudienceIntelligence  AudienceIntelligence  `json:"audience_intelligence"`
	BrandGuardrails       BrandGuardrails       `json:"brand_guardrails"`
	ContentVariationSeeds ContentVariationSeeds `json:"content_variation_seeds"`
	// Documents lists the source files, relative to the documents directory.
	Documents   []string `json:"documents"`
	Fingerprint string   `json:"fingerprint"`
}

// Summary returns the narrative trimmed to limit runes for prompts.
func (b BusinessContext) Summary(limit int) string {
	runes := []rune(strings.TrimSpace(b.BrandIdentity.CoreNarrative))
	if limit > 0 && len(runes) > limit {
		runes = runes[:limit]
	}
	return string(runes)
}

// Tone joins the tone descriptors.
func (b BusinessContext) Tone() string {
	return strings.Join(b.CommunicationStyle.ToneDescriptors, ", ")
}

// KeyMessages joins the key messages.
func (b BusinessContext) KeyMessages() string {
	return strings.Join(b.StrategicMessaging.KeyMessages, ", ")
}

// TrendingTopic is one candidate topic from trend research.
type TrendingTopic struct {
	Topic             string   `json:"topic"`
	Domain            string   `json:"domain"`
	ChainsAffected    []string `json:"chains_affected"`
	Description       string   `json:"description"`
	Reason            string   `json:"reason"`
	Sentiment         string   `json:"sentiment"`
	RelevanceScore    float64  `json:"relevance_score"`
	ViralityPotential float64  `json:"virality_potential"`
	MemeAngles        []string `json:"meme_angles"`
	TechnicalDepth    string   `json:"technical_depth"`
	Source            string   `json:"source"`
}

// TrendIntelligence is the researched topic list and the topic chosen for
// this run.
type TrendIntelligence struct {
	TrendingTopics []TrendingTopic `json:"trending_topics"`
	SelectedTopic  TrendingTopic   `json:"selected_topic"`
	GeneratedAt    time.Time       `json:"generated_at"`
}

// TwitterPost is content for twitter.
type TwitterPost struct {
	Post           string   `json:"post"`
	Hashtags       []string `json:"hashtags"`
	CharacterCount int      `json:"character_count"`
	EmojiCount     int      `json:"emoji_count"`
}

// InstagramPost is content for instagram.
type InstagramPost struct {
	Caption    string   `json:"caption"`
	Hashtags   []string `json:"hashtags"`
	EmojiCount int      `json:"emoji_count"`
}

// LinkedInPost is content for linkedin.
type LinkedInPost struct {
	Post                  string   `json:"post"`
	Hashtags              []string `json:"hashtags"`
	ProfessionalToneScore float64  `json:"professional_tone_score"`
}

// PlatformContent holds one entry per requested platform.
type PlatformContent struct {
	Twitter   *TwitterPost   `json:"twitter,omitempty"`
	Instagram *InstagramPost `json:"instagram,omitempty"`
	LinkedIn  *LinkedInPost  `json:"linkedin,omitempty"`
	// Files maps platform to the content file written under the run directory.
	Files map[string]string `json:"files"`
}

// Text returns the main text generated for platform, or "".
func (p PlatformContent) Text(platform string) string {
	switch platform {
	case PlatformTwitter:
		if p.Twitter != nil {
			return p.Twitter.Post
		}
	case PlatformInstagram:
		if p.Instagram != nil {
			return p.Instagram.Caption
		}
	case PlatformLinkedIn:
		if p.LinkedIn != nil {
			return p.LinkedIn.Post
		}
	}
	return ""
}

// Platforms.
const (
	PlatformTwitter   = "twitter"
	PlatformInstagram = "instagram"
	PlatformLinkedIn  = "linkedin"
)
