package memeflow

import (
	"memeflow/internal/ranking"
	"memeflow/internal/services/imagegen"
)

// ContentAnalysis is the emotional read of the content a meme is built
// from.
type ContentAnalysis struct {
	DominantEmotion             string   `json:"dominant_emotion"`
	HumorType                   string   `json:"humor_type"`
	MemeWorthinessScore         float64  `json:"meme_worthiness_score"`
	MemeAngle                   string   `json:"meme_angle"`
	VisualVibe                  string   `json:"visual_vibe"`
	NarrativeIntent             string   `json:"narrative_intent"`
	SuggestedTemplateCategories []string `json:"suggested_template_categories"`
	// Source is "text_flow" or "input_text".
	Source string `json:"source"`
}

// Dimensions of an image in pixels.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// TextZones are the bands reserved for the top and bottom captions.
type TextZones struct {
	Top    imagegen.TextZone `json:"top"`
	Bottom imagegen.TextZone `json:"bottom"`
}

// TemplateSelection is the template chosen for this run.
type TemplateSelection struct {
	// Path is absolute; RelPath is relative to the templates directory.
	Path       string     `json:"path"`
	RelPath    string     `json:"rel_path"`
	Category   string     `json:"category"`
	Filename   string     `json:"filename"`
	Dimensions Dimensions `json:"dimensions"`
	TextZones  TextZones  `json:"text_zones"`
	// Suggested reports whether the category came from the content analysis.
	Suggested  bool `json:"suggested"`
	Candidates int  `json:"candidates"`
}

// TextPlacement rates the caption bands: good, moderate or poor.
type TextPlacement struct {
	Top    string `json:"top"`
	Bottom string `json:"bottom"`
}

// ImageAnalysis is the vision model's reading of the template.
type ImageAnalysis struct {
	ImageDescription            string        `json:"image_description"`
	VisualElements              []string      `json:"visual_elements"`
	EmotionalContext            string        `json:"emotional_context"`
	MemeFormat                  string        `json:"meme_format"`
	TextPlacementSuitability    TextPlacement `json:"text_placement_suitability"`
	SuggestedNarrativeStructure string        `json:"suggested_narrative_structure"`
	CulturalReferences          []string      `json:"cultural_references"`
	HumorOpportunities          []string      `json:"humor_opportunities"`
}

// TextStyle controls how captions are drawn.
type TextStyle struct {
	Uppercase   *bool  `json:"uppercase,omitempty"`
	StrokeColor string `json:"stroke_color,omitempty"`
	StrokeWidth int    `json:"stroke_width,omitempty"`
}

// BrandConfig is read from brand_config.json in the brand identity
// directory.
type BrandConfig struct {
	BrandName      string    `json:"brand_name"`
	PrimaryColor   string    `json:"primary_color"`
	SecondaryColor string    `json:"secondary_color"`
	VisualTone     string    `json:"visual_tone"`
	LogoPath       string    `json:"logo_path,omitempty"`
	FontFamily     string    `json:"font_family,omitempty"`
	TextStyleRules TextStyle `json:"text_style_rules"`
}

// UppercaseCaptions reports whether captions are drawn in capitals, the
// default.
func (b BrandConfig) UppercaseCaptions() bool {
	return b.TextStyleRules.Uppercase == nil || *b.TextStyleRules.Uppercase
}

// BrandedTemplate is the template after brand blending.
type BrandedTemplate struct {
	// Path is relative to the run directory.
	Path          string            `json:"path"`
	OriginalPath  string            `json:"original_path"`
	Brand         BrandConfig       `json:"brand"`
	Modifications map[string]bool   `json:"modifications"`
	Artifact      imagegen.Artifact `json:"artifact"`
}

// TextOption is one top/bottom caption pair.
type TextOption struct {
	TopText             string  `json:"top_text"`
	BottomText          string  `json:"bottom_text"`
	ViralityScore       float64 `json:"virality_score"`
	ImageCoherenceScore float64 `json:"image_coherence_score"`
	HumorPattern        string  `json:"humor_pattern"`
}

// CandidatePool is the generated pool in generation order.
type CandidatePool struct {
	Candidates []ranking.Candidate `json:"candidates"`
	// Patterns lists the distinct patterns the pool was drawn from.
	Patterns []string `json:"patterns"`
	Offset   int      `json:"offset"`
}

// SelectedText is a ranked caption.
type SelectedText struct {
	TextOption
	CandidateID string  `json:"candidate_id"`
	Rank        int     `json:"rank"`
	Combined    float64 `json:"combined"`
	Normalized  float64 `json:"normalized"`
	Alignment   float64 `json:"alignment"`
}

// MemeText holds the top ranked captions and the ranking that chose them.
type MemeText struct {
	Selected []SelectedText `json:"selected"`
	Ranking  ranking.Result `json:"ranking"`
}

// Best returns the winning caption.
func (m MemeText) Best() (SelectedText, bool) {
	if len(m.Selected) == 0 {
		return SelectedText{}, false
	}
	return m.Selected[0], true
}

// FinalMeme is the rendered meme.
type FinalMeme struct {
	// Path is relative to the run directory.
	Path        string  `json:"path"`
	TopText     string  `json:"top_text"`
	BottomText  string  `json:"bottom_text"`
	CandidateID string  `json:"candidate_id"`
	Score       float64 `json:"score"`
	Template    string  `json:"template"`
	ContentType string  `json:"content_type"`
	Bytes       int     `json:"bytes"`
	SHA256      string  `json:"sha256"`
}
