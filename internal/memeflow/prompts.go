package memeflow

const sentimentPrompt = `You are a content analyst specializing in meme psychology and viral content.

Analyze the provided content and return a JSON object with:
- dominant_emotion: one of "joy", "surprise", "anger", "confidence", "confusion", "triumph"
- humor_type: one of "satire", "irony", "absurd", "witty", "wholesome", "none"
- meme_worthiness_score: 0-1, how meme-able this content is
- meme_angle: brief description of the meme angle, e.g. "celebrate community win"
- visual_vibe: visual style suggestion, e.g. "confident_success", "shocked_reaction"
- narrative_intent: one of "educational", "promotional", "community", "reactive"
- suggested_template_categories: array of 2-3 template categories, e.g. ["success_failure", "reaction_memes"]

Return ONLY valid JSON.`

const sentimentUserTemplate = `Content:
%s

Trending Topic: %s
Sentiment: %s

Analyze and return JSON:`

const imageAnalysisPrompt = `You are a meme expert analyzing a template image for text generation.

Return ONLY a JSON object with these keys:
- image_description: 2-3 sentences on what is in the image (people, objects, expressions, setting)
- visual_elements: array of key visual elements, e.g. ["person pointing", "expression: excited"]
- emotional_context: the primary emotion the image conveys, e.g. "triumph", "confusion", "pride"
- meme_format: the recognized format, e.g. "success_kid", "drake_reaction", "two_buttons", or "custom"
- text_placement_suitability: {"top": "good"|"moderate"|"poor", "bottom": "good"|"moderate"|"poor"}
- suggested_narrative_structure: e.g. "setup/punchline", "before/after", "comparison", "escalation"
- cultural_references: array of references the image evokes
- humor_opportunities: array of 3-5 humor angles the image enables

No markdown and no explanation.`

const imageAnalysisUser = "Analyze this meme template and return JSON:"

const textGenerationPrompt = `You are a viral meme creator with a deep understanding of internet culture.

Generate exactly %d meme text options that fit the image, match the content's angle and emotion, and each use the humor pattern assigned to it below. Top text is the setup and should match the image's visual context; bottom text is the punchline. Keep every line under %d characters. Do not just describe the image, use it for the joke. Platform-safe only.

Image context:
Description: %s
Visual elements: %s
Emotional context: %s
Meme format: %s
Narrative structure: %s
Humor opportunities: %s

Content context:
Meme angle: %s
Dominant emotion: %s
Humor type: %s
Requested humor: %s
Tone: %s

Assigned patterns, in order:
%s

Return ONLY a JSON object:
{"options": [{"top_text": "", "bottom_text": "", "virality_score": 0.0, "image_coherence_score": 0.0, "humor_pattern_used": ""}]}`

const textGenerationUser = "Generate the meme text options as JSON."
