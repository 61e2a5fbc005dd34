package ranking

import (
	"fmt"
	"math"
	"strings"
)

// HumorPatterns are the generation patterns meme text is written in.
var HumorPatterns = []string{
	"wordplay",
	"subversion_of_expectations",
	"cultural_references",
	"absurdist",
	"self_deprecating",
	"hyperbole",
	"callback_humor",
	"ironic_contrast",
	"relatable_struggle",
	"triumphant_flex",
}

// emotionPatterns lists the patterns that land best for a dominant emotion.
var emotionPatterns = map[string][]string{
	"joy":        {"triumphant_flex", "hyperbole", "relatable_struggle"},
	"surprise":   {"subversion_of_expectations", "absurdist"},
	"confidence": {"triumphant_flex", "hyperbole", "wordplay"},
	"triumph":    {"triumphant_flex", "callback_humor"},
	"confusion":  {"absurdist", "ironic_contrast", "relatable_struggle"},
	"anger":      {"ironic_contrast", "self_deprecating", "sarcastic"},
}

// EmotionBonus is added to alignment when a pattern suits the emotion.
const EmotionBonus = 0.15

// AlignmentScore rates how well a candidate matches the input: its virality
// plus EmotionBonus when pattern suits emotion, clamped to [0,1].
func AlignmentScore(virality float64, pattern, emotion string) float64 {
	score := virality
	if math.IsNaN(score) {
		score = 0
	}
	if SuitsEmotion(pattern, emotion) {
		score += EmotionBonus
	}
	return math.Max(0, math.Min(score, 1))
}

// SuitsEmotion reports whether pattern is a good fit for emotion.
func SuitsEmotion(pattern, emotion string) bool {
	pattern = strings.ToLower(strings.TrimSpace(pattern))
	for _, candidate := range emotionPatterns[strings.ToLower(strings.TrimSpace(emotion))] {
		if candidate == pattern {
			return true
		}
	}
	return false
}

// AssignPatterns returns n pattern tags drawn round-robin from patterns,
// starting at offset. Duplicates in patterns are ignored, so no tag repeats
// until every distinct pattern has been used once.
func AssignPatterns(patterns []string, n, offset int) ([]string, error) {
	if n < 0 {
		return nil, invalid(fmt.Sprintf("pool size must not be negative, got %d", n))
	}
	distinct := dedupe(patterns)
	if n > 0 && len(distinct) == 0 {
		return nil, invalid("no generation patterns available")
	}
	out := make([]string, n)
	if n == 0 {
		return out, nil
	}
	start := offset % len(distinct)
	if start < 0 {
		start += len(distinct)
	}
	for i := range out {
		out[i] = distinct[(start+i)%len(distinct)]
	}
	return out, nil
}

// CheckDiversity verifies pool order honours pattern diversity given the
// number of distinct patterns available: the first min(len, distinct)
// candidates carry different patterns, and no pattern is used more than
// once more than any other.
func CheckDiversity(candidates []Candidate, distinct int) error {
	if distinct <= 0 {
		return invalid("distinct pattern count must be positive")
	}
	prefix := min(len(candidates), distinct)
	seen := make(map[string]int, prefix)
	for i, candidate := range candidates[:prefix] {
		if first, dup := seen[candidate.Pattern]; dup {
			return invalid(fmt.Sprintf("pattern %q repeats at candidates %d and %d before all patterns were used", candidate.Pattern, first, i))
		}
		seen[candidate.Pattern] = i
	}
	counts := make(map[string]int)
	for _, candidate := range candidates {
		counts[candidate.Pattern]++
	}
	lo, hi := math.MaxInt, 0
	for _, count := range counts {
		lo = min(lo, count)
		hi = max(hi, count)
	}
	if len(candidates) > distinct && len(counts) < distinct {
		return invalid(fmt.Sprintf("pool of %d uses %d of %d patterns", len(candidates), len(counts), distinct))
	}
	if len(counts) > 0 && hi-lo > 1 {
		return invalid(fmt.Sprintf("pattern usage is uneven (%d vs %d)", lo, hi))
	}
	return nil
}

// Distinct returns patterns with blanks and duplicates removed, keeping the
// first occurrence of each.
func Distinct(patterns []string) []string {
	return dedupe(patterns)
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}
