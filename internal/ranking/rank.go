package ranking

import (
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"slices"
	"sort"
	"strconv"
	"strings"

	"memeflow/internal/services"
)

// Component score names used by the meme flow.
const (
	ScoreAlignment = "alignment"
	ScoreCoherence = "coherence"
)

const weightSumTolerance = 1e-9

// Candidate is one generated unit competing in a ranking round.
type Candidate struct {
	ID      string             `json:"id"`
	Pattern string             `json:"pattern"`
	Scores  map[string]float64 `json:"scores"`
	Payload json.RawMessage    `json:"payload,omitempty"`
}

// Weights maps component score names to their weight.
type Weights map[string]float64

// Scored is a ranked candidate.
type Scored struct {
	Candidate  Candidate `json:"candidate"`
	Combined   float64   `json:"combined"`
	Normalized float64   `json:"normalized"`
	// Rank is 1-based.
	Rank int `json:"rank"`
	// Index is the candidate's position in the original pool.
	Index int `json:"index"`
}

// Result is the outcome of one ranking round.
type Result struct {
	Ranked     []Scored `json:"ranked"`
	Weights    Weights  `json:"weights"`
	WeightSum  float64  `json:"weight_sum"`
	Normalized bool     `json:"normalized"`
	PoolSize   int      `json:"pool_size"`
}

// DefaultWeights favours input alignment over image coherence, 60/40.
func DefaultWeights() Weights {
	return Weights{ScoreAlignment: 0.6, ScoreCoherence: 0.4}
}

// ParseWeights reads "name:weight" entries.
func ParseWeights(entries []string) (Weights, error) {
	weights := make(Weights, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, raw, ok := strings.Cut(entry, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, invalid(fmt.Sprintf("ranking weight %q must look like name:weight", entry))
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, invalid(fmt.Sprintf("ranking weight %q is not a number", entry))
		}
		weights[name] = value
	}
	if err := weights.validate(); err != nil {
		return nil, err
	}
	return weights, nil
}

// Sum returns the total weight.
func (w Weights) Sum() float64 {
	sum := 0.0
	for _, name := range w.names() {
		sum += w[name]
	}
	return sum
}

func (w Weights) names() []string {
	return slices.Sorted(maps.Keys(w))
}

func (w Weights) validate() error {
	if len(w) == 0 {
		return invalid("ranking weights are empty")
	}
	for _, name := range w.names() {
		value := w[name]
		if math.IsNaN(value) || math.IsInf(value, 0) || value < 0 {
			return invalid(fmt.Sprintf("ranking weight %q must be a finite non-negative number", name))
		}
	}
	if w.Sum() <= 0 {
		return invalid("ranking weights must not sum to zero")
	}
	return nil
}

// Rank orders candidates by weighted score and returns the top k. When the
// weights do not sum to one, Normalized scores divide by the sum.
func Rank(candidates []Candidate, weights Weights, k int) (Result, error) {
	if k < 0 {
		return Result{}, invalid(fmt.Sprintf("k must not be negative, got %d", k))
	}
	if len(candidates) == 0 && k > 0 {
		return Result{}, invalid("no candidates to rank")
	}
	if err := weights.validate(); err != nil {
		return Result{}, err
	}

	names := weights.names()
	sum := weights.Sum()
	normalized := math.Abs(sum-1) > weightSumTolerance

	scored := make([]Scored, 0, len(candidates))
	for i, candidate := range candidates {
		combined := 0.0
		for _, name := range names {
			score, ok := candidate.Scores[name]
			if !ok {
				return Result{}, invalid(fmt.Sprintf("candidate %s lacks score %q", label(candidate, i), name))
			}
			if math.IsNaN(score) || score < 0 || score > 1 {
				return Result{}, invalid(fmt.Sprintf("candidate %s score %q is outside [0,1]", label(candidate, i), name))
			}
			combined += weights[name] * score
		}
		entry := Scored{Candidate: candidate, Combined: combined, Normalized: combined, Index: i}
		if normalized {
			entry.Normalized = combined / sum
		}
		scored = append(scored, entry)
	}

	sort.SliceStable(scored, func(a, b int) bool {
		if scored[a].Combined != scored[b].Combined {
			return scored[a].Combined > scored[b].Combined
		}
		return scored[a].Index < scored[b].Index
	})

	if k > len(scored) {
		k = len(scored)
	}
	top := scored[:k]
	for i := range top {
		top[i].Rank = i + 1
	}
	return Result{
		Ranked:     top,
		Weights:    maps.Clone(weights),
		WeightSum:  sum,
		Normalized: normalized,
		PoolSize:   len(candidates),
	}, nil
}

func label(c Candidate, index int) string {
	if c.ID != "" {
		return strconv.Quote(c.ID)
	}
	return "#" + strconv.Itoa(index)
}

func invalid(message string) error {
	return services.UserInput("ranking", "rank", message)
}
