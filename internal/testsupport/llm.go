package testsupport

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"memeflow/internal/services"
	"memeflow/internal/services/llm"
)

// LLMCall records one request made to a FakeLLM.
type LLMCall struct {
	System string
	User   string
	Image  *llm.Image
}

type llmRule struct {
	match     string
	responses []string
	err       error
	served    int
}

// FakeLLM answers language-model requests from scripted rules. A rule
// matches when its substring appears in the system or user prompt; the
// first matching rule wins. Responses are served in order and the last one
// repeats.
type FakeLLM struct {
	mu    sync.Mutex
	rules []*llmRule
	calls []LLMCall
}

// NewFakeLLM returns an empty fake.
func NewFakeLLM() *FakeLLM {
	return &FakeLLM{}
}

// On registers responses for prompts containing match.
func (f *FakeLLM) On(match string, responses ...string) *FakeLLM {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = append(f.rules, &llmRule{match: match, responses: responses})
	return f
}

// Fail makes prompts containing match return err.
func (f *FakeLLM) Fail(match string, err error) *FakeLLM {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = append(f.rules, &llmRule{match: match, err: err})
	return f
}

// CompleteJSON implements the text completion surface used by nodes.
func (f *FakeLLM) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return f.answer(ctx, LLMCall{System: systemPrompt, User: userPrompt})
}

// DescribeImage implements the vision surface used by nodes.
func (f *FakeLLM) DescribeImage(ctx context.Context, systemPrompt, userPrompt string, image llm.Image) (string, error) {
	return f.answer(ctx, LLMCall{System: systemPrompt, User: userPrompt, Image: &image})
}

func (f *FakeLLM) answer(ctx context.Context, call LLMCall) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	for _, rule := range f.rules {
		if !strings.Contains(call.System, rule.match) && !strings.Contains(call.User, rule.match) {
			continue
		}
		if rule.err != nil {
			return "", rule.err
		}
		idx := min(rule.served, len(rule.responses)-1)
		rule.served++
		return rule.responses[idx], nil
	}
	return "", services.Wrap(services.ErrContract, "fakellm", "answer",
		fmt.Sprintf("no scripted response for prompt %q", firstLine(call.System)), nil)
}

// Calls returns a copy of every recorded request.
func (f *FakeLLM) Calls() []LLMCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]LLMCall(nil), f.calls...)
}

// CallCount reports how many requests contained match.
func (f *FakeLLM) CallCount(match string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, call := range f.calls {
		if strings.Contains(call.System, match) || strings.Contains(call.User, match) {
			count++
		}
	}
	return count
}

func firstLine(value string) string {
	line, _, _ := strings.Cut(value, "\n")
	return line
}
