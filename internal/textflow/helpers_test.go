package textflow_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"memeflow/internal/config"
	"memeflow/internal/flowconfig"
	"memeflow/internal/stage"
	"memeflow/internal/testsupport"
)

const (
	businessContextJSON = `{
  "brand_identity": {"core_narrative": "We make self custody feel friendly.", "brand_archetype": "Jester"},
  "communication_style": {"tone_descriptors": ["playful", "bold"], "humor_style": "self-aware"},
  "strategic_messaging": {"key_messages": ["your keys, your coins"], "content_themes": ["wallets", "onboarding"]}
}`
	trendsJSON = `{"topics": [
  {"topic": "Base summer", "relevance_score": 0.7},
  {"topic": "Restaking", "relevance_score": 0.9, "virality_potential": 1.4, "domain": "defi"},
  {"topic": "Gas wars", "relevance_score": 0.9}
]}`
	twitterJSON   = `{"post": "Restaking is just staking with extra steps 🔁", "hashtags": ["#DeFi"], "emoji_count": 1}`
	instagramJSON = `{"caption": "Stake it twice, smile twice.", "hashtags": ["#web3"], "emoji_count": 0}`
	linkedinJSON  = `{"post": "Restaking raises real questions about shared security.", "hashtags": ["#blockchain"], "professional_tone_score": 1.7}`
)

// Substrings identifying each prompt.
const (
	matchBusiness  = "brand strategist"
	matchTrends    = "trend intelligence expert"
	matchTwitter   = "viral Twitter"
	matchInstagram = "Instagram content strategist"
	matchLinkedIn  = "LinkedIn thought leader"
)

func scriptedLLM() *testsupport.FakeLLM {
	return testsupport.NewFakeLLM().
		On(matchBusiness, businessContextJSON).
		On(matchTrends, trendsJSON).
		On(matchTwitter, twitterJSON).
		On(matchInstagram, instagramJSON).
		On(matchLinkedIn, linkedinJSON)
}

func writeDocs(t *testing.T, cfg *config.Config) {
	t.Helper()
	testsupport.WriteText(t, cfg.Paths.BusinessDocumentsDir+"/about.md", "# About\n\nWe make self custody feel friendly.\n")
	testsupport.WriteText(t, cfg.Paths.BusinessDocumentsDir+"/voice/tone.txt", "Playful, bold, never smug.\n")
}

func newInput(t *testing.T, cfg *config.Config, override string, values map[stage.Key]json.RawMessage) *stage.Input {
	t.Helper()
	resolved, err := flowconfig.Resolve(flowconfig.DefaultsFrom(cfg), override, nil)
	require.NoError(t, err)
	return stage.NewInput("text", "run-1", t.TempDir(), resolved, nil, values)
}

func runNode(t *testing.T, node stage.Node, in *stage.Input) (*stage.Output, error) {
	t.Helper()
	return node.Run(context.Background(), in)
}

func jsonDecode(out *stage.Output, key stage.Key, dst any) error {
	raw, ok := out.Values()[key]
	if !ok {
		return errors.New("missing " + key.String())
	}
	return json.Unmarshal(raw, dst)
}
