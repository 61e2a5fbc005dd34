package metrics_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memeflow/internal/cache"
	"memeflow/internal/metrics"
	"memeflow/internal/services"
)

func TestMetricsCountersAndTextfile(t *testing.T) {
	m := metrics.New()
	m.ObserveCacheLookup("business_context", cache.PolicyFingerprint, cache.ReasonHit)
	m.ObserveCacheLookup("business_context", cache.PolicyFingerprint, cache.ReasonHit)
	m.ObserveNode("text", "business_context", 2*time.Second, nil)
	m.ObserveNode("meme", "template_selection", time.Second, services.UserInput("memeflow", "select", "no templates"))
	m.ObserveRetry("meme", "text_generation", services.Transient(services.ReasonRateLimited, "llm", "complete", "", errors.New("429")))
	m.ObserveFlow("text", "completed", 3*time.Second)

	count, err := testutil.GatherAndCount(m.Registry())
	require.NoError(t, err)
	assert.Positive(t, count)

	path := filepath.Join(t.TempDir(), "textfile", "memeflow.prom")
	require.NoError(t, m.WriteTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, `memeflow_cache_lookups_total{key="business_context",outcome="hit",policy="fingerprint"} 2`)
	assert.Contains(t, text, `memeflow_node_runs_total{flow="meme",node="template_selection",outcome="user_input"} 1`)
	assert.Contains(t, text, `memeflow_node_retries_total{flow="meme",node="text_generation",reason="rate_limited"} 1`)
	assert.True(t, strings.Contains(text, `memeflow_flow_runs_total{flow="text",status="completed"} 1`))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *metrics.Metrics
	m.ObserveCacheLookup("k", cache.PolicyTTL, cache.ReasonMiss)
	m.ObserveNode("f", "n", time.Second, nil)
	m.ObserveFlow("f", "aborted", time.Second)
	assert.NoError(t, m.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")))
	assert.Nil(t, m.Registry())
}
