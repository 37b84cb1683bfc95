package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveInvocation(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveInvocation("openai-chat", OutcomeOK)
	m.ObserveInvocation("openai-chat", OutcomeOK)
	m.ObserveInvocation("", OutcomeUnsupported)

	expected := `
# HELP llminvoke_invocations_total Invocations by backend family and outcome
# TYPE llminvoke_invocations_total counter
llminvoke_invocations_total{family="openai-chat",outcome="ok"} 2
llminvoke_invocations_total{family="unknown",outcome="unsupported_model"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "llminvoke_invocations_total"))
}

func TestObserveCall(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveCall("vertex-chat", 250*time.Millisecond, 3)

	n, err := testutil.GatherAndCount(reg, "llminvoke_remote_call_duration_seconds", "llminvoke_sent_messages")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveInvocation("x", OutcomeOK)
		m.ObserveCall("x", time.Second, 1)
	})
}
