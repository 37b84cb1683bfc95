package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/howard-nolan/llminvoke/internal/metrics"
	"github.com/howard-nolan/llminvoke/internal/provider"
)

// fakeAdapter records every Call it receives and answers with a fixed reply
// or error.
type fakeAdapter struct {
	family provider.Family
	reply  *provider.Reply
	err    error

	mu    sync.Mutex
	calls []provider.Call
}

func (f *fakeAdapter) Family() provider.Family { return f.family }

func (f *fakeAdapter) Send(_ context.Context, call *provider.Call) (*provider.Reply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	// Copy the messages: the caller's history keeps growing after Send.
	c := *call
	c.Messages = append([]provider.Message(nil), call.Messages...)
	f.calls = append(f.calls, c)

	if f.err != nil {
		return nil, f.err
	}
	return f.reply, nil
}

func TestInvoke_UnknownModel(t *testing.T) {
	fake := &fakeAdapter{family: provider.OpenAIChat, reply: &provider.Reply{Text: "x"}}
	d := New([]provider.Adapter{fake})

	_, err := d.Invoke(context.Background(), &Request{Model: "not-a-real-model", Prompt: "hi"})

	var unsupported *provider.UnsupportedModelError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "not-a-real-model", unsupported.Model)
	assert.Empty(t, fake.calls, "no remote call attempted")
}

func TestInvoke_FamilyWithoutAdapter(t *testing.T) {
	d := New(nil)

	_, err := d.Invoke(context.Background(), &Request{Model: "gpt-4", Prompt: "hi"})

	var unsupported *provider.UnsupportedModelError
	require.ErrorAs(t, err, &unsupported)
	assert.Contains(t, unsupported.Error(), "openai-chat")
}

func TestInvoke_OpenAIFirstTurn(t *testing.T) {
	fake := &fakeAdapter{family: provider.OpenAIChat, reply: &provider.Reply{Text: "Hello."}}
	d := New([]provider.Adapter{fake})

	res, err := d.Invoke(context.Background(), &Request{
		Model:        "gpt-3.5-turbo",
		Prompt:       "Hi",
		SystemPrompt: "You are terse.",
		Params:       provider.Params{"n_tokens": 20, "temperature": 0},
		WantHistory:  true,
	})
	require.NoError(t, err)

	require.Len(t, fake.calls, 1)
	sent := fake.calls[0]
	assert.Equal(t, []provider.Message{sys("You are terse."), user("Hi")}, sent.Messages)
	assert.Equal(t, provider.Params{"max_tokens": 20, "temperature": 0}, sent.Params)
	assert.Equal(t, "gpt-3.5-turbo", sent.Model)

	assert.Equal(t, "Hello.", res.Text)
	assert.Equal(t, provider.OpenAIChat, res.Family)
	require.NotNil(t, res.History)
	assert.Equal(t, []provider.Message{sys("You are terse."), user("Hi"), bot("Hello.")}, res.History.Messages)
}

func TestInvoke_OpenAIMultiTurnRoundTrip(t *testing.T) {
	fake := &fakeAdapter{family: provider.OpenAIChat, reply: &provider.Reply{Text: "ok"}}
	d := New([]provider.Adapter{fake})

	h := provider.NewHistory(user("one"), bot("two"))

	_, err := d.Invoke(context.Background(), &Request{Model: "gpt-4", Prompt: "three", History: h})
	require.NoError(t, err)

	assert.Len(t, fake.calls[0].Messages, 3, "length+1 before sending")
	assert.Equal(t, 4, h.Len(), "length+2 after receiving")

	_, err = d.Invoke(context.Background(), &Request{Model: "gpt-4", Prompt: "five", History: h})
	require.NoError(t, err)

	assert.Len(t, fake.calls[1].Messages, 5)
	assert.Equal(t, 6, h.Len())
}

func TestInvoke_HistoryOmittedUnlessRequested(t *testing.T) {
	fake := &fakeAdapter{family: provider.AnyscaleLlamaChat, reply: &provider.Reply{Text: "ok"}}
	d := New([]provider.Adapter{fake})

	res, err := d.Invoke(context.Background(), &Request{Model: "meta-llama/Llama-2-7b-chat-hf", Prompt: "hi"})
	require.NoError(t, err)

	assert.Nil(t, res.History)
}

func TestInvoke_VertexChatAlwaysReturnsSessionHistory(t *testing.T) {
	session := []provider.Message{user("seed"), bot("seeded"), user("next"), bot("reply")}
	fake := &fakeAdapter{family: provider.VertexChat, reply: &provider.Reply{Text: "reply", History: session}}
	d := New([]provider.Adapter{fake})

	h := provider.NewHistory(user("seed"), bot("seeded"))
	res, err := d.Invoke(context.Background(), &Request{
		Model:        "chat-bison",
		Prompt:       "next",
		SystemPrompt: "context",
		History:      h,
		Params:       provider.Params{"max_tokens": 100},
	})
	require.NoError(t, err)

	sent := fake.calls[0]
	assert.Equal(t, "next", sent.Prompt)
	assert.Equal(t, "context", sent.SystemPrompt)
	assert.Equal(t, h.Messages, sent.Seed)
	assert.Equal(t, provider.Params{"max_output_tokens": 100}, sent.Params)

	require.NotNil(t, res.History)
	assert.Equal(t, session, res.History.Messages)
	assert.Equal(t, 2, h.Len())
}

func TestInvoke_VertexTextReturnsEmptyHistory(t *testing.T) {
	fake := &fakeAdapter{family: provider.VertexText, reply: &provider.Reply{Text: "done"}}
	d := New([]provider.Adapter{fake})

	res, err := d.Invoke(context.Background(), &Request{
		Model:        "text-bison",
		Prompt:       "p",
		SystemPrompt: "dropped",
		History:      provider.NewHistory(user("dropped"), bot("dropped")),
		WantHistory:  true,
	})
	require.NoError(t, err)

	assert.Equal(t, "p", fake.calls[0].Prompt)
	assert.Empty(t, fake.calls[0].SystemPrompt)
	assert.Empty(t, fake.calls[0].Seed)
	require.NotNil(t, res.History)
	assert.Zero(t, res.History.Len())
}

func TestInvoke_BedrockNeverForwardsHistory(t *testing.T) {
	fake := &fakeAdapter{family: provider.BedrockClaude, reply: &provider.Reply{Text: "done"}}
	d := New([]provider.Adapter{fake})

	res, err := d.Invoke(context.Background(), &Request{
		Model:        "anthropic.claude-v2",
		Prompt:       "p",
		SystemPrompt: "dropped",
		History:      provider.NewHistory(user("dropped")),
		WantHistory:  true,
	})
	require.NoError(t, err)

	sent := fake.calls[0]
	assert.Equal(t, "p", sent.Prompt)
	assert.Empty(t, sent.Messages)
	assert.Empty(t, sent.Seed)
	assert.Empty(t, sent.SystemPrompt)
	assert.Nil(t, res.History)
}

func TestInvoke_RemoteFailureRollsBackHistory(t *testing.T) {
	transport := errors.New("connection reset")
	fake := &fakeAdapter{family: provider.OpenAIChat, err: transport}
	d := New([]provider.Adapter{fake})

	h := provider.NewHistory(user("a"), bot("b"))
	_, err := d.Invoke(context.Background(), &Request{Model: "gpt-4", Prompt: "c", History: h})

	var remote *provider.RemoteCallError
	require.ErrorAs(t, err, &remote, "untyped adapter errors are wrapped")
	assert.ErrorIs(t, err, transport)
	assert.Equal(t, provider.OpenAIChat, remote.Family)
	assert.Equal(t, 2, h.Len())
}

func TestInvoke_MalformedResponsePassesThrough(t *testing.T) {
	fake := &fakeAdapter{
		family: provider.BedrockClaude,
		err:    &provider.MalformedResponseError{Family: provider.BedrockClaude, Model: "anthropic.claude-v2", Path: "completion"},
	}
	d := New([]provider.Adapter{fake})

	_, err := d.Invoke(context.Background(), &Request{Model: "anthropic.claude-v2", Prompt: "p"})

	var malformed *provider.MalformedResponseError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, "completion", malformed.Path)
}

func TestInvoke_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	ok := &fakeAdapter{family: provider.OpenAIChat, reply: &provider.Reply{Text: "x"}}
	bad := &fakeAdapter{family: provider.VertexText, err: fmt.Errorf("boom")}
	d := New([]provider.Adapter{ok, bad}, WithMetrics(m))

	ctx := context.Background()
	_, _ = d.Invoke(ctx, &Request{Model: "gpt-4", Prompt: "p"})
	_, _ = d.Invoke(ctx, &Request{Model: "gpt-4", Prompt: "p"})
	_, _ = d.Invoke(ctx, &Request{Model: "text-bison", Prompt: "p"})
	_, _ = d.Invoke(ctx, &Request{Model: "nope", Prompt: "p"})

	count, err := testutil.GatherAndCount(reg, "llminvoke_invocations_total")
	require.NoError(t, err)
	assert.Equal(t, 3, count, "one series per family/outcome pair")
}

func TestInvoke_SentMessagesIncludesSessionSeed(t *testing.T) {
	reg := prometheus.NewRegistry()
	fake := &fakeAdapter{family: provider.VertexChat, reply: &provider.Reply{Text: "ok"}}
	d := New([]provider.Adapter{fake}, WithMetrics(metrics.New(reg)))

	_, err := d.Invoke(context.Background(), &Request{
		Model:   "chat-bison",
		Prompt:  "third",
		History: provider.NewHistory(user("first"), bot("second")),
	})
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)
	var sum float64
	for _, mf := range families {
		if mf.GetName() == "llminvoke_sent_messages" {
			sum = mf.GetMetric()[0].GetHistogram().GetSampleSum()
		}
	}
	assert.Equal(t, 3.0, sum, "two seed messages plus the prompt")
}

func TestSentMessages(t *testing.T) {
	assert.Equal(t, 2, sentMessages(&provider.Call{Messages: []provider.Message{sys("s"), user("u")}}))
	assert.Equal(t, 3, sentMessages(&provider.Call{Prompt: "p", Seed: []provider.Message{user("a"), bot("b")}}))
	assert.Equal(t, 1, sentMessages(&provider.Call{Prompt: "p"}))
}

func TestInvoke_ConcurrentIndependentHistories(t *testing.T) {
	fake := &fakeAdapter{family: provider.OpenAIChat, reply: &provider.Reply{Text: "ok"}}
	d := New([]provider.Adapter{fake})

	const n = 16
	histories := make([]*provider.History, n)
	var wg sync.WaitGroup
	for i := range n {
		histories[i] = &provider.History{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := d.Invoke(context.Background(), &Request{Model: "gpt-4", Prompt: "hi", History: histories[i]})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	for _, h := range histories {
		assert.Equal(t, 3, h.Len())
	}
	assert.Len(t, fake.calls, n)
}

func TestFamilies(t *testing.T) {
	d := New([]provider.Adapter{
		&fakeAdapter{family: provider.BedrockClaude},
		&fakeAdapter{family: provider.OpenAIChat},
	})

	assert.Equal(t, []provider.Family{provider.OpenAIChat, provider.BedrockClaude}, d.Families())
}
