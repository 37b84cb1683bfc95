package provider

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeInvoker captures the InvokeModel input and returns a canned body.
type fakeInvoker struct {
	input *bedrockruntime.InvokeModelInput
	body  string
	err   error
}

func (f *fakeInvoker) InvokeModel(_ context.Context, in *bedrockruntime.InvokeModelInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &bedrockruntime.InvokeModelOutput{Body: []byte(f.body), ContentType: aws.String("application/json")}, nil
}

func TestBedrockAdapter_Send(t *testing.T) {
	inv := &fakeInvoker{body: `{"completion":" Four.","stop_reason":"stop_sequence"}`}
	a := &BedrockAdapter{runtime: inv}

	reply, err := a.Send(context.Background(), &Call{
		Model:  "anthropic.claude-v2",
		Prompt: "What is two plus two?",
		Params: Params{"max_tokens_to_sample": 50, "temperature": 0.1},
	})
	require.NoError(t, err)

	assert.Equal(t, " Four.", reply.Text)
	assert.Nil(t, reply.History)

	assert.Equal(t, "anthropic.claude-v2", aws.ToString(inv.input.ModelId))
	assert.Equal(t, "application/json", aws.ToString(inv.input.ContentType))

	var payload map[string]any
	require.NoError(t, json.Unmarshal(inv.input.Body, &payload))
	assert.Equal(t, "\n\nHuman: What is two plus two?\n\nAssistant:", payload["prompt"])
	assert.EqualValues(t, 50, payload["max_tokens_to_sample"])
	assert.EqualValues(t, 0.1, payload["temperature"])
}

func TestBedrockAdapter_PayloadHasOnlyPromptAndParams(t *testing.T) {
	inv := &fakeInvoker{body: `{"completion":"ok"}`}
	a := &BedrockAdapter{runtime: inv}

	// Seed, Messages and SystemPrompt should never be set for this family,
	// but even if they are, the payload must not carry them.
	_, err := a.Send(context.Background(), &Call{
		Model:        "anthropic.claude-v2",
		Prompt:       "p",
		SystemPrompt: "secret system prompt",
		Messages:     []Message{{Role: RoleUser, Content: "old turn"}},
		Seed:         []Message{{Role: RoleUser, Content: "old turn"}},
	})
	require.NoError(t, err)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(inv.input.Body, &payload))
	assert.ElementsMatch(t, []string{"prompt", "max_tokens_to_sample"}, keys(payload))
	assert.EqualValues(t, defaultMaxTokensToSample, payload["max_tokens_to_sample"])
	assert.NotContains(t, string(inv.input.Body), "secret system prompt")
	assert.NotContains(t, string(inv.input.Body), "old turn")
}

func TestBedrockAdapter_MissingCompletion(t *testing.T) {
	for _, body := range []string{`{"stop_reason":"max_tokens"}`, `not json`} {
		a := &BedrockAdapter{runtime: &fakeInvoker{body: body}}

		_, err := a.Send(context.Background(), &Call{Model: "anthropic.claude-v2", Prompt: "p"})

		var malformed *MalformedResponseError
		require.ErrorAs(t, err, &malformed, body)
		assert.Equal(t, "completion", malformed.Path)
	}
}

func TestBedrockAdapter_EmptyCompletionIsNotMalformed(t *testing.T) {
	a := &BedrockAdapter{runtime: &fakeInvoker{body: `{"completion":""}`}}

	reply, err := a.Send(context.Background(), &Call{Model: "anthropic.claude-v2", Prompt: "p"})

	require.NoError(t, err)
	assert.Empty(t, reply.Text)
}

func TestBedrockAdapter_RemoteError(t *testing.T) {
	denied := errors.New("AccessDeniedException")
	a := &BedrockAdapter{runtime: &fakeInvoker{err: denied}}

	_, err := a.Send(context.Background(), &Call{Model: "anthropic.claude-v2", Prompt: "p"})

	var remote *RemoteCallError
	require.ErrorAs(t, err, &remote)
	assert.ErrorIs(t, err, denied)
}

func TestFramePrompt(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"hi", "\n\nHuman: hi\n\nAssistant:"},
		{"\n\nHuman: hi\n\nAssistant:", "\n\nHuman: hi\n\nAssistant:"},
		{"\n\nHuman: hi", "\n\nHuman: hi\n\nAssistant:"},
		{"\n\nHuman: a\n\nAssistant: b\n\nHuman: c", "\n\nHuman: a\n\nAssistant: b\n\nHuman: c\n\nAssistant:"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, framePrompt(tt.in))
	}
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
