package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

// NewBedrockClient creates a bedrockruntime client from the default AWS
// credential chain. An empty region falls back to AWS_REGION / the shared
// config file.
func NewBedrockClient(ctx context.Context, region string, httpClient *http.Client) (*bedrockruntime.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	if httpClient != nil {
		opts = append(opts, awsconfig.WithHTTPClient(httpClient))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}
	return bedrockruntime.NewFromConfig(cfg), nil
}

// ---------------------------------------------------------------------------
// BedrockAdapter struct + constructor
// ---------------------------------------------------------------------------

// modelInvoker is the part of *bedrockruntime.Client the adapter uses.
type modelInvoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// BedrockAdapter implements Adapter for Claude text completion models on
// Amazon Bedrock. The family has no notion of chat turns or a separate
// system prompt: the payload carries one raw prompt, and anything the caller
// needs the model to know must already be folded into it.
type BedrockAdapter struct {
	runtime modelInvoker
}

// NewBedrockAdapter creates a BedrockClaude adapter.
func NewBedrockAdapter(runtime *bedrockruntime.Client) *BedrockAdapter {
	return &BedrockAdapter{runtime: runtime}
}

// Family returns BedrockClaude.
func (a *BedrockAdapter) Family() Family {
	return BedrockClaude
}

// ---------------------------------------------------------------------------
// Request translation
// ---------------------------------------------------------------------------

// Claude's text completion API expects alternating "\n\nHuman:" and
// "\n\nAssistant:" turns, ending with an open Assistant turn.
const (
	humanPrefix     = "\n\nHuman:"
	assistantPrefix = "\n\nAssistant:"
)

// defaultMaxTokensToSample is used when the caller sets no length cap.
// Bedrock rejects Claude requests without max_tokens_to_sample.
const defaultMaxTokensToSample = 300

// claudeResponse is the decoded InvokeModel body. Completion is a pointer
// so a missing field can be told apart from an empty completion.
type claudeResponse struct {
	Completion *string `json:"completion"`
	StopReason string  `json:"stop_reason"`
}

// framePrompt wraps a bare prompt in Human/Assistant markers. A prompt the
// caller has already framed is sent as is.
func framePrompt(prompt string) string {
	if strings.HasPrefix(prompt, humanPrefix) {
		if strings.HasSuffix(strings.TrimRight(prompt, " "), assistantPrefix) {
			return prompt
		}
		return prompt + assistantPrefix
	}
	return humanPrefix + " " + prompt + assistantPrefix
}

// toClaudeBody builds the InvokeModel JSON body. Parameters are copied in
// verbatim next to the prompt; Bedrock validates them.
func toClaudeBody(call *Call) ([]byte, error) {
	body := make(map[string]any, len(call.Params)+2)
	for k, v := range call.Params {
		body[k] = v
	}
	if _, ok := body["max_tokens_to_sample"]; !ok {
		body["max_tokens_to_sample"] = defaultMaxTokensToSample
	}
	body["prompt"] = framePrompt(call.Prompt)
	return json.Marshal(body)
}

// ---------------------------------------------------------------------------
// Send
// ---------------------------------------------------------------------------

// Send invokes the model with Call.Prompt. The text is the "completion"
// field of the decoded response body.
func (a *BedrockAdapter) Send(ctx context.Context, call *Call) (*Reply, error) {
	body, err := toClaudeBody(call)
	if err != nil {
		return nil, &RemoteCallError{Family: BedrockClaude, Model: call.Model, Err: fmt.Errorf("marshaling request: %w", err)}
	}

	out, err := a.runtime.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(call.Model),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return nil, &RemoteCallError{Family: BedrockClaude, Model: call.Model, Err: err}
	}

	var resp claudeResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return nil, &MalformedResponseError{Family: BedrockClaude, Model: call.Model, Path: "completion", Err: err}
	}
	if resp.Completion == nil {
		return nil, &MalformedResponseError{Family: BedrockClaude, Model: call.Model, Path: "completion"}
	}

	return &Reply{Text: *resp.Completion}, nil
}
