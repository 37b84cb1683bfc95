package provider

import (
	"context"
	"errors"
	"maps"
	"net/http"
	"slices"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Default endpoints for the two OpenAI-compatible families.
const (
	DefaultOpenAIBaseURL   = "https://api.openai.com/v1/"
	DefaultAnyscaleBaseURL = "https://api.endpoints.anyscale.com/v1/"
)

// ---------------------------------------------------------------------------
// OpenAIAdapter struct + constructors
// ---------------------------------------------------------------------------

// OpenAIAdapter implements Adapter for backends speaking the OpenAI Chat
// Completions protocol. The same adapter serves OpenAIChat and, pointed at
// Anyscale Endpoints, AnyscaleLlamaChat: both are stateless, so the full
// transcript arrives in Call.Messages on every turn.
type OpenAIAdapter struct {
	family Family
	client openai.Client
}

// NewOpenAIAdapter creates an adapter for the OpenAIChat family.
// An empty baseURL selects api.openai.com.
func NewOpenAIAdapter(apiKey, baseURL string, httpClient *http.Client) *OpenAIAdapter {
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}
	return newOpenAICompatible(OpenAIChat, apiKey, baseURL, httpClient)
}

// NewAnyscaleAdapter creates an adapter for the AnyscaleLlamaChat family.
// An empty baseURL selects Anyscale Endpoints.
func NewAnyscaleAdapter(apiKey, baseURL string, httpClient *http.Client) *OpenAIAdapter {
	if baseURL == "" {
		baseURL = DefaultAnyscaleBaseURL
	}
	return newOpenAICompatible(AnyscaleLlamaChat, apiKey, baseURL, httpClient)
}

func newOpenAICompatible(family Family, apiKey, baseURL string, httpClient *http.Client) *OpenAIAdapter {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &OpenAIAdapter{
		family: family,
		client: openai.NewClient(
			option.WithAPIKey(apiKey),
			option.WithBaseURL(baseURL),
			option.WithHTTPClient(httpClient),
			// Retries are the caller's decision, never ours.
			option.WithMaxRetries(0),
		),
	}
}

// Family returns OpenAIChat or AnyscaleLlamaChat.
func (a *OpenAIAdapter) Family() Family {
	return a.family
}

// ---------------------------------------------------------------------------
// Request translation
// ---------------------------------------------------------------------------

// toOpenAIMessages maps our role-tagged messages onto the SDK's message
// union. Roles line up one to one.
func toOpenAIMessages(msgs []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

// paramOptions forwards every parameter as a raw JSON body field. The SDK
// does not validate them, so a key the backend rejects surfaces as an API
// error from the call itself.
func paramOptions(p Params) []option.RequestOption {
	opts := make([]option.RequestOption, 0, len(p))
	for _, k := range slices.Sorted(maps.Keys(p)) {
		opts = append(opts, option.WithJSONSet(jsonSetKey(k), p[k]))
	}
	return opts
}

// WithJSONSet takes an sjson path. Escaping its metacharacters keeps a key
// like "a.b" a single top-level field.
var sjsonEscaper = strings.NewReplacer(`\`, `\\`, `.`, `\.`, `*`, `\*`, `?`, `\?`)

func jsonSetKey(k string) string {
	return sjsonEscaper.Replace(k)
}

// ---------------------------------------------------------------------------
// Send
// ---------------------------------------------------------------------------

// Send posts Call.Messages to the chat completions endpoint. The assistant
// text is read from choices[0].message.content.
func (a *OpenAIAdapter) Send(ctx context.Context, call *Call) (*Reply, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(call.Model),
		Messages: toOpenAIMessages(call.Messages),
	}

	completion, err := a.client.Chat.Completions.New(ctx, params, paramOptions(call.Params)...)
	if err != nil {
		return nil, &RemoteCallError{Family: a.family, Model: call.Model, Err: err}
	}

	const path = "choices[0].message.content"
	if len(completion.Choices) == 0 {
		return nil, &MalformedResponseError{Family: a.family, Model: call.Model, Path: path}
	}

	msg := completion.Choices[0].Message
	if msg.Content == "" && msg.Refusal != "" {
		return nil, &MalformedResponseError{
			Family: a.family,
			Model:  call.Model,
			Path:   path,
			Err:    errors.New("model refused: " + msg.Refusal),
		}
	}
	// Valid is false when content is null or message is absent.
	if !msg.JSON.Content.Valid() {
		return nil, &MalformedResponseError{Family: a.family, Model: call.Model, Path: path}
	}

	return &Reply{Text: msg.Content}, nil
}
