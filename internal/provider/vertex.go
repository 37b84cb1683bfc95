package provider

import (
	"context"
	"fmt"
	"maps"
	"math"
	"net/http"
	"slices"
	"strings"

	"google.golang.org/genai"
)

// NewVertexClient creates a genai client bound to the Vertex AI backend.
// Credentials come from Application Default Credentials.
func NewVertexClient(ctx context.Context, project, location string, httpClient *http.Client) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Backend:    genai.BackendVertexAI,
		Project:    project,
		Location:   location,
		HTTPClient: httpClient,
	})
	if err != nil {
		return nil, fmt.Errorf("creating vertex client: %w", err)
	}
	return client, nil
}

// ---------------------------------------------------------------------------
// SDK seams
// ---------------------------------------------------------------------------

// vertexSession is the part of *genai.Chat the chat adapter uses. The chat
// object owns the transcript: every successful SendMessage records both the
// user turn and the model turn.
type vertexSession interface {
	SendMessage(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
	History(curated bool) []*genai.Content
}

// sessionStarter opens a chat session seeded with history.
type sessionStarter func(ctx context.Context, model string, config *genai.GenerateContentConfig, history []*genai.Content) (vertexSession, error)

// contentGenerator is the part of *genai.Models the text adapter uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// ---------------------------------------------------------------------------
// VertexChatAdapter
// ---------------------------------------------------------------------------

// VertexChatAdapter implements Adapter for the VertexChat family. Unlike the
// OpenAI-style families it never assembles a transcript itself: the caller's
// history and system prompt seed a remote chat session, and the reply's
// history is whatever that session reports afterwards.
type VertexChatAdapter struct {
	start sessionStarter
}

// NewVertexChatAdapter creates a VertexChat adapter on top of client.
func NewVertexChatAdapter(client *genai.Client) *VertexChatAdapter {
	return &VertexChatAdapter{
		start: func(ctx context.Context, model string, config *genai.GenerateContentConfig, history []*genai.Content) (vertexSession, error) {
			chat, err := client.Chats.Create(ctx, model, config, history)
			if err != nil {
				return nil, err
			}
			return chat, nil
		},
	}
}

// Family returns VertexChat.
func (a *VertexChatAdapter) Family() Family {
	return VertexChat
}

// Send opens a session seeded with Call.Seed and Call.SystemPrompt, sends
// Call.Prompt as the next user turn and returns the session's transcript.
func (a *VertexChatAdapter) Send(ctx context.Context, call *Call) (*Reply, error) {
	seed, systemParts := toGenaiHistory(call.Seed)
	if call.SystemPrompt != "" {
		systemParts = append([]string{call.SystemPrompt}, systemParts...)
	}

	config, err := toGenaiConfig(call.Params, systemParts)
	if err != nil {
		return nil, &RemoteCallError{Family: VertexChat, Model: call.Model, Err: err}
	}

	session, err := a.start(ctx, call.Model, config, seed)
	if err != nil {
		return nil, &RemoteCallError{Family: VertexChat, Model: call.Model, Err: fmt.Errorf("starting chat: %w", err)}
	}

	resp, err := session.SendMessage(ctx, genai.Part{Text: call.Prompt})
	if err != nil {
		return nil, &RemoteCallError{Family: VertexChat, Model: call.Model, Err: err}
	}

	text, ok := candidateText(resp)
	if !ok {
		return nil, &MalformedResponseError{Family: VertexChat, Model: call.Model, Path: candidatePath}
	}

	return &Reply{
		Text:    text,
		History: fromGenaiHistory(session.History(false)),
	}, nil
}

// ---------------------------------------------------------------------------
// VertexTextAdapter
// ---------------------------------------------------------------------------

// VertexTextAdapter implements Adapter for the VertexText family: one prompt
// in, one completion out. History and system instructions never reach it.
type VertexTextAdapter struct {
	models contentGenerator
}

// NewVertexTextAdapter creates a VertexText adapter on top of client.
func NewVertexTextAdapter(client *genai.Client) *VertexTextAdapter {
	return &VertexTextAdapter{models: client.Models}
}

// Family returns VertexText.
func (a *VertexTextAdapter) Family() Family {
	return VertexText
}

// Send generates a completion for Call.Prompt.
func (a *VertexTextAdapter) Send(ctx context.Context, call *Call) (*Reply, error) {
	config, err := toGenaiConfig(call.Params, nil)
	if err != nil {
		return nil, &RemoteCallError{Family: VertexText, Model: call.Model, Err: err}
	}

	resp, err := a.models.GenerateContent(ctx, call.Model, genai.Text(call.Prompt), config)
	if err != nil {
		return nil, &RemoteCallError{Family: VertexText, Model: call.Model, Err: err}
	}

	text, ok := candidateText(resp)
	if !ok {
		return nil, &MalformedResponseError{Family: VertexText, Model: call.Model, Path: candidatePath}
	}
	return &Reply{Text: text}, nil
}

// ---------------------------------------------------------------------------
// Translation helpers
// ---------------------------------------------------------------------------

const candidatePath = "candidates[0].content.parts[].text"

// toGenaiConfig maps normalized parameters onto GenerateContentConfig. The
// SDK has typed fields only, so a key with no field is rejected here, at
// call time, rather than by the normalizer.
func toGenaiConfig(p Params, systemParts []string) (*genai.GenerateContentConfig, error) {
	config := &genai.GenerateContentConfig{}

	if len(systemParts) > 0 {
		config.SystemInstruction = genai.NewContentFromText(strings.Join(systemParts, "\n"), genai.RoleUser)
	}

	for _, key := range slices.Sorted(maps.Keys(p)) {
		value := p[key]
		var err error
		switch key {
		case "temperature":
			config.Temperature, err = float32Ptr(value)
		case "top_p":
			config.TopP, err = float32Ptr(value)
		case "top_k":
			config.TopK, err = float32Ptr(value)
		case "presence_penalty":
			config.PresencePenalty, err = float32Ptr(value)
		case "frequency_penalty":
			config.FrequencyPenalty, err = float32Ptr(value)
		case "max_output_tokens":
			config.MaxOutputTokens, err = asInt32(value, 0)
		case "candidate_count":
			config.CandidateCount, err = asInt32(value, 0)
		case "seed":
			var n int32
			n, err = asInt32(value, math.MinInt32)
			config.Seed = genai.Ptr(n)
		case "stop_sequences":
			config.StopSequences, err = asStrings(value)
		default:
			return nil, fmt.Errorf("vertex does not accept parameter %q", key)
		}
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", key, err)
		}
	}

	return config, nil
}

func float32Ptr(v any) (*float32, error) {
	f, err := asFloat(v)
	if err != nil {
		return nil, err
	}
	return genai.Ptr(float32(f)), nil
}

// toGenaiHistory converts a seed transcript into genai contents. Vertex chat
// sessions have no system role, so system messages are returned separately
// and folded into the system instruction.
func toGenaiHistory(msgs []Message) ([]*genai.Content, []string) {
	var (
		contents []*genai.Content
		system   []string
	)
	for _, m := range msgs {
		switch m.Role {
		case RoleSystem:
			system = append(system, m.Content)
		case RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	return contents, system
}

// fromGenaiHistory converts a session transcript back into messages.
func fromGenaiHistory(contents []*genai.Content) []Message {
	out := make([]Message, 0, len(contents))
	for _, c := range contents {
		if c == nil {
			continue
		}
		role := RoleUser
		if c.Role == string(genai.RoleModel) {
			role = RoleAssistant
		}
		out = append(out, Message{Role: role, Content: joinParts(c.Parts)})
	}
	return out
}

// candidateText extracts the text of the first candidate. ok is false when
// there is no candidate or it carries no text part at all.
func candidateText(resp *genai.GenerateContentResponse) (text string, ok bool) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", false
	}
	c := resp.Candidates[0]
	if c == nil || c.Content == nil {
		return "", false
	}
	for _, p := range c.Content.Parts {
		if p != nil && !p.Thought && p.Text != "" {
			ok = true
			break
		}
	}
	return joinParts(c.Content.Parts), ok
}

func joinParts(parts []*genai.Part) string {
	var b strings.Builder
	for _, p := range parts {
		if p == nil || p.Thought {
			continue
		}
		b.WriteString(p.Text)
	}
	return b.String()
}
