package provider

import (
	"fmt"
	"slices"
	"strings"
)

// Family is a class of LLM API sharing one request/response shape and one
// way of handling conversation state.
type Family int

const (
	OpenAIChat Family = iota + 1
	VertexChat
	VertexText
	AnyscaleLlamaChat
	BedrockClaude
)

// Families lists every supported family in declaration order.
var Families = []Family{OpenAIChat, VertexChat, VertexText, AnyscaleLlamaChat, BedrockClaude}

func (f Family) String() string {
	switch f {
	case OpenAIChat:
		return "openai-chat"
	case VertexChat:
		return "vertex-chat"
	case VertexText:
		return "vertex-text"
	case AnyscaleLlamaChat:
		return "anyscale-llama-chat"
	case BedrockClaude:
		return "bedrock-claude"
	default:
		return fmt.Sprintf("family(%d)", int(f))
	}
}

// StateModel describes who keeps a conversation's history for a family.
type StateModel int

const (
	// StateResubmit backends are stateless; the whole transcript is sent on
	// every call.
	StateResubmit StateModel = iota + 1
	// StateSession backends keep the transcript in a remote chat session.
	StateSession
	// StateBlind backends accept a single prompt and ignore history and
	// system instructions.
	StateBlind
	// StateFolded backends accept a single raw prompt; any context must
	// already be folded into it by the caller.
	StateFolded
)

// StateModel returns the family's conversation-state model.
func (f Family) StateModel() StateModel {
	switch f {
	case OpenAIChat, AnyscaleLlamaChat:
		return StateResubmit
	case VertexChat:
		return StateSession
	case VertexText:
		return StateBlind
	case BedrockClaude:
		return StateFolded
	default:
		return 0
	}
}

// LengthCapKey is the parameter name the family uses for the maximum
// number of generated tokens.
func (f Family) LengthCapKey() string {
	switch f {
	case OpenAIChat, AnyscaleLlamaChat:
		return "max_tokens"
	case VertexChat, VertexText:
		return "max_output_tokens"
	case BedrockClaude:
		return "max_tokens_to_sample"
	default:
		return ""
	}
}

// Valid reports whether f is one of the declared families.
func (f Family) Valid() bool {
	return slices.Contains(Families, f)
}

// ---------------------------------------------------------------------------
// Model table
// ---------------------------------------------------------------------------

// models is the static model → family table. Every supported identifier
// belongs to exactly one family; anything else is a configuration error.
var models = map[string]Family{
	"gpt-3.5-turbo":     OpenAIChat,
	"gpt-3.5-turbo-16k": OpenAIChat,
	"gpt-4":             OpenAIChat,
	"gpt-4-32k":         OpenAIChat,
	"gpt-4-turbo":       OpenAIChat,
	"gpt-4o":            OpenAIChat,
	"gpt-4o-mini":       OpenAIChat,

	"chat-bison":       VertexChat,
	"chat-bison@001":   VertexChat,
	"chat-bison@002":   VertexChat,
	"chat-bison-32k":   VertexChat,
	"gemini-1.0-pro":   VertexChat,
	"gemini-1.5-pro":   VertexChat,
	"gemini-1.5-flash": VertexChat,

	"text-bison":       VertexText,
	"text-bison@001":   VertexText,
	"text-bison@002":   VertexText,
	"text-bison-32k":   VertexText,
	"text-unicorn@001": VertexText,

	"meta-llama/Llama-2-7b-chat-hf":       AnyscaleLlamaChat,
	"meta-llama/Llama-2-13b-chat-hf":      AnyscaleLlamaChat,
	"meta-llama/Llama-2-70b-chat-hf":      AnyscaleLlamaChat,
	"codellama/CodeLlama-34b-Instruct-hf": AnyscaleLlamaChat,

	"anthropic.claude-v1":         BedrockClaude,
	"anthropic.claude-v2":         BedrockClaude,
	"anthropic.claude-v2:1":       BedrockClaude,
	"anthropic.claude-instant-v1": BedrockClaude,
}

// Lookup resolves a model identifier to its family.
func Lookup(model string) (Family, bool) {
	f, ok := models[model]
	return f, ok
}

// ModelInfo is one row of the model table.
type ModelInfo struct {
	ID     string `json:"id"`
	Family string `json:"family"`
}

// Models returns the model table sorted by identifier.
func Models() []ModelInfo {
	out := make([]ModelInfo, 0, len(models))
	for id, f := range models {
		out = append(out, ModelInfo{ID: id, Family: f.String()})
	}
	slices.SortFunc(out, func(a, b ModelInfo) int {
		return strings.Compare(a.ID, b.ID)
	})
	return out
}
