// Package provider defines the Adapter interface and the LLM backend adapters.
//
// Every backend family (OpenAI chat, Vertex chat, Vertex text, Anyscale Llama
// chat, Bedrock Claude) has exactly one adapter. Adapters receive parameters
// that were already normalized and messages that were already reconciled by
// the dispatch package; they only build the wire payload, make the call and
// pull the generated text out of the response envelope.
package provider

import "context"

// Adapter is the capability every backend family must provide.
//
// Implementations must be safe for concurrent use: the dispatcher shares one
// adapter per family across all in-flight invocations.
type Adapter interface {
	// Family reports which backend family this adapter serves.
	Family() Family

	// Send performs one blocking remote call. Failures of the transport are
	// returned as *RemoteCallError, envelopes that do not match the expected
	// extraction path as *MalformedResponseError.
	Send(ctx context.Context, call *Call) (*Reply, error)
}

// ---------------------------------------------------------------------------
// Unified call types
// ---------------------------------------------------------------------------

// Call is everything an adapter needs for one remote call. Which fields are
// populated depends on the family's state model:
//
//   - StateResubmit: Messages holds the full transcript to send.
//   - StateSession:  Prompt is the new turn, SystemPrompt and Seed initialise
//     the remote chat session.
//   - StateBlind, StateFolded: only Prompt is set.
type Call struct {
	Model        string
	Params       Params
	Messages     []Message
	Prompt       string
	SystemPrompt string
	Seed         []Message
}

// Reply is the normalized output of one remote call.
type Reply struct {
	Text string

	// History is only set by adapters whose backend owns the conversation
	// (VertexChat). It is the session's transcript after the call.
	History []Message
}

// ---------------------------------------------------------------------------
// Messages and history
// ---------------------------------------------------------------------------

// Role is the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single role-tagged turn. It is a value type; once built it is
// never modified in place.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// History is a caller-owned conversation transcript. It is handled by pointer
// so the dispatcher can extend it in place: passing the same *History to
// successive invocations is how a multi-turn conversation is carried.
//
// History is not synchronized. At most one invocation may use a given
// History at a time.
type History struct {
	Messages []Message `json:"messages"`
}

// NewHistory returns a history holding a copy of msgs.
func NewHistory(msgs ...Message) *History {
	h := &History{}
	h.Messages = append(h.Messages, msgs...)
	return h
}

// Len returns the number of messages, treating a nil history as empty.
func (h *History) Len() int {
	if h == nil {
		return 0
	}
	return len(h.Messages)
}

// Append adds messages to the end of the transcript.
func (h *History) Append(msgs ...Message) {
	h.Messages = append(h.Messages, msgs...)
}

// Snapshot returns a copy of the messages that is safe to hand to an adapter.
func (h *History) Snapshot() []Message {
	if h == nil || len(h.Messages) == 0 {
		return nil
	}
	out := make([]Message, len(h.Messages))
	copy(out, h.Messages)
	return out
}
