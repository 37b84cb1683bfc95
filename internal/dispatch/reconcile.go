package dispatch

import "github.com/howard-nolan/llminvoke/internal/provider"

// Turn is one invocation's conversation state after reconciliation: what
// the adapter must receive, and where the reply has to be recorded.
type Turn struct {
	Family provider.Family

	// Messages is the full transcript to send (StateResubmit only).
	Messages []provider.Message

	// Prompt is the new user turn for every other state model.
	Prompt string

	// SystemPrompt and Seed initialise a remote session (StateSession only).
	SystemPrompt string
	Seed         []provider.Message

	// transcript is the sequence the assistant reply is appended to
	// (StateResubmit only). It is the caller's own history whenever the
	// caller supplied one.
	transcript *provider.History
	priorLen   int
}

// Reconcile builds the message sequence family expects from the caller's
// history, the system prompt and the new user prompt.
//
// For stateless-resubmission families (OpenAIChat, AnyscaleLlamaChat) the
// caller's history is extended IN PLACE: a non-empty history gets the new
// user message appended, an empty one gets [system, user]. The history is
// not copied; round-tripping the same *History across calls is how a
// multi-turn conversation is meant to be carried. The system prompt is only
// ever injected on the first turn.
//
// The other families never touch history: VertexChat hands it to a remote
// session as a seed, VertexText and BedrockClaude drop it along with the
// system prompt.
func Reconcile(history *provider.History, systemPrompt, prompt string, family provider.Family) *Turn {
	t := &Turn{Family: family}

	switch family.StateModel() {
	case provider.StateResubmit:
		user := provider.Message{Role: provider.RoleUser, Content: prompt}
		switch {
		case history.Len() > 0:
			t.priorLen = history.Len()
			history.Append(user)
			t.transcript = history
		case history != nil:
			history.Append(provider.Message{Role: provider.RoleSystem, Content: systemPrompt}, user)
			t.transcript = history
		default:
			t.transcript = provider.NewHistory(
				provider.Message{Role: provider.RoleSystem, Content: systemPrompt},
				user,
			)
		}
		t.Messages = t.transcript.Snapshot()

	case provider.StateSession:
		t.Prompt = prompt
		t.SystemPrompt = systemPrompt
		t.Seed = history.Snapshot()

	default:
		t.Prompt = prompt
	}

	return t
}

// Call packages the turn for the adapter.
func (t *Turn) Call(model string, params provider.Params) *provider.Call {
	return &provider.Call{
		Model:        model,
		Params:       params,
		Messages:     t.Messages,
		Prompt:       t.Prompt,
		SystemPrompt: t.SystemPrompt,
		Seed:         t.Seed,
	}
}

// Finish records the reply and returns the history to hand back to the
// caller, or nil when there is none to return:
//
//   - StateResubmit: the assistant reply is appended to the transcript
//     (the caller's history, if one was passed); returned iff wantHistory.
//   - StateSession:  the session's transcript; always returned.
//   - StateBlind:    an empty history iff wantHistory.
//   - StateFolded:   never a history.
func (t *Turn) Finish(reply *provider.Reply, wantHistory bool) *provider.History {
	switch t.Family.StateModel() {
	case provider.StateResubmit:
		t.transcript.Append(provider.Message{Role: provider.RoleAssistant, Content: reply.Text})
		if wantHistory {
			return t.transcript
		}
		return nil

	case provider.StateSession:
		return provider.NewHistory(reply.History...)

	case provider.StateBlind:
		if wantHistory {
			return &provider.History{}
		}
		return nil

	default:
		return nil
	}
}

// Abort undoes what Reconcile appended to the caller's history, so a failed
// call leaves the conversation exactly as it was before the invocation.
func (t *Turn) Abort() {
	if t.transcript == nil {
		return
	}
	t.transcript.Messages = t.transcript.Messages[:t.priorLen]
}
