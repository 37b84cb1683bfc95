// Package dispatch is the public entry point of llminvoke: it resolves a
// model to its backend family, normalizes parameters, reconciles chat
// history and hands the result to that family's adapter.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/howard-nolan/llminvoke/internal/metrics"
	"github.com/howard-nolan/llminvoke/internal/provider"
)

// Request is one logical invocation.
type Request struct {
	Model        string
	Prompt       string
	Params       provider.Params
	SystemPrompt string

	// History is the caller's conversation. For OpenAIChat and
	// AnyscaleLlamaChat it is extended in place (see Reconcile); the other
	// families only read it, or ignore it entirely.
	History *provider.History

	WantHistory bool
}

// Result is the normalized outcome of an invocation.
type Result struct {
	Text   string
	Family provider.Family

	// History is set iff the request asked for it or the family owns the
	// conversation (VertexChat). BedrockClaude never returns one.
	History *provider.History
}

// Dispatcher routes requests to adapters. It keeps no state between calls;
// the adapter table and the optional metrics are fixed at construction.
type Dispatcher struct {
	adapters map[provider.Family]provider.Adapter
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// WithMetrics records every invocation on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// New creates a Dispatcher serving the given adapters. A later adapter for
// the same family replaces an earlier one.
func New(adapters []provider.Adapter, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		adapters: make(map[provider.Family]provider.Adapter, len(adapters)),
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, a := range adapters {
		d.adapters[a.Family()] = a
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Families returns the families this dispatcher has an adapter for.
func (d *Dispatcher) Families() []provider.Family {
	var out []provider.Family
	for _, f := range provider.Families {
		if _, ok := d.adapters[f]; ok {
			out = append(out, f)
		}
	}
	return out
}

// Invoke runs one request: resolve family → normalize parameters →
// reconcile history → adapter call → assemble result.
//
// Errors are *provider.UnsupportedModelError (returned before any remote
// call), *provider.RemoteCallError or *provider.MalformedResponseError.
// Nothing is retried. If the call fails, any messages Reconcile appended to
// req.History are removed again.
func (d *Dispatcher) Invoke(ctx context.Context, req *Request) (*Result, error) {
	family, ok := provider.Lookup(req.Model)
	if !ok {
		d.metrics.ObserveInvocation("", metrics.OutcomeUnsupported)
		return nil, &provider.UnsupportedModelError{Model: req.Model}
	}

	adapter, ok := d.adapters[family]
	if !ok {
		d.metrics.ObserveInvocation(family.String(), metrics.OutcomeUnsupported)
		return nil, &provider.UnsupportedModelError{
			Model:  req.Model,
			Reason: fmt.Sprintf("no adapter configured for family %s", family),
		}
	}

	params := Normalize(req.Params, family)
	turn := Reconcile(req.History, req.SystemPrompt, req.Prompt, family)
	call := turn.Call(req.Model, params)

	logger := d.logger.With("model", req.Model, "family", family.String())
	logger.DebugContext(ctx, "sending request",
		"messages", len(call.Messages),
		"seed", len(call.Seed),
		"params", len(params),
	)

	start := time.Now()
	reply, err := adapter.Send(ctx, call)
	elapsed := time.Since(start)
	d.metrics.ObserveCall(family.String(), elapsed, sentMessages(call))

	if err != nil {
		turn.Abort()
		err = classify(family, req.Model, err)
		d.metrics.ObserveInvocation(family.String(), outcomeOf(err))
		logger.WarnContext(ctx, "remote call failed", "error", err, "elapsed", elapsed)
		return nil, err
	}

	d.metrics.ObserveInvocation(family.String(), metrics.OutcomeOK)
	logger.DebugContext(ctx, "received reply", "chars", len(reply.Text), "elapsed", elapsed)

	return &Result{
		Text:    reply.Text,
		Family:  family,
		History: turn.Finish(reply, req.WantHistory),
	}, nil
}

// classify makes sure whatever an adapter returned surfaces as one of the
// documented error kinds.
func classify(family provider.Family, model string, err error) error {
	var (
		remote    *provider.RemoteCallError
		malformed *provider.MalformedResponseError
	)
	if errors.As(err, &remote) || errors.As(err, &malformed) {
		return err
	}
	return &provider.RemoteCallError{Family: family, Model: model, Err: err}
}

// sentMessages counts the messages a call carries: the transcript, or the
// session seed plus the new prompt. Single-prompt families count as one.
func sentMessages(call *provider.Call) int {
	if n := len(call.Messages); n > 0 {
		return n
	}
	return len(call.Seed) + 1
}

func outcomeOf(err error) string {
	var malformed *provider.MalformedResponseError
	if errors.As(err, &malformed) {
		return metrics.OutcomeMalformed
	}
	return metrics.OutcomeRemote
}
