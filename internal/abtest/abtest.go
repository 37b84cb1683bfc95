// Package abtest runs one input through two prompt templates on the same
// model and records each exchange in a per-template CSV transcript.
package abtest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/howard-nolan/llminvoke/internal/dispatch"
	"github.com/howard-nolan/llminvoke/internal/provider"
)

// Placeholder is replaced with the input in every template.
const Placeholder = "{input}"

// Invoker runs one invocation. *dispatch.Dispatcher satisfies it.
type Invoker interface {
	Invoke(ctx context.Context, req *dispatch.Request) (*dispatch.Result, error)
}

// Variant is the outcome for one template.
type Variant struct {
	Template   string
	Prompt     string
	Output     string
	Transcript string // path of the CSV the row was appended to
}

// Result holds both variants of a run.
type Result struct {
	Model string
	Input string
	A, B  Variant
}

// Runner executes A/B runs. It is safe for concurrent use.
type Runner struct {
	invoker Invoker
	store   *Store
	params  provider.Params
	logger  *slog.Logger
}

// NewRunner creates a Runner. params are sent with every invocation.
func NewRunner(invoker Invoker, store *Store, params provider.Params, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Runner{invoker: invoker, store: store, params: params, logger: logger}
}

// Render substitutes input for every {input} in template. A template
// without the placeholder is an error.
func Render(template, input string) (string, error) {
	if !strings.Contains(template, Placeholder) {
		return "", fmt.Errorf("template %q has no %s placeholder", template, Placeholder)
	}
	return strings.ReplaceAll(template, Placeholder, input), nil
}

// Run renders both templates, invokes model with each one concurrently and
// appends an Input,Output row to each template's transcript. Transcripts
// are only written once both invocations have succeeded.
func (r *Runner) Run(ctx context.Context, model, templateA, templateB, input string) (*Result, error) {
	if input == "" {
		return nil, errors.New("abtest: empty input")
	}

	res := &Result{
		Model: model,
		Input: input,
		A:     Variant{Template: templateA},
		B:     Variant{Template: templateB},
	}

	var err error
	if res.A.Prompt, err = Render(templateA, input); err != nil {
		return nil, err
	}
	if res.B.Prompt, err = Render(templateB, input); err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, v := range []*Variant{&res.A, &res.B} {
		g.Go(func() error {
			out, err := r.invoker.Invoke(gctx, &dispatch.Request{
				Model:  model,
				Prompt: v.Prompt,
				Params: r.params.Clone(),
			})
			if err != nil {
				return err
			}
			v.Output = out.Text
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("abtest: %w", err)
	}

	for _, v := range []*Variant{&res.A, &res.B} {
		path, err := r.store.Append(model, v.Template, input, v.Output)
		if err != nil {
			return nil, err
		}
		v.Transcript = path
	}

	r.logger.InfoContext(ctx, "abtest run recorded",
		"model", model,
		"transcript_a", res.A.Transcript,
		"transcript_b", res.B.Transcript,
	)
	return res, nil
}
