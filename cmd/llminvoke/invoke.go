package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/howard-nolan/llminvoke/internal/dispatch"
	"github.com/howard-nolan/llminvoke/internal/provider"
)

func newInvokeCmd(a *app) *cobra.Command {
	var (
		model       string
		system      string
		params      []string
		historyPath string
	)

	cmd := &cobra.Command{
		Use:   "invoke [flags] PROMPT...",
		Short: "Send one prompt to a model and print the reply",
		Long: `Send one prompt to a model and print the reply.

With --history, the conversation is read from a JSON file of
{"role","content"} messages and the updated conversation is written back,
so repeated calls continue the same chat. A missing file starts a new one.
Use "-" as the prompt to read it from stdin.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt, err := readPrompt(args, cmd.InOrStdin())
			if err != nil {
				return err
			}
			p, err := parseParams(params)
			if err != nil {
				return err
			}

			req := &dispatch.Request{
				Model:        model,
				Prompt:       prompt,
				Params:       p,
				SystemPrompt: system,
			}
			if historyPath != "" {
				if req.History, err = loadHistory(historyPath); err != nil {
					return err
				}
				req.WantHistory = true
			}

			d, err := a.dispatcher(cmd.Context(), nil)
			if err != nil {
				return err
			}
			res, err := d.Invoke(cmd.Context(), req)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), res.Text)

			if historyPath != "" && res.History != nil {
				return saveHistory(historyPath, res.History)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&model, "model", "m", "", "model identifier, see the models command")
	f.StringVarP(&system, "system", "s", "", "system prompt")
	f.StringArrayVarP(&params, "param", "P", nil, "generation parameter as key=value, repeatable")
	f.StringVar(&historyPath, "history", "", "JSON file holding the conversation")
	_ = cmd.MarkFlagRequired("model")
	return cmd
}

func newModelsCmd(_ *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "models",
		Short: "List supported models and their backend family",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			models := provider.Models()
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(models)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "MODEL\tFAMILY")
			for _, m := range models {
				fmt.Fprintf(tw, "%s\t%s\n", m.ID, m.Family)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

// readPrompt joins args with spaces, or reads stdin when the only arg is "-".
func readPrompt(args []string, stdin io.Reader) (string, error) {
	if len(args) == 1 && args[0] == "-" {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("reading prompt: %w", err)
		}
		return strings.TrimRight(string(b), "\n"), nil
	}
	return strings.Join(args, " "), nil
}

// parseParams turns key=value pairs into a parameter bag. Values that parse
// as JSON (numbers, booleans, arrays) keep that type; anything else is a
// string.
func parseParams(pairs []string) (provider.Params, error) {
	out := make(provider.Params, len(pairs))
	for _, kv := range pairs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --param %q, want key=value", kv)
		}
		var decoded any
		if err := json.Unmarshal([]byte(v), &decoded); err == nil {
			out[k] = decoded
		} else {
			out[k] = v
		}
	}
	return out, nil
}

func loadHistory(path string) (*provider.History, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return provider.NewHistory(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}
	var msgs []provider.Message
	if err := json.Unmarshal(b, &msgs); err != nil {
		return nil, fmt.Errorf("decoding history %s: %w", path, err)
	}
	return provider.NewHistory(msgs...), nil
}

func saveHistory(path string, h *provider.History) error {
	msgs := h.Snapshot()
	if msgs == nil {
		msgs = []provider.Message{}
	}
	b, err := json.MarshalIndent(msgs, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding history: %w", err)
	}
	if err := os.WriteFile(path, append(b, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing history: %w", err)
	}
	return nil
}
