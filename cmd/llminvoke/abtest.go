package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/howard-nolan/llminvoke/internal/abtest"
)

func newABTestCmd(a *app) *cobra.Command {
	var (
		model     string
		templateA string
		templateB string
		params    []string
		dir       string
	)

	cmd := &cobra.Command{
		Use:   "abtest [flags] INPUT...",
		Short: "Compare two prompt templates on one input and record both replies",
		Long: `Render two prompt templates with the input in place of {input}, send
both to the same model and append an Input,Output row to each template's
transcript, <model>_<md5 of template>.csv, in the transcripts directory.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := readPrompt(args, cmd.InOrStdin())
			if err != nil {
				return err
			}
			p, err := parseParams(params)
			if err != nil {
				return err
			}
			if dir == "" {
				dir = a.cfg.Transcripts.Dir
			}

			store, err := abtest.NewStore(dir)
			if err != nil {
				return err
			}
			d, err := a.dispatcher(cmd.Context(), nil)
			if err != nil {
				return err
			}

			res, err := abtest.NewRunner(d, store, p, a.logger).Run(cmd.Context(), model, templateA, templateB, input)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "== Output 1 (%s)\n%s\n\n", res.A.Transcript, res.A.Output)
			fmt.Fprintf(out, "== Output 2 (%s)\n%s\n", res.B.Transcript, res.B.Output)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&model, "model", "m", "gpt-3.5-turbo", "model identifier")
	f.StringVar(&templateA, "template-a", "", "first prompt template, must contain {input}")
	f.StringVar(&templateB, "template-b", "", "second prompt template, must contain {input}")
	f.StringArrayVarP(&params, "param", "P", []string{"temperature=0.5"}, "generation parameter as key=value, repeatable")
	f.StringVar(&dir, "dir", "", "transcript directory (overrides transcripts.dir)")
	_ = cmd.MarkFlagRequired("template-a")
	_ = cmd.MarkFlagRequired("template-b")
	return cmd
}
