// Command llminvoke sends prompts to OpenAI, Vertex AI, Anyscale and Bedrock
// models through one interface, either from the command line or as an HTTP
// service.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/howard-nolan/llminvoke/internal/config"
	"github.com/howard-nolan/llminvoke/internal/dispatch"
	"github.com/howard-nolan/llminvoke/internal/metrics"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// app is shared by every subcommand; PersistentPreRunE fills it in.
type app struct {
	configPath string
	cfg        *config.Config
	logger     *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "llminvoke",
		Short:         "Invoke LLMs across providers through one interface",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = newLogger(cfg.Log, cmd.ErrOrStderr())
			slog.SetDefault(a.logger)
			return nil
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path to config.yaml")

	root.AddCommand(
		newServeCmd(a),
		newInvokeCmd(a),
		newModelsCmd(a),
		newABTestCmd(a),
	)
	return root
}

// dispatcher builds a Dispatcher over every configured provider. A nil
// registerer disables metrics.
func (a *app) dispatcher(ctx context.Context, reg prometheus.Registerer) (*dispatch.Dispatcher, error) {
	adapters, err := buildAdapters(ctx, a.cfg.Providers, a.logger)
	if err != nil {
		return nil, err
	}
	opts := []dispatch.Option{dispatch.WithLogger(a.logger)}
	if reg != nil {
		opts = append(opts, dispatch.WithMetrics(metrics.New(reg)))
	}
	return dispatch.New(adapters, opts...), nil
}

// newLogger builds the process logger from the log section.
func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
