package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/howard-nolan/llminvoke/internal/config"
	"github.com/howard-nolan/llminvoke/internal/provider"
)

// adapterFactory builds the adapters one providers entry stands for.
type adapterFactory func(ctx context.Context, p config.ProviderConfig, hc *http.Client) ([]provider.Adapter, error)

// factories maps provider names from the config file to their
// constructors. The vertex entry serves two families from one client.
var factories = map[string]adapterFactory{
	config.ProviderOpenAI: func(_ context.Context, p config.ProviderConfig, hc *http.Client) ([]provider.Adapter, error) {
		return []provider.Adapter{provider.NewOpenAIAdapter(p.APIKey, p.BaseURL, hc)}, nil
	},
	config.ProviderAnyscale: func(_ context.Context, p config.ProviderConfig, hc *http.Client) ([]provider.Adapter, error) {
		return []provider.Adapter{provider.NewAnyscaleAdapter(p.APIKey, p.BaseURL, hc)}, nil
	},
	config.ProviderVertex: func(ctx context.Context, p config.ProviderConfig, hc *http.Client) ([]provider.Adapter, error) {
		client, err := provider.NewVertexClient(ctx, p.Project, p.Location, hc)
		if err != nil {
			return nil, err
		}
		return []provider.Adapter{
			provider.NewVertexChatAdapter(client),
			provider.NewVertexTextAdapter(client),
		}, nil
	},
	config.ProviderBedrock: func(ctx context.Context, p config.ProviderConfig, hc *http.Client) ([]provider.Adapter, error) {
		client, err := provider.NewBedrockClient(ctx, p.Region, hc)
		if err != nil {
			return nil, err
		}
		return []provider.Adapter{provider.NewBedrockAdapter(client)}, nil
	},
}

// buildAdapters creates an adapter for every configured provider. Families
// whose provider is not configured stay unavailable, and requests for their
// models fail with UnsupportedModelError.
func buildAdapters(ctx context.Context, providers map[string]config.ProviderConfig, logger *slog.Logger) ([]provider.Adapter, error) {
	var out []provider.Adapter
	for name, p := range providers {
		factory, ok := factories[name]
		if !ok {
			return nil, fmt.Errorf("unknown provider in config: %q", name)
		}

		// Zero timeout means none, same as http.Client.
		hc := &http.Client{Timeout: p.Timeout}

		adapters, err := factory(ctx, p, hc)
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", name, err)
		}
		for _, a := range adapters {
			logger.Info("registered adapter", "provider", name, "family", a.Family().String())
		}
		out = append(out, adapters...)
	}
	return out, nil
}
