package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/howard-nolan/llminvoke/internal/provider"
)

func TestNormalize_LengthCapPerFamily(t *testing.T) {
	tests := []struct {
		family provider.Family
		want   string
	}{
		{provider.OpenAIChat, "max_tokens"},
		{provider.AnyscaleLlamaChat, "max_tokens"},
		{provider.VertexChat, "max_output_tokens"},
		{provider.VertexText, "max_output_tokens"},
		{provider.BedrockClaude, "max_tokens_to_sample"},
	}

	for _, tt := range tests {
		for _, spelling := range lengthCapAliases {
			t.Run(tt.family.String()+"/"+spelling, func(t *testing.T) {
				in := provider.Params{spelling: 256, "temperature": 0.2}

				got := Normalize(in, tt.family)

				assert.Equal(t, provider.Params{tt.want: 256, "temperature": 0.2}, got)
			})
		}
	}
}

func TestNormalize_PassThrough(t *testing.T) {
	in := provider.Params{
		"temperature":  0.7,
		"top_p":        0.9,
		"top_k":        40,
		"logit_bias":   map[string]int{"50256": -100},
		"unknown_knob": "anything",
	}

	for _, f := range provider.Families {
		assert.Equal(t, in, Normalize(in, f), f.String())
	}
}

func TestNormalize_EmptyBag(t *testing.T) {
	assert.Empty(t, Normalize(nil, provider.OpenAIChat))
	assert.Empty(t, Normalize(provider.Params{}, provider.BedrockClaude))
}

func TestNormalize_DoesNotModifyInput(t *testing.T) {
	in := provider.Params{"n_tokens": 10}

	Normalize(in, provider.VertexText)

	assert.Equal(t, provider.Params{"n_tokens": 10}, in)
}

func TestNormalize_Idempotent(t *testing.T) {
	bags := []provider.Params{
		{},
		{"temperature": 0.1},
		{"max_tokens": 5, "top_p": 1.0},
		{"n_tokens": 5, "max_output_tokens": 7, "top_k": 3},
		{"max_tokens_to_sample": 9, "stop": []string{"\n"}},
	}

	for _, f := range provider.Families {
		for _, p := range bags {
			once := Normalize(p, f)
			assert.Equal(t, once, Normalize(once, f), "%s %v", f, p)
		}
	}
}

func TestNormalize_ExactlyOneLengthCap(t *testing.T) {
	in := provider.Params{
		"max_tokens":           1,
		"max_output_tokens":    2,
		"n_tokens":             3,
		"max_tokens_to_sample": 4,
	}

	for _, f := range provider.Families {
		got := Normalize(in, f)

		count := 0
		for k := range got {
			for _, alias := range lengthCapAliases {
				if k == alias {
					count++
				}
			}
		}
		assert.Equal(t, 1, count, f.String())
	}
}

func TestNormalize_FamilyKeyWinsConflicts(t *testing.T) {
	in := provider.Params{"n_tokens": 3, "max_output_tokens": 2}

	assert.Equal(t, provider.Params{"max_output_tokens": 2}, Normalize(in, provider.VertexChat))

	// No max_tokens present: first alias in the fixed order wins.
	assert.Equal(t, provider.Params{"max_tokens": 2}, Normalize(in, provider.OpenAIChat))
}
