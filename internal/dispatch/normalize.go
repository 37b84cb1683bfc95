package dispatch

import (
	"slices"

	"github.com/howard-nolan/llminvoke/internal/provider"
)

// MaxOutputLength is the family-agnostic name for the generation length cap.
const MaxOutputLength = "max_output_length"

// lengthCapAliases are every accepted spelling of the length cap, in the
// order used to pick a winner when a bag holds more than one of them.
var lengthCapAliases = []string{
	MaxOutputLength,
	"max_tokens",
	"max_output_tokens",
	"max_tokens_to_sample",
	"n_tokens",
}

// Normalize rewrites a generic parameter bag into the spelling family
// expects. Any accepted spelling of the length cap becomes the family's one
// length-cap key; every other key is copied through untouched and is not
// checked against what the family accepts.
//
// If several length-cap spellings are present, the value already under the
// family's own key wins, otherwise the first alias in lengthCapAliases.
// Normalize never modifies its input.
func Normalize(params provider.Params, family provider.Family) provider.Params {
	out := make(provider.Params, len(params))

	var (
		capValue any
		hasCap   bool
	)
	for k, v := range params {
		if !slices.Contains(lengthCapAliases, k) {
			out[k] = v
			continue
		}
		hasCap = true
	}

	if !hasCap {
		return out
	}

	target := family.LengthCapKey()
	if v, ok := params[target]; ok {
		capValue = v
	} else {
		for _, alias := range lengthCapAliases {
			if v, ok := params[alias]; ok {
				capValue = v
				break
			}
		}
	}

	if target != "" {
		out[target] = capValue
	}
	return out
}
