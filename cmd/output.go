package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/alpkeskin/gotoon"
)

// printStructured writes v as JSON or toon when one of the flags is set and
// reports whether it did
func printStructured(v any, asJSON, asToon bool) (bool, error) {
	switch {
	case asJSON:
		output, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return true, fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(output))
		return true, nil
	case asToon:
		output, err := gotoon.Encode(v)
		if err != nil {
			return true, fmt.Errorf("failed to encode Toon: %w", err)
		}
		fmt.Println(output)
		return true, nil
	default:
		return false, nil
	}
}
