package tools

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// RegisterBuiltins adds the small offline tools the CLI ships with
func RegisterBuiltins(r *Registry) error {
	builtins := []Definition{
		{
			Name:         "echo",
			Description:  "Return the given text unchanged",
			Capabilities: []string{"utility"},
			Parameters: []Parameter{
				{Name: "text", Type: "string", Description: "Text to echo", Required: true},
			},
			Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
				return params["text"], nil
			},
		},
		{
			Name:         "word_count",
			Description:  "Count the words in a text",
			Capabilities: []string{"analysis"},
			Parameters: []Parameter{
				{Name: "text", Type: "string", Description: "Text to analyse", Required: true},
			},
			Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
				text, _ := params["text"].(string)
				return len(strings.Fields(text)), nil
			},
		},
		{
			Name:         "clock",
			Description:  "Report the current UTC time",
			Capabilities: []string{"utility"},
			Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
				return time.Now().UTC().Format(time.RFC3339), nil
			},
		},
	}

	for _, def := range builtins {
		if err := r.Register(def); err != nil {
			return fmt.Errorf("failed to register builtin %s: %w", def.Name, err)
		}
	}
	return nil
}
