// Package tools registers and executes the structured tools engines may call.
//
// Invariants:
// - Tool names are unique.
// - Parameters are schema-validated before execution.
// - Execute never returns an error; failures are reported in Result.
//
// Usage:
//
//	reg := tools.NewRegistry()
//	_ = reg.Register(tools.Definition{
//		Name: "echo",
//		Description: "Echo input",
//		Parameters: []tools.Parameter{{Name: "text", Type: "string", Description: "text", Required: true}},
//		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) { return params["text"], nil },
//	})
package tools
