// Package echo provides a built-in tool that returns its resolved params.
// Useful for wiring context bindings between nodes and in examples.
package echo

import (
	"context"
)

type Tool struct{}

func NewTool() *Tool {
	return &Tool{}
}

func (t *Tool) Invoke(_ context.Context, params map[string]any, _ map[string]any) (any, error) {
	return params, nil
}
