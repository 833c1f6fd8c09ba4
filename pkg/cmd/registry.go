// Package cmd provides common initialization functions for command-line
// applications.
package cmd

import (
	"log/slog"

	"github.com/dukex/maestro/pkg/capabilities/echo"
	"github.com/dukex/maestro/pkg/capabilities/httprequest"
	"github.com/dukex/maestro/pkg/capabilities/logmessage"
	"github.com/dukex/maestro/pkg/registry"
)

// NewRegistry builds a capability registry preloaded with the built-in
// capabilities. Embedders register their own agents, tools and services on
// top of it.
func NewRegistry(logger *slog.Logger) *registry.Registry {
	reg := registry.NewRegistry(logger)

	registerNativeCapabilities(reg, logger)

	return reg
}

func registerNativeCapabilities(reg *registry.Registry, logger *slog.Logger) {
	reg.RegisterTool("echo", echo.NewTool())
	reg.RegisterTool("http_request", httprequest.NewTool(logger))
	reg.RegisterService("log", logmessage.NewService(logger))
}
