// Package logmessage provides a built-in service that writes a structured log
// line from its params.
package logmessage

import (
	"context"
	"log/slog"
)

type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	return &Service{logger: logger.With("capability", "log")}
}

func (s *Service) Invoke(ctx context.Context, params map[string]any, _ map[string]any) (any, error) {
	message, _ := params["message"].(string)
	if message == "" {
		message = "log node executed"
	}

	s.logger.InfoContext(ctx, message, "params", params)

	return map[string]any{"message": message}, nil
}
