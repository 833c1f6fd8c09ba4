package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/dukex/maestro/pkg/eventbus"
)

// PublisherMock is a mock implementation of eventbus.EventPublisher.
type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) Publish(ctx context.Context, key string, event eventbus.Event) error {
	args := m.Called(ctx, key, event)

	return args.Error(0)
}
