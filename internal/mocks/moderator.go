package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MessageModeratorMock struct {
	mock.Mock
}

func (m *MessageModeratorMock) SoftDeleteMessage(ctx context.Context, messageID, moderatorID string) error {
	args := m.Called(ctx, messageID, moderatorID)
	return args.Error(0)
}
