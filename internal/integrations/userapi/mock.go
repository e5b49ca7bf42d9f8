package userapi

import (
	"context"

	"github.com/kusum-bhattarai/dev-journal/internal/types"
	"github.com/stretchr/testify/mock"
)

type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) GetUser(ctx context.Context, userId int) (types.User, error) {
	args := m.Called(ctx, userId)
	return args.Get(0).(types.User), args.Error(1)
}
