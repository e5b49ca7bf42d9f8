package journalapi

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockJournalService struct {
	mock.Mock
}

func (m *MockJournalService) GetPermission(ctx context.Context, journalId int, token string) (string, error) {
	args := m.Called(ctx, journalId, token)
	return args.String(0), args.Error(1)
}

func (m *MockJournalService) UpdateContent(ctx context.Context, journalId int, content, token string) error {
	args := m.Called(ctx, journalId, content, token)
	return args.Error(0)
}
