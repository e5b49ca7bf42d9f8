package database

import (
	"github.com/stretchr/testify/mock"
)

type MockChatRepository struct {
	mock.Mock
}

func (m *MockChatRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockChatRepository) GetOrCreateConversation(user1Id, user2Id int) (Conversation, error) {
	args := m.Called(user1Id, user2Id)
	return args.Get(0).(Conversation), args.Error(1)
}
func (m *MockChatRepository) FindConversationByUsers(user1Id, user2Id int) (Conversation, error) {
	args := m.Called(user1Id, user2Id)
	return args.Get(0).(Conversation), args.Error(1)
}
func (m *MockChatRepository) GetConversationById(conversationId int) (Conversation, error) {
	args := m.Called(conversationId)
	return args.Get(0).(Conversation), args.Error(1)
}
func (m *MockChatRepository) ListConversationSummaries(userId int) ([]ConversationSummary, error) {
	args := m.Called(userId)
	return args.Get(0).([]ConversationSummary), args.Error(1)
}
func (m *MockChatRepository) IsParticipant(conversationId, userId int) (bool, error) {
	args := m.Called(conversationId, userId)
	return args.Bool(0), args.Error(1)
}
func (m *MockChatRepository) SaveMessage(params SaveMessageParams) (Message, error) {
	args := m.Called(params)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockChatRepository) GetMessages(conversationId, page, pageSize int) ([]Message, error) {
	args := m.Called(conversationId, page, pageSize)
	return args.Get(0).([]Message), args.Error(1)
}
func (m *MockChatRepository) MarkMessagesRead(conversationId, receiverId int, messageIds []int) ([]int, error) {
	args := m.Called(conversationId, receiverId, messageIds)
	if ids, ok := args.Get(0).([]int); ok {
		return ids, args.Error(1)
	}
	return nil, args.Error(1)
}
