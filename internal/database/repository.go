package database

import "errors"

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrNotParticipant       = errors.New("sender not part of conversation")
)

type ChatRepository interface {
	Ping() error
	GetOrCreateConversation(user1Id, user2Id int) (Conversation, error)
	FindConversationByUsers(user1Id, user2Id int) (Conversation, error)
	GetConversationById(conversationId int) (Conversation, error)
	ListConversationSummaries(userId int) ([]ConversationSummary, error)
	IsParticipant(conversationId, userId int) (bool, error)
	SaveMessage(params SaveMessageParams) (Message, error)
	GetMessages(conversationId, page, pageSize int) ([]Message, error)
	MarkMessagesRead(conversationId, receiverId int, messageIds []int) ([]int, error)
}
