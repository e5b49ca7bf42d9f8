package database

import (
	"database/sql"
	"time"
)

type Conversation struct {
	Id            int
	User1Id       int
	User2Id       int
	LastMessageId sql.NullInt64
	CreatedAt     time.Time
}

// OtherUser returns the participant that is not userId, along with
// whether userId is a participant at all.
func (c Conversation) OtherUser(userId int) (int, bool) {
	switch userId {
	case c.User1Id:
		return c.User2Id, true
	case c.User2Id:
		return c.User1Id, true
	default:
		return 0, false
	}
}

type Message struct {
	Id             int
	ConversationId int
	SenderId       int
	ReceiverId     int
	Content        string
	MessageType    string
	Metadata       []byte
	Timestamp      time.Time
	ReadStatus     bool
}

type ConversationSummary struct {
	ConversationId       int
	User1Id              int
	User2Id              int
	OtherUserId          int
	LastMessageContent   sql.NullString
	LastMessageTimestamp sql.NullTime
	LastMessageSenderId  sql.NullInt64
	ReadStatus           sql.NullBool
	MessageType          sql.NullString
	Metadata             []byte
}

type SaveMessageParams struct {
	ConversationId int
	SenderId       int
	Content        string
	MessageType    string
	Metadata       []byte
}
