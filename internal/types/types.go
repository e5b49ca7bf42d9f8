package types

import (
	"encoding/json"
	"time"
)

const (
	MessageTypeText         = "text"
	MessageTypeJournalShare = "journal_share"
)

type User struct {
	Id       int    `json:"id"`
	Username string `json:"username,omitempty"`
}

type Conversation struct {
	Id            int       `json:"conversation_id"`
	User1Id       int       `json:"user1_id"`
	User2Id       int       `json:"user2_id"`
	LastMessageId int       `json:"last_message_id,omitempty"`
	CreatedAt     time.Time `json:"created_at,omitempty"`
}

// ConversationSummary is one row of the caller's conversation list:
// the other participant plus the last message, ordered by recency.
type ConversationSummary struct {
	ConversationId       int             `json:"conversation_id"`
	User1Id              int             `json:"user1_id"`
	User2Id              int             `json:"user2_id"`
	OtherUserId          int             `json:"other_user_id"`
	OtherUsername        string          `json:"other_username,omitempty"`
	LastMessageContent   string          `json:"last_message_content,omitempty"`
	LastMessageTimestamp *time.Time      `json:"last_message_timestamp,omitempty"`
	LastMessageSenderId  int             `json:"last_message_sender_id,omitempty"`
	ReadStatus           bool            `json:"read_status"`
	MessageType          string          `json:"message_type,omitempty"`
	Metadata             json.RawMessage `json:"metadata,omitempty"`
}

type Message struct {
	Id             int             `json:"message_id"`
	ConversationId int             `json:"conversation_id"`
	SenderId       int             `json:"sender_id"`
	ReceiverId     int             `json:"receiver_id"`
	Content        string          `json:"content"`
	MessageType    string          `json:"message_type"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
	Timestamp      time.Time       `json:"timestamp"`
	ReadStatus     bool            `json:"read_status"`
}

// ShareMetadata is the metadata payload attached to journal_share messages.
type ShareMetadata struct {
	JournalId int `json:"journalId"`
}
