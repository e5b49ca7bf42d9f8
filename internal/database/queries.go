package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

const uniqueViolation = "23505"

const conversationColumns = "conversation_id, user1_id, user2_id, last_message_id, created_at"

// orderPair sorts a participant pair into canonical order. Conversations
// are stored with user1_id < user2_id so a pair identifies exactly one row.
func orderPair(a, b int) (int, int) {
	if a > b {
		return b, a
	}
	return a, b
}

func (db *PgChatRepository) getConversation(query string, args ...any) (Conversation, error) {
	row := db.conn.QueryRow(query, args...)

	var c Conversation
	err := row.Scan(
		&c.Id,
		&c.User1Id,
		&c.User2Id,
		&c.LastMessageId,
		&c.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Conversation{}, ErrConversationNotFound
	}

	return c, err
}

func (db *PgChatRepository) GetConversationById(conversationId int) (Conversation, error) {
	return db.getConversation(
		"SELECT "+conversationColumns+" FROM conversations WHERE conversation_id = $1 LIMIT 1",
		conversationId,
	)
}

func (db *PgChatRepository) FindConversationByUsers(user1Id, user2Id int) (Conversation, error) {
	lo, hi := orderPair(user1Id, user2Id)
	return db.getConversation(
		"SELECT "+conversationColumns+" FROM conversations WHERE user1_id = $1 AND user2_id = $2 LIMIT 1",
		lo, hi,
	)
}

func (db *PgChatRepository) GetOrCreateConversation(user1Id, user2Id int) (Conversation, error) {
	conv, err := db.FindConversationByUsers(user1Id, user2Id)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, ErrConversationNotFound) {
		return Conversation{}, err
	}

	lo, hi := orderPair(user1Id, user2Id)
	conv, err = db.getConversation(
		"INSERT INTO conversations (user1_id, user2_id, created_at) VALUES ($1, $2, $3) "+
			"RETURNING "+conversationColumns,
		lo, hi, time.Now().UTC(),
	)
	if err != nil {
		// A concurrent caller may have inserted the same pair between our
		// lookup and insert. The unique constraint on (user1_id, user2_id)
		// rejects the loser, which re-queries for the surviving row.
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return db.FindConversationByUsers(lo, hi)
		}
		return Conversation{}, err
	}

	return conv, nil
}

func (db *PgChatRepository) ListConversationSummaries(userId int) ([]ConversationSummary, error) {
	rows, err := db.conn.Query(
		`SELECT
			c.conversation_id, c.user1_id, c.user2_id,
			CASE WHEN c.user1_id = $1 THEN c.user2_id ELSE c.user1_id END AS other_user_id,
			m.content, m.timestamp, m.sender_id, m.read_status, m.message_type, m.metadata
		FROM conversations c
		LEFT JOIN messages m ON m.message_id = c.last_message_id
		WHERE c.user1_id = $1 OR c.user2_id = $1
		ORDER BY m.timestamp DESC NULLS LAST`,
		userId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []ConversationSummary
	for rows.Next() {
		var s ConversationSummary
		if err := rows.Scan(
			&s.ConversationId,
			&s.User1Id,
			&s.User2Id,
			&s.OtherUserId,
			&s.LastMessageContent,
			&s.LastMessageTimestamp,
			&s.LastMessageSenderId,
			&s.ReadStatus,
			&s.MessageType,
			&s.Metadata,
		); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}

		summaries = append(summaries, s)
	}

	return summaries, rows.Err()
}

func (db *PgChatRepository) IsParticipant(conversationId, userId int) (bool, error) {
	row := db.conn.QueryRow(
		"SELECT 1 FROM conversations WHERE conversation_id = $1 AND (user1_id = $2 OR user2_id = $2) LIMIT 1",
		conversationId,
		userId,
	)

	var one int
	err := row.Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}

	return err == nil, err
}

// SaveMessage persists a message and moves the conversation's
// last_message_id pointer in a single transaction. The receiver is derived
// from the conversation's participants; broadcasting must only happen after
// this returns without error.
func (db *PgChatRepository) SaveMessage(params SaveMessageParams) (Message, error) {
	conv, err := db.GetConversationById(params.ConversationId)
	if err != nil {
		return Message{}, err
	}

	receiverId, ok := conv.OtherUser(params.SenderId)
	if !ok {
		return Message{}, ErrNotParticipant
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return Message{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	msg := Message{
		ConversationId: params.ConversationId,
		SenderId:       params.SenderId,
		ReceiverId:     receiverId,
		Content:        params.Content,
		MessageType:    params.MessageType,
		Metadata:       params.Metadata,
	}

	res := tx.QueryRow(
		"INSERT INTO messages (conversation_id, sender_id, receiver_id, content, message_type, metadata, timestamp) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING message_id, timestamp, read_status",
		params.ConversationId,
		params.SenderId,
		receiverId,
		params.Content,
		params.MessageType,
		params.Metadata,
		time.Now().UTC(),
	)
	if err = res.Scan(&msg.Id, &msg.Timestamp, &msg.ReadStatus); err != nil {
		return Message{}, err
	}

	_, err = tx.Exec(
		"UPDATE conversations SET last_message_id = $1 WHERE conversation_id = $2",
		msg.Id,
		params.ConversationId,
	)
	if err != nil {
		return Message{}, err
	}

	if err = tx.Commit(); err != nil {
		return Message{}, err
	}

	return msg, nil
}

// GetMessages returns one page of a conversation's history, oldest first.
// Page numbers are 1-indexed; callers scrolling back request higher pages
// and prepend.
func (db *PgChatRepository) GetMessages(conversationId, page, pageSize int) ([]Message, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	rows, err := db.conn.Query(
		"SELECT message_id, conversation_id, sender_id, receiver_id, content, message_type, metadata, timestamp, read_status "+
			"FROM messages WHERE conversation_id = $1 ORDER BY timestamp ASC, message_id ASC LIMIT $2 OFFSET $3",
		conversationId,
		pageSize,
		offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages = make([]Message, 0, pageSize)
	for rows.Next() {
		var msg Message
		if err := rows.Scan(
			&msg.Id,
			&msg.ConversationId,
			&msg.SenderId,
			&msg.ReceiverId,
			&msg.Content,
			&msg.MessageType,
			&msg.Metadata,
			&msg.Timestamp,
			&msg.ReadStatus,
		); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}

		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

// MarkMessagesRead flips read_status for the given ids, constrained to rows
// whose receiver is receiverId. Rows sent by the caller or belonging to
// another conversation are silently skipped; the returned slice holds the
// ids that actually changed.
func (db *PgChatRepository) MarkMessagesRead(conversationId, receiverId int, messageIds []int) ([]int, error) {
	rows, err := db.conn.Query(
		"UPDATE messages SET read_status = TRUE "+
			"WHERE conversation_id = $1 AND message_id = ANY($2) AND receiver_id = $3 "+
			"RETURNING message_id",
		conversationId,
		pq.Array(messageIds),
		receiverId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var updated []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		updated = append(updated, id)
	}

	return updated, rows.Err()
}
