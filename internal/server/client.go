package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/kusum-bhattarai/dev-journal/internal/database"
	"github.com/kusum-bhattarai/dev-journal/internal/integrations/journalapi"
	"github.com/kusum-bhattarai/dev-journal/internal/types"
	"github.com/teris-io/shortid"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Client is one authenticated websocket connection. The bound user id is
// established at handshake time and never changes; rooms is owned by the
// ChatServer run loop.
type Client struct {
	conn       *websocket.Conn
	chatServer *ChatServer
	log        *log.Logger
	session    string
	user       types.User
	send       chan *ServerMessage
	rooms      map[string]struct{}
	stop       chan struct{}
	stopOnce   sync.Once
}

func NewClient(user types.User, conn *websocket.Conn, cs *ChatServer, l *log.Logger) (*Client, error) {
	session, err := shortid.Generate()
	if err != nil {
		return nil, err
	}

	return &Client{
		conn:       conn,
		chatServer: cs,
		log:        l,
		session:    session,
		user:       user,
		send:       make(chan *ServerMessage, 256),
		rooms:      make(map[string]struct{}),
		stop:       make(chan struct{}),
	}, nil
}

func (c *Client) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}

			bytes, err := json.Marshal(msg)
			if err != nil {
				c.log.Println("failed to serialize message:", err)
				continue
			}

			if !c.sendMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			return
		case <-ticker.C:
			if !c.sendMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Client) Read() {
	defer func() {
		c.conn.Close()
		c.cleanup()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(appData string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Printf("ws: read: %v", err)
			}
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.log.Println("error parsing message:", err)
			c.queueMessage(ErrInvalidMessage(-1))
			continue
		}

		c.dispatch(&msg)
	}
}

// dispatch routes one inbound message to its handler. The sender identity
// is stamped from the connection, never trusted from the payload. Handler
// failures are reported back on this connection only and never tear it down.
func (c *Client) dispatch(msg *ClientMessage) {
	msg.client = c
	msg.UserId = c.user.Id
	msg.Timestamp = Now()

	switch {
	case msg.Join != nil:
		c.handleJoin(msg)
	case msg.Leave != nil:
		c.leaveRoom(ConversationRoom(msg.Leave.ConversationId), msg.Id)
	case msg.Publish != nil:
		c.handlePublish(msg)
	case msg.Read != nil:
		c.handleRead(msg)
	case msg.JoinJournal != nil:
		c.joinRoom(JournalRoom(msg.JoinJournal.JournalId), msg.Id)
	case msg.LeaveJournal != nil:
		c.leaveRoom(JournalRoom(msg.LeaveJournal.JournalId), msg.Id)
	case msg.JournalEdit != nil:
		c.handleJournalEdit(msg)
	default:
		c.queueMessage(ErrInvalidMessage(msg.Id))
	}
}

// handleJoin grants conversation-room membership only to participants.
// Room names are guessable integers, so join is authorized rather than
// treated as a capability.
func (c *Client) handleJoin(msg *ClientMessage) {
	ok, err := c.chatServer.db.IsParticipant(msg.Join.ConversationId, msg.UserId)
	if err != nil {
		c.log.Printf("IsParticipant: %v", err)
		c.queueMessage(ErrConversationNotFound(msg.Id))
		return
	}
	if !ok {
		c.queueMessage(ErrNotParticipant(msg.Id))
		return
	}

	c.joinRoom(ConversationRoom(msg.Join.ConversationId), msg.Id)
}

func (c *Client) handlePublish(msg *ClientMessage) {
	if msg.Publish.ConversationId == 0 || msg.Publish.Content == "" {
		c.queueMessage(ErrInvalidMessage(msg.Id))
		return
	}

	saved, err := c.chatServer.db.SaveMessage(database.SaveMessageParams{
		ConversationId: msg.Publish.ConversationId,
		SenderId:       msg.UserId,
		Content:        msg.Publish.Content,
		MessageType:    types.MessageTypeText,
	})
	if err != nil {
		c.log.Printf("SaveMessage: %v", err)
		switch {
		case errors.Is(err, database.ErrConversationNotFound):
			c.queueMessage(ErrConversationNotFound(msg.Id))
		case errors.Is(err, database.ErrNotParticipant):
			c.queueMessage(ErrNotParticipant(msg.Id))
		default:
			c.queueMessage(ErrSendFailed(msg.Id))
		}
		return
	}

	c.chatServer.stats.Incr(MetricMessagesSent)
	c.queueMessage(NoErrAccepted(msg.Id))

	// the message is fully persisted at this point, so every participant
	// (the sender's other devices included) gets the canonical record
	c.broadcast(ConversationRoom(saved.ConversationId), &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        msg.Id,
			Timestamp: saved.Timestamp,
		},
		Message: MessageRecord(saved),
	}, msg.Id)
}

func (c *Client) handleRead(msg *ClientMessage) {
	if msg.Read.ConversationId == 0 || len(msg.Read.MessageIds) == 0 {
		c.queueMessage(ErrInvalidMarkAsRead(msg.Id))
		return
	}

	ok, err := c.chatServer.db.IsParticipant(msg.Read.ConversationId, msg.UserId)
	if err != nil {
		c.log.Printf("IsParticipant: %v", err)
		c.queueMessage(ErrMarkReadFailed(msg.Id))
		return
	}
	if !ok {
		c.queueMessage(ErrNotParticipant(msg.Id))
		return
	}

	updated, err := c.chatServer.db.MarkMessagesRead(msg.Read.ConversationId, msg.UserId, msg.Read.MessageIds)
	if err != nil {
		c.log.Printf("MarkMessagesRead: %v", err)
		c.queueMessage(ErrMarkReadFailed(msg.Id))
		return
	}

	c.queueMessage(NoErrOK(msg.Id, nil))

	// only rows whose receiver is this user can have flipped; a sender
	// marking their own messages changes nothing and broadcasts nothing
	if len(updated) == 0 {
		return
	}

	c.broadcast(ConversationRoom(msg.Read.ConversationId), &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		MessageUpdated: &MessageUpdated{
			ConversationId: msg.Read.ConversationId,
			MessageIds:     updated,
			ReadStatus:     true,
		},
	}, msg.Id)
}

// handleJournalEdit relays a collaborative edit. The broadcast is optimistic:
// co-editors see the edit before the journal service confirms the write, so a
// failed persist leaves viewers ahead of storage. That divergence is logged
// and reported to the editor rather than swallowed.
func (c *Client) handleJournalEdit(msg *ClientMessage) {
	edit := msg.JournalEdit

	perm, err := c.chatServer.journal.GetPermission(context.Background(), edit.JournalId, edit.Token)
	if err != nil {
		c.log.Printf("journal %d permission check: %v", edit.JournalId, err)
		c.queueMessage(ErrJournalUpdateFailed(msg.Id))
		return
	}
	if perm != journalapi.PermissionEditor {
		c.queueMessage(ErrJournalUpdateFailed(msg.Id))
		return
	}

	c.chatServer.stats.Incr(MetricJournalEdits)

	// skip the originator: echoing the edit back would clobber keystrokes
	// typed since this snapshot
	c.broadcast(JournalRoom(edit.JournalId), &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		JournalUpdate: &JournalUpdate{
			JournalId: edit.JournalId,
			Content:   edit.Content,
		},
		SkipClient: msg.client,
	}, msg.Id)

	if err := c.chatServer.journal.UpdateContent(context.Background(), edit.JournalId, edit.Content, edit.Token); err != nil {
		c.log.Printf("journal %d persist failed after broadcast, co-editors are ahead of storage: %v", edit.JournalId, err)
		c.queueMessage(ErrJournalUpdateFailed(msg.Id))
	}
}

func (c *Client) joinRoom(room string, msgId int) {
	select {
	case c.chatServer.joinChan <- joinReq{client: c, room: room, msgId: msgId, ack: true}:
	default:
		c.log.Printf("join channel full")
		c.queueMessage(ErrServiceUnavailable(msgId))
	}
}

func (c *Client) leaveRoom(room string, msgId int) {
	select {
	case c.chatServer.leaveChan <- leaveReq{client: c, room: room, msgId: msgId, ack: true}:
	default:
		c.log.Printf("leave channel full")
		c.queueMessage(ErrServiceUnavailable(msgId))
	}
}

func (c *Client) broadcast(room string, msg *ServerMessage, msgId int) {
	if !c.chatServer.Broadcast(room, msg) {
		c.queueMessage(ErrServiceUnavailable(msgId))
	}
}

func (c *Client) queueMessage(msg *ServerMessage) bool {
	select {
	case c.send <- msg:
	default:
		c.log.Printf("send buffer full for connection %s, dropping message", c.session)
		return false
	}

	return true
}

func (c *Client) sendMessage(msgType int, msg []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Printf("write message: %s", err)
		}
		return false
	}

	return true
}

func (c *Client) stopClient() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *Client) cleanup() {
	// during shutdown the run loop is gone and stop is already closed;
	// otherwise the loop deregisters us and releases room memberships
	select {
	case c.chatServer.deRegisterChan <- c:
	case <-c.stop:
	}
	c.stopClient()
}

// MessageRecord converts a persisted row into the wire shape broadcast as
// receiveMessage.
func MessageRecord(msg database.Message) *types.Message {
	return &types.Message{
		Id:             msg.Id,
		ConversationId: msg.ConversationId,
		SenderId:       msg.SenderId,
		ReceiverId:     msg.ReceiverId,
		Content:        msg.Content,
		MessageType:    msg.MessageType,
		Metadata:       msg.Metadata,
		Timestamp:      msg.Timestamp,
		ReadStatus:     msg.ReadStatus,
	}
}
