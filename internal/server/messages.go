package server

import (
	"net/http"
	"time"

	"github.com/kusum-bhattarai/dev-journal/internal/types"
)

type BaseMessage struct {
	Id        int       `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ClientMessage is the tagged union of everything a connection may send.
// Exactly one of the pointer fields is set; the gateway dispatches on
// whichever is non-nil.
type ClientMessage struct {
	BaseMessage
	Join         *Join         `json:"join,omitempty"`
	Leave        *Leave        `json:"leave,omitempty"`
	Publish      *Publish      `json:"publish,omitempty"`
	Read         *Read         `json:"read,omitempty"`
	JoinJournal  *JoinJournal  `json:"join_journal,omitempty"`
	LeaveJournal *LeaveJournal `json:"leave_journal,omitempty"`
	JournalEdit  *JournalEdit  `json:"journal_edit,omitempty"`
	UserId       int           `json:"-"`
	client       *Client       `json:"-"`
}

type Join struct {
	ConversationId int `json:"conversation_id"`
}

type Leave struct {
	ConversationId int `json:"conversation_id"`
}

type Publish struct {
	ConversationId int    `json:"conversation_id"`
	Content        string `json:"content"`
}

type Read struct {
	ConversationId int   `json:"conversation_id"`
	MessageIds     []int `json:"message_ids"`
}

type JoinJournal struct {
	JournalId int `json:"journal_id"`
}

type LeaveJournal struct {
	JournalId int `json:"journal_id"`
}

type JournalEdit struct {
	JournalId int    `json:"journal_id"`
	Content   string `json:"content"`
	Token     string `json:"token"`
}

// ServerMessage is the tagged union of everything the server emits.
// Message carries a fully persisted record (receiveMessage), MessageUpdated
// a read-receipt change, JournalUpdate a collaborative edit, and Error a
// failure addressed to the originating connection only.
type ServerMessage struct {
	BaseMessage
	Response       *Response       `json:"response,omitempty"`
	Message        *types.Message  `json:"message,omitempty"`
	MessageUpdated *MessageUpdated `json:"message_updated,omitempty"`
	JournalUpdate  *JournalUpdate  `json:"journal_update,omitempty"`
	Error          *MessageError   `json:"error,omitempty"`
	SkipClient     *Client         `json:"-"`
}

type Response struct {
	ResponseCode int            `json:"response_code"`
	Data         map[string]any `json:"data,omitempty"`
}

type MessageUpdated struct {
	ConversationId int   `json:"conversation_id"`
	MessageIds     []int `json:"message_ids"`
	ReadStatus     bool  `json:"read_status"`
}

type JournalUpdate struct {
	JournalId int    `json:"journal_id"`
	Content   string `json:"content"`
}

type MessageError struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func NoErrOK(id int, data map[string]any) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusOK,
			Data:         data,
		},
	}
}

func NoErrAccepted(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusAccepted,
		},
	}
}

func errMessage(id int, msg, details string) *ServerMessage {
	sm := &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Error: &MessageError{
			Error:   msg,
			Details: details,
		},
	}

	if id > 0 {
		sm.Id = id
	}
	return sm
}

func ErrInvalidMessage(id int) *ServerMessage {
	return errMessage(id, "invalid message format", "")
}

func ErrConversationNotFound(id int) *ServerMessage {
	return errMessage(id, "conversation not found", "")
}

func ErrNotParticipant(id int) *ServerMessage {
	return errMessage(id, "not authorized for this conversation", "")
}

func ErrSendFailed(id int) *ServerMessage {
	return errMessage(id, "failed to send message", "")
}

func ErrMarkReadFailed(id int) *ServerMessage {
	return errMessage(id, "failed to mark messages as read", "")
}

func ErrInvalidMarkAsRead(id int) *ServerMessage {
	return errMessage(id, "invalid markAsRead data", "")
}

func ErrJournalUpdateFailed(id int) *ServerMessage {
	return errMessage(id, "failed to update journal", "")
}

func ErrServiceUnavailable(id int) *ServerMessage {
	return errMessage(id, "service unavailable", "")
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
