package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/kusum-bhattarai/dev-journal/internal/database"
	"github.com/kusum-bhattarai/dev-journal/internal/integrations/userapi"
	"github.com/kusum-bhattarai/dev-journal/internal/server"
	"github.com/kusum-bhattarai/dev-journal/internal/types"
)

const messagePageSize = 20

type CreateConversationRequest struct {
	User1Id int `json:"user1Id"`
	User2Id int `json:"user2Id"`
}

type JournalShareRequest struct {
	SharerId       int    `json:"sharerId"`
	RecipientId    int    `json:"recipientId"`
	JournalId      int    `json:"journalId"`
	SharerUsername string `json:"sharerUsername"`
}

func (s *ChatApp) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

func (s *ChatApp) createConversation(w http.ResponseWriter, r *http.Request) {
	var req CreateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	// a conversation needs two distinct users
	if req.User1Id == 0 || req.User2Id == 0 || req.User1Id == req.User2Id {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	for _, id := range []int{req.User1Id, req.User2Id} {
		if _, err := s.users.GetUser(r.Context(), id); err != nil {
			var errResp *ApiError
			if errors.Is(err, userapi.ErrUserNotFound) {
				errResp = NewNotFoundError()
			} else {
				s.log.Printf("user lookup %d: %v", id, err)
				errResp = NewServiceUnavailableError(err)
			}
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}
	}

	conv, err := s.db.GetOrCreateConversation(req.User1Id, req.User2Id)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusCreated, map[string]int{
		"conversation_id": conv.Id,
	})
}

func (s *ChatApp) listConversations(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	rows, err := s.db.ListConversationSummaries(userId)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	summaries := make([]types.ConversationSummary, 0, len(rows))
	for _, row := range rows {
		summary := types.ConversationSummary{
			ConversationId: row.ConversationId,
			User1Id:        row.User1Id,
			User2Id:        row.User2Id,
			OtherUserId:    row.OtherUserId,
		}

		// username resolution is best-effort; the list is still useful
		// when the user service is briefly unavailable
		if user, err := s.users.GetUser(r.Context(), row.OtherUserId); err == nil {
			summary.OtherUsername = user.Username
		} else {
			s.log.Printf("resolve username for user %d: %v", row.OtherUserId, err)
		}

		if row.LastMessageContent.Valid {
			summary.LastMessageContent = row.LastMessageContent.String
			summary.LastMessageSenderId = int(row.LastMessageSenderId.Int64)
			summary.ReadStatus = row.ReadStatus.Bool
			summary.MessageType = row.MessageType.String
			summary.Metadata = row.Metadata
			ts := row.LastMessageTimestamp.Time
			summary.LastMessageTimestamp = &ts
		}

		summaries = append(summaries, summary)
	}

	s.writeJson(w, http.StatusOK, summaries)
}

func (s *ChatApp) getMessages(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	conversationId, err := strconv.Atoi(r.PathValue("conversationId"))
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	page := 1
	if p := r.URL.Query().Get("page"); p != "" {
		page, err = strconv.Atoi(p)
		if err != nil || page < 1 {
			errResp := NewBadRequestError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}
	}

	participant, err := s.db.IsParticipant(conversationId, userId)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}
	if !participant {
		errResp := NewForbiddenError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	rows, err := s.db.GetMessages(conversationId, page, messagePageSize)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	messages := make([]types.Message, 0, len(rows))
	for _, row := range rows {
		messages = append(messages, *server.MessageRecord(row))
	}

	s.writeJson(w, http.StatusOK, messages)
}

// journalShareNotification bridges a share event from the journal service
// into the sharer's existing conversation with the recipient. No
// conversation is created on their behalf; without one the share has
// nowhere to land and the caller gets a 404.
func (s *ChatApp) journalShareNotification(w http.ResponseWriter, r *http.Request) {
	var req JournalShareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if req.SharerId == 0 || req.RecipientId == 0 || req.JournalId == 0 || req.SharerUsername == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	conv, err := s.db.FindConversationByUsers(req.SharerId, req.RecipientId)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, database.ErrConversationNotFound) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	metadata, err := json.Marshal(types.ShareMetadata{JournalId: req.JournalId})
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	saved, err := s.db.SaveMessage(database.SaveMessageParams{
		ConversationId: conv.Id,
		SenderId:       req.SharerId,
		Content:        req.SharerUsername + " shared a journal with you.",
		MessageType:    types.MessageTypeJournalShare,
		Metadata:       metadata,
	})
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	// The message is durable at this point; if the broadcast queue is full
	// the live event is lost but participants still see the share on their
	// next history fetch, so the caller is answered 200 either way.
	record := server.MessageRecord(saved)
	delivered := s.cs.Broadcast(server.ConversationRoom(conv.Id), &server.ServerMessage{
		BaseMessage: server.BaseMessage{
			Timestamp: saved.Timestamp,
		},
		Message: record,
	})
	if !delivered {
		s.log.Printf("journal share %d: broadcast dropped for conversation %d", saved.Id, conv.Id)
	}

	s.writeJson(w, http.StatusOK, record)
}

func (s *ChatApp) healthCheck(w http.ResponseWriter, _ *http.Request) {
	if err := s.db.Ping(); err != nil {
		s.log.Printf("health check: %v", err)
		errResp := NewServiceUnavailableError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *ChatApp) serveWs(w http.ResponseWriter, r *http.Request) {
	tokenString, err := handshakeToken(r)
	if err != nil {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	userId, err := s.extractUserIdFromToken(tokenString)
	if err != nil {
		s.log.Printf("websocket handshake: %v", err)
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	user, err := s.users.GetUser(r.Context(), userId)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, userapi.ErrUserNotFound) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			// only allow connections from allowed origins
			origin := r.Header.Get("Origin")
			if origin == "" {
				// if no origin header, allow the request
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Println("error upgrading connection:", err)
		return
	}

	client, err := server.NewClient(user, conn, s.cs, s.log)
	if err != nil {
		s.log.Printf("create client: %v", err)
		conn.Close()
		return
	}

	s.cs.RegisterClient(client)
	go client.Write()
	go client.Read()
}
