package server

import "fmt"

// A Room is an ephemeral fan-out group of live connections. Rooms carry no
// durable state; membership exists only for the lifetime of the member
// connections and is mutated exclusively by the ChatServer run loop.
type Room struct {
	name    string
	clients map[*Client]struct{}
}

func newRoom(name string) *Room {
	return &Room{
		name:    name,
		clients: make(map[*Client]struct{}),
	}
}

// ConversationRoom names the room scoped to one conversation's participants.
func ConversationRoom(conversationId int) string {
	return fmt.Sprintf("conversation:%d", conversationId)
}

// JournalRoom names the room shared by a journal's co-editors.
func JournalRoom(journalId int) string {
	return fmt.Sprintf("journal:%d", journalId)
}

func (r *Room) addClient(c *Client) {
	r.clients[c] = struct{}{}
}

func (r *Room) removeClient(c *Client) {
	delete(r.clients, c)
}

func (r *Room) empty() bool {
	return len(r.clients) == 0
}

// broadcast queues msg on every member connection, honoring SkipClient for
// events that must not echo back to their originator.
func (r *Room) broadcast(msg *ServerMessage) int {
	var delivered int
	for client := range r.clients {
		if client == msg.SkipClient {
			continue
		}

		if client.queueMessage(msg) {
			delivered++
		}
	}

	return delivered
}
