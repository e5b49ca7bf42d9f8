package server

import (
	"context"
	"log"

	"github.com/kusum-bhattarai/dev-journal/internal/database"
	"github.com/kusum-bhattarai/dev-journal/internal/integrations/journalapi"
	"github.com/kusum-bhattarai/dev-journal/internal/stats"
)

const (
	MetricActiveConnections = "devjournal_connections_active"
	MetricActiveRooms       = "devjournal_rooms_active"
	MetricMessagesSent      = "devjournal_messages_sent_total"
	MetricBroadcasts        = "devjournal_broadcasts_delivered_total"
	MetricJournalEdits      = "devjournal_journal_edits_total"
)

type joinReq struct {
	client *Client
	room   string
	msgId  int
	ack    bool
}

type leaveReq struct {
	client *Client
	room   string
	msgId  int
	ack    bool
}

type broadcastReq struct {
	room string
	msg  *ServerMessage
}

type stopReq struct {
	done chan struct{}
}

// ChatServer owns the registry of live connections and the room membership
// map. All membership mutation and fan-out funnels through its run loop, so
// rooms need no locking; database and upstream I/O stays on the connection
// goroutines.
type ChatServer struct {
	log            *log.Logger
	db             database.ChatRepository
	journal        journalapi.JournalService
	stats          stats.StatsProvider
	clients        map[*Client]struct{}
	rooms          map[string]*Room
	RegisterChan   chan *Client
	deRegisterChan chan *Client
	joinChan       chan joinReq
	leaveChan      chan leaveReq
	broadcastChan  chan broadcastReq
	stop           chan stopReq
}

func NewChatServer(logger *log.Logger, db database.ChatRepository, journal journalapi.JournalService, st stats.StatsProvider) (*ChatServer, error) {
	cs := &ChatServer{
		log:            logger,
		db:             db,
		journal:        journal,
		stats:          st,
		clients:        make(map[*Client]struct{}),
		rooms:          make(map[string]*Room),
		RegisterChan:   make(chan *Client),
		deRegisterChan: make(chan *Client),
		joinChan:       make(chan joinReq, 256),
		leaveChan:      make(chan leaveReq, 256),
		broadcastChan:  make(chan broadcastReq, 256),
		stop:           make(chan stopReq),
	}

	st.RegisterMetric(MetricActiveConnections, "number of live websocket connections")
	st.RegisterMetric(MetricActiveRooms, "number of rooms with at least one member")
	st.RegisterMetric(MetricMessagesSent, "messages persisted and broadcast")
	st.RegisterMetric(MetricBroadcasts, "events delivered to room members")
	st.RegisterMetric(MetricJournalEdits, "journal edits relayed to co-editors")

	return cs, nil
}

func (cs *ChatServer) Run() {
	for {
		select {
		case client := <-cs.RegisterChan:
			cs.log.Printf("adding connection %s for user %d", client.session, client.user.Id)
			cs.clients[client] = struct{}{}
			cs.stats.Incr(MetricActiveConnections)
		case client := <-cs.deRegisterChan:
			cs.log.Printf("removing connection %s for user %d", client.session, client.user.Id)
			cs.removeClient(client)
		case req := <-cs.joinChan:
			cs.handleJoin(req)
		case req := <-cs.leaveChan:
			cs.handleLeave(req)
		case req := <-cs.broadcastChan:
			cs.handleBroadcast(req)
		case req := <-cs.stop:
			cs.log.Println("shutting down chat server")
			for client := range cs.clients {
				client.stopClient()
			}
			close(req.done)
			return
		}
	}
}

func (cs *ChatServer) handleJoin(req joinReq) {
	room, ok := cs.rooms[req.room]
	if !ok {
		room = newRoom(req.room)
		cs.rooms[req.room] = room
		cs.stats.Incr(MetricActiveRooms)
	}

	room.addClient(req.client)
	req.client.rooms[req.room] = struct{}{}
	cs.log.Printf("connection %s joined room %q", req.client.session, req.room)

	if req.ack {
		req.client.queueMessage(NoErrOK(req.msgId, nil))
	}
}

func (cs *ChatServer) handleLeave(req leaveReq) {
	cs.removeFromRoom(req.client, req.room)

	if req.ack {
		req.client.queueMessage(NoErrOK(req.msgId, nil))
	}
}

func (cs *ChatServer) handleBroadcast(req broadcastReq) {
	room, ok := cs.rooms[req.room]
	if !ok {
		// nobody is listening; the event is already persisted where that
		// matters, so there is nothing to deliver
		return
	}

	delivered := room.broadcast(req.msg)
	for i := 0; i < delivered; i++ {
		cs.stats.Incr(MetricBroadcasts)
	}
}

func (cs *ChatServer) removeClient(c *Client) {
	if _, ok := cs.clients[c]; !ok {
		return
	}

	delete(cs.clients, c)
	cs.stats.Decr(MetricActiveConnections)

	for name := range c.rooms {
		cs.removeFromRoom(c, name)
	}
}

func (cs *ChatServer) removeFromRoom(c *Client, name string) {
	room, ok := cs.rooms[name]
	if !ok {
		return
	}

	room.removeClient(c)
	delete(c.rooms, name)

	if room.empty() {
		cs.log.Printf("room %q is empty, unloading", name)
		delete(cs.rooms, name)
		cs.stats.Decr(MetricActiveRooms)
	}
}

// RegisterClient hands a freshly upgraded connection to the run loop.
func (cs *ChatServer) RegisterClient(c *Client) {
	cs.RegisterChan <- c
}

// Broadcast queues an event for every connection in the named room. It is
// the entry point for event sources outside a live connection, such as the
// journal-share notification bridge.
func (cs *ChatServer) Broadcast(room string, msg *ServerMessage) bool {
	select {
	case cs.broadcastChan <- broadcastReq{room: room, msg: msg}:
		return true
	default:
		cs.log.Printf("broadcast channel full, dropping event for room %q", room)
		return false
	}
}

func (cs *ChatServer) Shutdown(ctx context.Context) error {
	done := make(chan struct{})

	select {
	case cs.stop <- stopReq{done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
