package server

import (
	"context"
	"testing"
	"time"

	"github.com/kusum-bhattarai/dev-journal/internal/database"
	"github.com/kusum-bhattarai/dev-journal/internal/integrations/journalapi"
	"github.com/kusum-bhattarai/dev-journal/internal/stats"
	"github.com/kusum-bhattarai/dev-journal/internal/testutil"
	"github.com/kusum-bhattarai/dev-journal/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// newTestChatServer creates a ChatServer instance for testing purposes
func newTestChatServer(t *testing.T, db database.ChatRepository, journal journalapi.JournalService, su *stats.MockStatsUpdater) *ChatServer {
	su.On("RegisterMetric", mock.Anything, mock.Anything).Times(5)

	logger := testutil.TestLogger(t)
	cs, err := NewChatServer(logger, db, journal, su)
	if err != nil {
		t.Fatalf("failed to create test ChatServer: %v", err)
	}
	return cs
}

func newTestClient(t *testing.T, cs *ChatServer, userId int) *Client {
	t.Helper()
	return &Client{
		chatServer: cs,
		log:        testutil.TestLogger(t),
		session:    "test-session",
		user:       types.User{Id: userId},
		send:       make(chan *ServerMessage, 256),
		rooms:      make(map[string]struct{}),
		stop:       make(chan struct{}),
	}
}

func TestNewChatServer(t *testing.T) {
	db := &database.MockChatRepository{}
	defer db.AssertExpectations(t)

	su := &stats.MockStatsUpdater{}
	defer su.AssertExpectations(t)
	su.On("RegisterMetric", mock.Anything, mock.Anything).Times(5)

	logger := testutil.TestLogger(t)
	cs, err := NewChatServer(logger, db, &journalapi.MockJournalService{}, su)
	assert.NoError(t, err, "expected no error creating ChatServer")
	assert.NotNil(t, cs, "expected ChatServer to be non-nil")
	assert.Equal(t, logger, cs.log, "expected logger to be set")
	assert.Equal(t, db, cs.db, "expected database repository to be set")
	assert.NotNil(t, cs.joinChan, "expected joinChan to be initialized")
	assert.NotNil(t, cs.leaveChan, "expected leaveChan to be initialized")
	assert.NotNil(t, cs.broadcastChan, "expected broadcastChan to be initialized")
	assert.NotNil(t, cs.stop, "expected stop channel to be initialized")
	assert.NotNil(t, cs.clients, "expected clients map to be initialized")
	assert.NotNil(t, cs.rooms, "expected rooms map to be initialized")
}

func Test_handleJoin_handleLeave(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	defer su.AssertExpectations(t)
	su.On("Incr", MetricActiveRooms).Once()
	su.On("Decr", MetricActiveRooms).Once()

	cs := newTestChatServer(t, &database.MockChatRepository{}, &journalapi.MockJournalService{}, su)
	c := newTestClient(t, cs, 1)

	room := ConversationRoom(5)
	cs.handleJoin(joinReq{client: c, room: room, msgId: 1, ack: true})

	assert.Contains(t, cs.rooms, room, "expected room to be created on first join")
	assert.Contains(t, cs.rooms[room].clients, c, "expected client to be a room member")
	assert.Contains(t, c.rooms, room, "expected client to track its membership")

	select {
	case msg := <-c.send:
		assert.NotNil(t, msg.Response, "expected join ack")
		assert.Equal(t, 200, msg.Response.ResponseCode, "expected 200 join ack")
	default:
		t.Error("expected join ack to be queued")
	}

	cs.handleLeave(leaveReq{client: c, room: room, msgId: 2, ack: true})

	assert.NotContains(t, cs.rooms, room, "expected empty room to be unloaded")
	assert.NotContains(t, c.rooms, room, "expected client membership to be released")
}

func Test_handleBroadcast_scoping(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	su.On("Incr", MetricActiveRooms).Once()
	su.On("Incr", MetricBroadcasts).Times(2)

	cs := newTestChatServer(t, &database.MockChatRepository{}, &journalapi.MockJournalService{}, su)

	member1 := newTestClient(t, cs, 1)
	member2 := newTestClient(t, cs, 2)
	outsider := newTestClient(t, cs, 3)

	room := ConversationRoom(7)
	cs.handleJoin(joinReq{client: member1, room: room})
	cs.handleJoin(joinReq{client: member2, room: room})

	cs.handleBroadcast(broadcastReq{
		room: room,
		msg:  &ServerMessage{Message: &types.Message{Id: 10, ConversationId: 7}},
	})

	for _, c := range []*Client{member1, member2} {
		select {
		case msg := <-c.send:
			assert.NotNil(t, msg.Message, "expected message event")
			assert.Equal(t, 10, msg.Message.Id, "expected broadcast message id to match")
		default:
			t.Error("expected room member to receive broadcast")
		}
	}

	select {
	case <-outsider.send:
		t.Error("expected non-member to receive nothing")
	default:
	}
}

func Test_handleBroadcast_skipClient(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	su.On("Incr", MetricActiveRooms).Once()
	su.On("Incr", MetricBroadcasts).Once()

	cs := newTestChatServer(t, &database.MockChatRepository{}, &journalapi.MockJournalService{}, su)

	editor := newTestClient(t, cs, 1)
	viewer := newTestClient(t, cs, 2)

	room := JournalRoom(3)
	cs.handleJoin(joinReq{client: editor, room: room})
	cs.handleJoin(joinReq{client: viewer, room: room})

	cs.handleBroadcast(broadcastReq{
		room: room,
		msg: &ServerMessage{
			JournalUpdate: &JournalUpdate{JournalId: 3, Content: "updated"},
			SkipClient:    editor,
		},
	})

	select {
	case msg := <-viewer.send:
		assert.NotNil(t, msg.JournalUpdate, "expected journal update event")
		assert.Equal(t, "updated", msg.JournalUpdate.Content, "expected content to match")
	default:
		t.Error("expected co-editor to receive broadcast")
	}

	select {
	case <-editor.send:
		t.Error("expected originating connection to be skipped")
	default:
	}
}

func Test_handleBroadcast_unknownRoom(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	defer su.AssertExpectations(t)

	cs := newTestChatServer(t, &database.MockChatRepository{}, &journalapi.MockJournalService{}, su)

	// no members, no room; must not panic and must not count a delivery
	cs.handleBroadcast(broadcastReq{
		room: ConversationRoom(99),
		msg:  &ServerMessage{Message: &types.Message{Id: 1}},
	})
}

func Test_removeClient_releasesRooms(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	su.On("Incr", MetricActiveConnections).Once()
	su.On("Decr", MetricActiveConnections).Once()
	su.On("Incr", MetricActiveRooms).Times(2)
	su.On("Decr", MetricActiveRooms).Times(2)

	cs := newTestChatServer(t, &database.MockChatRepository{}, &journalapi.MockJournalService{}, su)
	c := newTestClient(t, cs, 1)

	cs.clients[c] = struct{}{}
	cs.stats.Incr(MetricActiveConnections)

	cs.handleJoin(joinReq{client: c, room: ConversationRoom(1)})
	cs.handleJoin(joinReq{client: c, room: JournalRoom(2)})

	cs.removeClient(c)

	assert.Empty(t, cs.clients, "expected client to be deregistered")
	assert.Empty(t, cs.rooms, "expected all rooms to be unloaded")
	assert.Empty(t, c.rooms, "expected client memberships to be cleared")

	// removing twice is a no-op
	cs.removeClient(c)
}

func TestChatServerShutdown(t *testing.T) {
	t.Run("successful shutdown", func(t *testing.T) {
		cs := newTestChatServer(t, &database.MockChatRepository{}, &journalapi.MockJournalService{}, &stats.MockStatsUpdater{})
		go cs.Run()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		err := cs.Shutdown(ctx)
		assert.NoError(t, err, "expected successful shutdown without error")
	})

	t.Run("fails with context deadline exceeded", func(t *testing.T) {
		cs := newTestChatServer(t, &database.MockChatRepository{}, &journalapi.MockJournalService{}, &stats.MockStatsUpdater{})
		// run loop never started, so the stop request cannot be accepted

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		err := cs.Shutdown(ctx)
		assert.ErrorIs(t, err, context.DeadlineExceeded, "expected context deadline exceeded error")
	})

	t.Run("stops registered clients", func(t *testing.T) {
		su := &stats.MockStatsUpdater{}
		su.On("Incr", MetricActiveConnections).Once()

		cs := newTestChatServer(t, &database.MockChatRepository{}, &journalapi.MockJournalService{}, su)
		go cs.Run()

		c := newTestClient(t, cs, 1)
		cs.RegisterClient(c)

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		err := cs.Shutdown(ctx)
		assert.NoError(t, err, "expected successful shutdown")

		select {
		case <-c.stop:
		case <-time.After(100 * time.Millisecond):
			t.Error("expected client stop channel to be closed on shutdown")
		}
	})
}

func TestBroadcast_channelFull(t *testing.T) {
	cs := newTestChatServer(t, &database.MockChatRepository{}, &journalapi.MockJournalService{}, &stats.MockStatsUpdater{})
	cs.broadcastChan = make(chan broadcastReq, 1)
	cs.broadcastChan <- broadcastReq{room: "conversation:1"}

	ok := cs.Broadcast("conversation:2", &ServerMessage{})
	assert.False(t, ok, "expected broadcast to report a full channel")
}
