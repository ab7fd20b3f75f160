package server

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/chetanK28/planning-poker/internal/stats"
	"github.com/chetanK28/planning-poker/internal/testutil"
	"github.com/chetanK28/planning-poker/internal/types"
)

func TestNewPokerServer(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	defer su.AssertExpectations(t)
	su.On("RegisterMetric", mock.Anything).Return(nil).Times(4)

	logger := testutil.TestLogger(t)
	ps, err := NewPokerServer(logger, su, clockwork.NewFakeClock(), testIdleTimeout)
	assert.NoError(t, err, "expected no error creating PokerServer")
	assert.NotNil(t, ps, "expected PokerServer to be non-nil")
	assert.Equal(t, logger, ps.log, "expected logger to be set")
	assert.Equal(t, testIdleTimeout, ps.idleTimeout, "expected idle timeout to be set")
	assert.NotNil(t, ps.joinChan, "expected joinChan to be initialized")
	assert.NotNil(t, ps.unloadRoomChan, "expected unloadRoomChan to be initialized")
	assert.NotNil(t, ps.stop, "expected stop channel to be initialized")
	assert.NotNil(t, ps.clients, "expected clients map to be initialized")
	assert.NotNil(t, ps.rooms, "expected rooms map to be initialized")
}

func Test_createRoom(t *testing.T) {
	ps := newTestPokerServer(t, &stats.MockStatsUpdater{})

	room := ps.createRoom("sprint-12")
	assert.NotNil(t, room, "expected room to be created")
	assert.Contains(t, ps.rooms, "sprint-12", "expected room to be registered")
	assert.Equal(t, "sprint-12", room.id, "expected room id to match")
	assert.NotNil(t, room.members, "expected members map to be initialized")
	assert.NotNil(t, room.votes, "expected votes map to be initialized")
	assert.False(t, room.revealed, "expected a new room to start in voting state")

	// the room goroutine is running; ask it to exit
	done := make(chan string)
	room.exit <- exitReq{done: done}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Error("timeout: room did not exit")
	}
}

func Test_unloadRoom(t *testing.T) {
	t.Run("removes an empty room", func(t *testing.T) {
		ps := newTestPokerServer(t, &stats.MockStatsUpdater{})
		ps.createRoom("empty-room")

		ps.unloadRoom("empty-room")
		assert.NotContains(t, ps.rooms, "empty-room", "expected room to be removed")
	})

	t.Run("keeps a room with a pending join", func(t *testing.T) {
		ps := newTestPokerServer(t, &stats.MockStatsUpdater{})
		room := ps.createRoom("busy-room")

		c := newTestClient(t, "alice", types.RoleFacilitator)
		room.joinChan <- &ClientMessage{Join: &Join{RoomId: "busy-room"}, client: c}

		ps.unloadRoom("busy-room")
		assert.Contains(t, ps.rooms, "busy-room", "expected room with a pending join to be kept")
	})

	t.Run("keeps a room with connected clients", func(t *testing.T) {
		ps := newTestPokerServer(t, &stats.MockStatsUpdater{})
		room := ps.createRoom("active-room")

		c := newTestClient(t, "alice", types.RoleFacilitator)
		room.clientLock.Lock()
		room.clients[c] = struct{}{}
		room.clientLock.Unlock()

		ps.unloadRoom("active-room")
		assert.Contains(t, ps.rooms, "active-room", "expected room with clients to be kept")
	})

	t.Run("ignores an unknown room", func(t *testing.T) {
		ps := newTestPokerServer(t, &stats.MockStatsUpdater{})
		ps.unloadRoom("never-existed")
	})
}

func TestRunJoinCreatesRoom(t *testing.T) {
	ps := newTestPokerServer(t, &stats.MockStatsUpdater{})
	go ps.Run()

	c := newTestClient(t, "alice", types.RoleFacilitator)
	ps.joinChan <- &ClientMessage{
		BaseMessage: BaseMessage{Id: 1},
		Join:        &Join{RoomId: "fresh-room"},
		client:      c,
	}

	// the join flows through the server goroutine into the new room goroutine
	select {
	case msg := <-c.send:
		assert.NotNil(t, msg.Response, "expected a snapshot response")
		assert.Equal(t, 200, msg.Response.ResponseCode, "expected OK response")
		snapshot, ok := msg.Response.Data.(types.Room)
		assert.True(t, ok, "expected room snapshot in response data")
		assert.Equal(t, "fresh-room", snapshot.Id, "expected the implicitly created room")
	case <-time.After(time.Second):
		t.Fatal("timeout: join was not processed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, ps.Shutdown(ctx), "expected clean shutdown")
}

func TestIdleRoomUnload(t *testing.T) {
	ps := newTestPokerServer(t, &stats.MockStatsUpdater{})
	fakeClock := ps.clock.(*clockwork.FakeClock)

	room := ps.createRoom("idle-room")

	alice := newTestClient(t, "alice", types.RoleFacilitator)
	room.joinChan <- &ClientMessage{Join: &Join{RoomId: "idle-room"}, client: alice}

	select {
	case <-alice.send:
	case <-time.After(time.Second):
		t.Fatal("timeout: join was not processed")
	}

	room.leaveChan <- &ClientMessage{client: alice}

	// the kill timer starts once the last client is gone
	fakeClock.BlockUntil(1)
	fakeClock.Advance(testIdleTimeout)

	select {
	case id := <-ps.unloadRoomChan:
		assert.Equal(t, "idle-room", id, "expected the idle room to request unload")
	case <-time.After(time.Second):
		t.Fatal("timeout: idle room never requested unload")
	}

	done := make(chan string)
	room.exit <- exitReq{done: done}
	<-done
}

func TestPokerServerShutdown(t *testing.T) {
	t.Run("successful shutdown", func(t *testing.T) {
		ps := newTestPokerServer(t, &stats.MockStatsUpdater{})
		go ps.Run()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		err := ps.Shutdown(ctx)
		assert.NoError(t, err, "expected successful shutdown without error")
	})

	t.Run("shuts down running rooms", func(t *testing.T) {
		ps := newTestPokerServer(t, &stats.MockStatsUpdater{})
		go ps.Run()

		c := newTestClient(t, "alice", types.RoleFacilitator)
		ps.joinChan <- &ClientMessage{Join: &Join{RoomId: "doomed-room"}, client: c}

		select {
		case <-c.send:
		case <-time.After(time.Second):
			t.Fatal("timeout: join was not processed")
		}

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		assert.NoError(t, ps.Shutdown(ctx), "expected shutdown to stop the room goroutines")
	})

	t.Run("fails with context deadline exceeded", func(t *testing.T) {
		ps := newTestPokerServer(t, &stats.MockStatsUpdater{})
		// Run is not started, so the stop request can never be accepted

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		err := ps.Shutdown(ctx)
		assert.ErrorIs(t, err, context.DeadlineExceeded, "expected deadline exceeded when the server is not running")
	})
}

func Test_addClient_removeClient(t *testing.T) {
	ps := newTestPokerServer(t, &stats.MockStatsUpdater{})
	c := newTestClient(t, "alice", types.RoleFacilitator)

	ps.addClient(c)
	assert.Contains(t, ps.clients, c, "expected client to be registered")

	ps.removeClient(c)
	assert.NotContains(t, ps.clients, c, "expected client to be removed")

	// removing twice is harmless
	ps.removeClient(c)
}
