package server

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/chetanK28/planning-poker/internal/stats"
)

const (
	statActiveRooms      = "ActiveRooms"
	statConnectedClients = "ConnectedClients"
	statVotesCast        = "VotesCast"
	statRoundsRevealed   = "RoundsRevealed"
)

type stopRequest struct {
	done chan struct{}
}

// PokerServer owns the room table. Rooms are created implicitly on the first
// join to an unseen id and unloaded once they have sat empty past the idle
// timeout. All room creation and removal happens on the Run goroutine.
type PokerServer struct {
	log            *log.Logger
	stats          stats.StatsProvider
	clock          clockwork.Clock
	idleTimeout    time.Duration
	clients        map[*Client]struct{}
	clientsLock    sync.Mutex
	joinChan       chan *ClientMessage
	RegisterChan   chan *Client
	deRegisterChan chan *Client
	unloadRoomChan chan string
	rooms          map[string]*Room
	stop           chan stopRequest
}

func NewPokerServer(logger *log.Logger, su stats.StatsProvider, clock clockwork.Clock, idleTimeout time.Duration) (*PokerServer, error) {
	ps := &PokerServer{
		log:            logger,
		stats:          su,
		clock:          clock,
		idleTimeout:    idleTimeout,
		clients:        make(map[*Client]struct{}),
		joinChan:       make(chan *ClientMessage, 256),
		RegisterChan:   make(chan *Client),
		deRegisterChan: make(chan *Client),
		unloadRoomChan: make(chan string, 256),
		rooms:          make(map[string]*Room),
		stop:           make(chan stopRequest),
	}

	su.RegisterMetric(statActiveRooms)
	su.RegisterMetric(statConnectedClients)
	su.RegisterMetric(statVotesCast)
	su.RegisterMetric(statRoundsRevealed)

	return ps, nil
}

func (ps *PokerServer) Run() {
	for {
		select {
		case joinMsg := <-ps.joinChan:
			room, ok := ps.rooms[joinMsg.Join.RoomId]
			if !ok {
				// first join to an unseen id creates the room
				room = ps.createRoom(joinMsg.Join.RoomId)
			}

			select {
			case room.joinChan <- joinMsg:
			default:
				ps.log.Printf("join channel full on room %q", room.id)
				joinMsg.client.queueMessage(ErrServiceUnavailable(joinMsg.Id))
			}
		case client := <-ps.RegisterChan:
			ps.log.Printf("adding connection %s from %q", client.id, client.identity.Username)
			ps.addClient(client)
		case client := <-ps.deRegisterChan:
			ps.log.Printf("removing connection %s from %q", client.id, client.identity.Username)
			ps.removeClient(client)
		case id := <-ps.unloadRoomChan:
			ps.unloadRoom(id)
		case req := <-ps.stop:
			ps.log.Println("shutting down rooms")
			for _, r := range ps.rooms {
				done := make(chan string)
				r.exit <- exitReq{done: done}
				<-done
			}

			close(req.done)
			return
		}
	}
}

func (ps *PokerServer) createRoom(id string) *Room {
	room := &Room{
		id:         id,
		ps:         ps,
		members:    make(map[string]*memberState),
		votes:      make(map[string]string),
		clients:    make(map[*Client]struct{}),
		userMap:    make(map[string]map[*Client]struct{}),
		joinChan:   make(chan *ClientMessage, 256),
		leaveChan:  make(chan *ClientMessage, 256),
		intentChan: make(chan *ClientMessage, 256),
		exit:       make(chan exitReq),
		log:        ps.log,
	}

	ps.rooms[id] = room
	ps.stats.Incr(statActiveRooms)

	go room.start()

	return room
}

func (ps *PokerServer) unloadRoom(id string) {
	r, ok := ps.rooms[id]
	if !ok {
		return
	}

	// a join forwarded before the timeout fired may still be in flight; the
	// room will stop its own kill timer when it processes it
	if len(r.joinChan) > 0 {
		return
	}
	r.clientLock.RLock()
	empty := len(r.clients) == 0
	r.clientLock.RUnlock()
	if !empty {
		return
	}

	ps.log.Printf("removing room %q", r.id)
	delete(ps.rooms, id)
	ps.stats.Decr(statActiveRooms)

	done := make(chan string)
	r.exit <- exitReq{done: done}
	<-done
}

func (ps *PokerServer) addClient(c *Client) {
	ps.clientsLock.Lock()
	defer ps.clientsLock.Unlock()
	ps.clients[c] = struct{}{}
	ps.stats.Incr(statConnectedClients)
}

func (ps *PokerServer) removeClient(c *Client) {
	ps.clientsLock.Lock()
	defer ps.clientsLock.Unlock()
	if _, ok := ps.clients[c]; ok {
		delete(ps.clients, c)
		ps.stats.Decr(statConnectedClients)
	}
}

func (ps *PokerServer) Shutdown(ctx context.Context) error {
	ps.log.Println("received shutdown signal")

	ps.clientsLock.Lock()
	for c := range ps.clients {
		c.stopClient()
	}
	ps.clientsLock.Unlock()

	req := stopRequest{done: make(chan struct{})}
	select {
	case ps.stop <- req:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-req.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
