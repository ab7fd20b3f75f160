package server

import (
	"log"
	"sort"
	"strings"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/chetanK28/planning-poker/internal/types"
)

type exitReq struct {
	done chan string
}

// memberState is the authoritative record for one named member. joinedAt is
// the seat sequence, kept stable across reconnects so the circle doesn't
// reshuffle on a refresh.
type memberState struct {
	role     types.Role
	joinedAt int
}

// Room runs a single voting session. All mutations are applied by the room's
// own goroutine in start(), so intents for one room are strictly serialized
// while distinct rooms run fully in parallel.
type Room struct {
	id string
	ps *PokerServer

	members  map[string]*memberState
	votes    map[string]string
	revealed bool
	average  AggregateResult
	topic    types.Topic
	seatSeq  int

	clients    map[*Client]struct{}
	userMap    map[string]map[*Client]struct{}
	clientLock sync.RWMutex

	joinChan   chan *ClientMessage
	leaveChan  chan *ClientMessage
	intentChan chan *ClientMessage
	// killTimer unloads the room once it has sat empty past the idle timeout
	killTimer clockwork.Timer
	exit      chan exitReq
	log       *log.Logger
}

func (r *Room) start() {
	r.log.Printf("starting room %q", r.id)
	r.killTimer = r.ps.clock.NewTimer(r.ps.idleTimeout)
	r.killTimer.Stop()

	for {
		select {
		case join := <-r.joinChan:
			r.handleJoin(join)
		case leaveMsg := <-r.leaveChan:
			r.handleLeave(leaveMsg)
		case msg := <-r.intentChan:
			switch {
			case msg.Vote != nil:
				r.handleVote(msg)
			case msg.Reveal != nil:
				r.handleReveal(msg)
			case msg.Reset != nil:
				r.handleReset(msg)
			case msg.SetTopic != nil:
				r.handleSetTopic(msg)
			}
		case <-r.killTimer.Chan():
			r.handleIdleTimeout()
		case e := <-r.exit:
			r.handleExit(e)
			return
		}
	}
}

func (r *Room) handleJoin(join *ClientMessage) {
	// stop the kill timer since we have a new client
	r.killTimer.Stop()

	c := join.client
	username := strings.TrimSpace(c.identity.Username)
	role := c.identity.Role
	if username == "" || !role.Valid() {
		c.queueMessage(ErrInvalidMessage(join.Id))
		if len(r.clients) == 0 {
			r.killTimer.Reset(r.ps.idleTimeout)
		}
		return
	}

	if m, ok := r.members[username]; ok {
		// re-join: the seat sequence survives, the role may be corrected
		m.role = role
	} else {
		r.seatSeq++
		r.members[username] = &memberState{role: role, joinedAt: r.seatSeq}
	}

	r.addClient(c)

	// the joining client rehydrates from a full snapshot
	c.queueMessage(NoErrOK(join.Id, r.snapshot()))

	// everyone else gets the membership delta
	r.broadcast(&ServerMessage{
		Notification: &Notification{
			Membership: &MembershipChange{
				RoomId:  r.id,
				Members: r.membersView(),
			},
		},
		SkipClient: c,
	})
}

func (r *Room) handleVote(msg *ClientMessage) {
	username := msg.Username()
	if _, ok := r.members[username]; !ok {
		// votes may only come from members
		r.log.Printf("vote from non-member %q in room %q", username, r.id)
		return
	}

	if r.revealed {
		// the round is frozen until the facilitator resets it
		msg.client.queueMessage(&ServerMessage{
			BaseMessage: BaseMessage{Id: msg.Id, Timestamp: Now()},
			Notification: &Notification{
				Notice: &Notice{
					RoomId: r.id,
					Text:   "votes are frozen until the next round starts",
				},
			},
		})
		return
	}

	value := strings.TrimSpace(msg.Vote.Value)
	if value == "" {
		msg.client.queueMessage(ErrInvalidMessage(msg.Id))
		return
	}

	// a member may change their vote any number of times; only the latest counts
	r.votes[username] = value
	r.ps.stats.Incr(statVotesCast)

	msg.client.queueMessage(NoErrAccepted(msg.Id))

	// only vote presence is broadcast before reveal, never the value
	r.broadcast(&ServerMessage{
		Notification: &Notification{
			VotePresence: &VotePresence{
				RoomId: r.id,
				Voted:  r.votePresence(),
			},
		},
	})
}

func (r *Room) handleReveal(msg *ClientMessage) {
	if !r.isFacilitator(msg.Username()) {
		msg.client.queueMessage(ErrForbidden(msg.Id))
		return
	}

	if r.revealed {
		// already revealed, resend the snapshot to the caller only
		msg.client.queueMessage(NoErrOK(msg.Id, r.snapshot()))
		return
	}

	if len(r.votes) == 0 {
		msg.client.queueMessage(&ServerMessage{
			BaseMessage: BaseMessage{Id: msg.Id, Timestamp: Now()},
			Notification: &Notification{
				Notice: &Notice{
					RoomId: r.id,
					Text:   "no votes have been cast yet",
				},
			},
		})
		return
	}

	r.revealed = true
	r.average = Average(r.votes)
	r.ps.stats.Incr(statRoundsRevealed)

	r.broadcast(&ServerMessage{
		Notification: &Notification{
			Revealed: &RevealedVotes{
				RoomId:  r.id,
				Votes:   r.votesView(),
				Average: r.average,
			},
		},
	})
}

func (r *Room) handleReset(msg *ClientMessage) {
	if !r.isFacilitator(msg.Username()) {
		msg.client.queueMessage(ErrForbidden(msg.Id))
		return
	}

	r.votes = make(map[string]string)
	r.revealed = false
	r.average = AggregateResult{}

	r.broadcast(&ServerMessage{
		Notification: &Notification{
			Reset: &RoundReset{RoomId: r.id},
		},
	})
}

func (r *Room) handleSetTopic(msg *ClientMessage) {
	if !r.isFacilitator(msg.Username()) {
		msg.client.queueMessage(ErrForbidden(msg.Id))
		return
	}

	title := strings.TrimSpace(msg.SetTopic.Title)
	description := strings.TrimSpace(msg.SetTopic.Description)
	if title == "" || description == "" {
		msg.client.queueMessage(ErrInvalidMessage(msg.Id))
		return
	}

	r.topic = types.Topic{Title: title, Description: description}

	// broadcast to everyone, including the facilitator's other sessions
	r.broadcast(&ServerMessage{
		Notification: &Notification{
			Topic: &TopicChange{
				RoomId:      r.id,
				Title:       title,
				Description: description,
			},
		},
	})
}

func (r *Room) handleLeave(leaveMsg *ClientMessage) {
	c := leaveMsg.client
	username := c.identity.Username

	r.removeClient(c)

	if leaveMsg.Leave != nil {
		// explicit leave intent, acknowledge it
		c.queueMessage(NoErrOK(leaveMsg.Id, nil))
	}

	// the member entry and their vote go once the last connection for the
	// username is gone; a revealed average is never recomputed here
	if r.userMap[username] == nil {
		delete(r.members, username)
		delete(r.votes, username)

		r.broadcast(&ServerMessage{
			Notification: &Notification{
				Membership: &MembershipChange{
					RoomId:  r.id,
					Members: r.membersView(),
				},
			},
			SkipClient: c,
		})
	}
}

func (r *Room) handleIdleTimeout() {
	r.log.Printf("room %q timed out", r.id)
	select {
	case r.ps.unloadRoomChan <- r.id:
	default:
		r.log.Printf("unload channel full, rescheduling room %q", r.id)
		r.killTimer.Reset(r.ps.idleTimeout)
	}
}

func (r *Room) handleExit(e exitReq) {
	r.log.Printf("room %q is exiting", r.id)

	r.clientLock.Lock()
	for c := range r.clients {
		c.delRoom(r.id)
	}
	r.clientLock.Unlock()

	if e.done != nil {
		e.done <- r.id
	}
}

func (r *Room) isFacilitator(username string) bool {
	m, ok := r.members[username]
	return ok && m.role == types.RoleFacilitator
}

// snapshot builds the rehydration view sent to a joining client. Vote values
// and the average are included only while the round is revealed.
func (r *Room) snapshot() types.Room {
	room := types.Room{
		Id:       r.id,
		Members:  r.membersView(),
		Topic:    r.topic,
		Revealed: r.revealed,
	}

	if r.revealed {
		room.Votes = r.votesView()
		room.Average = r.average.String()
	}

	return room
}

// membersView lists members ordered by seat sequence. Vote values appear
// only after reveal.
func (r *Room) membersView() []types.Member {
	members := make([]types.Member, 0, len(r.members))
	for username, m := range r.members {
		member := types.Member{
			Username: username,
			Role:     m.role,
			JoinedAt: m.joinedAt,
		}
		if vote, ok := r.votes[username]; ok {
			member.HasVoted = true
			if r.revealed {
				member.Vote = vote
			}
		}
		members = append(members, member)
	}

	sort.Slice(members, func(i, j int) bool {
		return members[i].JoinedAt < members[j].JoinedAt
	})

	return members
}

func (r *Room) votePresence() map[string]bool {
	voted := make(map[string]bool, len(r.members))
	for username := range r.members {
		_, ok := r.votes[username]
		voted[username] = ok
	}
	return voted
}

func (r *Room) votesView() map[string]string {
	votes := make(map[string]string, len(r.votes))
	for username, vote := range r.votes {
		votes[username] = vote
	}
	return votes
}

func (r *Room) addClient(c *Client) {
	r.clientLock.Lock()
	defer r.clientLock.Unlock()

	r.clients[c] = struct{}{}
	username := c.identity.Username
	if r.userMap[username] == nil {
		r.userMap[username] = make(map[*Client]struct{})
	}
	r.userMap[username][c] = struct{}{}

	c.addRoom(r)
}

func (r *Room) removeClient(c *Client) {
	r.clientLock.Lock()
	defer r.clientLock.Unlock()

	if _, ok := r.clients[c]; !ok {
		r.log.Printf("client %q not found in room %q", c.identity.Username, r.id)
		return
	}

	delete(r.clients, c)
	c.delRoom(r.id)

	username := c.identity.Username
	if userClients, ok := r.userMap[username]; ok {
		delete(userClients, c)
		if len(userClients) == 0 {
			delete(r.userMap, username)
		}
	}

	r.log.Printf("removed client %q from room %q", username, r.id)

	// last connection gone, start the kill timer
	if len(r.clients) == 0 {
		r.log.Printf("no clients in %q, starting kill timer", r.id)
		r.killTimer.Reset(r.ps.idleTimeout)
	}
}

func (r *Room) broadcast(msg *ServerMessage) {
	msg.Timestamp = Now()

	r.clientLock.RLock()
	defer r.clientLock.RUnlock()

	for client := range r.clients {
		if client == msg.SkipClient {
			continue
		}

		client.queueMessage(msg)
	}
}
