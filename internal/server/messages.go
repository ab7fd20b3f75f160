package server

import (
	"net/http"
	"time"

	"github.com/chetanK28/planning-poker/internal/types"
)

type BaseMessage struct {
	Id        int       `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ClientMessage is a single intent from a connected client. Exactly one of
// the intent fields is set. The acting username and role are always taken
// from the connection's identity, never from the payload.
type ClientMessage struct {
	BaseMessage
	Join     *Join     `json:"join,omitempty"`
	Vote     *Vote     `json:"vote,omitempty"`
	Reveal   *Reveal   `json:"reveal,omitempty"`
	Reset    *Reset    `json:"reset,omitempty"`
	SetTopic *SetTopic `json:"set_topic,omitempty"`
	Leave    *Leave    `json:"leave,omitempty"`

	client *Client
}

// Username returns the identity of the client the message arrived on.
func (m *ClientMessage) Username() string {
	if m.client == nil {
		return ""
	}
	return m.client.identity.Username
}

type Join struct {
	RoomId string `json:"room_id"`
}

type Vote struct {
	RoomId string `json:"room_id"`
	Value  string `json:"value"`
}

type Reveal struct {
	RoomId string `json:"room_id"`
}

type Reset struct {
	RoomId string `json:"room_id"`
}

type SetTopic struct {
	RoomId      string `json:"room_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type Leave struct {
	RoomId string `json:"room_id"`
}

type ServerMessage struct {
	BaseMessage
	Response     *Response     `json:"response,omitempty"`
	Notification *Notification `json:"notification,omitempty"`
	SkipClient   *Client       `json:"-"`
}

type Response struct {
	ResponseCode int    `json:"response_code"`
	Error        string `json:"error,omitempty"`
	Data         any    `json:"data,omitempty"`
}

// Notification carries one room event. Responses go to the requesting
// client only; notifications are broadcast to room members.
type Notification struct {
	Membership   *MembershipChange `json:"membership,omitempty"`
	VotePresence *VotePresence     `json:"vote_presence,omitempty"`
	Revealed     *RevealedVotes    `json:"revealed,omitempty"`
	Reset        *RoundReset       `json:"reset,omitempty"`
	Topic        *TopicChange      `json:"topic,omitempty"`
	Notice       *Notice           `json:"notice,omitempty"`
}

type MembershipChange struct {
	RoomId  string         `json:"room_id"`
	Members []types.Member `json:"members"`
}

// VotePresence reports who has voted without disclosing any values.
type VotePresence struct {
	RoomId string          `json:"room_id"`
	Voted  map[string]bool `json:"voted"`
}

type RevealedVotes struct {
	RoomId  string            `json:"room_id"`
	Votes   map[string]string `json:"votes"`
	Average AggregateResult   `json:"average"`
}

type RoundReset struct {
	RoomId string `json:"room_id"`
}

type TopicChange struct {
	RoomId      string `json:"room_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Notice is a transient informational message; clients auto-dismiss it.
type Notice struct {
	RoomId string `json:"room_id"`
	Text   string `json:"text"`
}

func NoErrOK(id int, data any) *ServerMessage {
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

func ErrRoomNotFound(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusNotFound,
			Error:        "room not found",
		},
	}
}

func ErrForbidden(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusForbidden,
			Error:        "forbidden",
		},
	}
}

func ErrInternalError(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusInternalServerError,
			Error:        "internal server error",
		},
	}
}

func ErrServiceUnavailable(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusServiceUnavailable,
			Error:        "service unavailable",
		},
	}
}

func ErrInvalidMessage(id int) *ServerMessage {
	msg := &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusBadRequest,
			Error:        "invalid message format",
		},
	}

	if id > 0 {
		msg.Id = id
	}
	return msg
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
