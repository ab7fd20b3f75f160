package types

// Role determines what a member may do in a room. Only the facilitator
// can reveal votes, reset a round, or edit the topic.
type Role string

const (
	RoleFacilitator Role = "facilitator"
	RoleParticipant Role = "participant"
)

func (r Role) Valid() bool {
	return r == RoleFacilitator || r == RoleParticipant
}

// Identity is the self-declared name and role of a connecting user. It is
// established once via the identity endpoint and carried by a signed cookie,
// so a page refresh rejoins the same member slot.
type Identity struct {
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

type Member struct {
	Username string `json:"username"`
	Role     Role   `json:"role"`
	// JoinedAt is the member's seat sequence within the room, assigned on
	// first join and preserved across reconnects.
	JoinedAt int    `json:"joined_at"`
	HasVoted bool   `json:"has_voted"`
	Vote     string `json:"vote,omitempty"`
}

type Topic struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Room is the snapshot a joining client receives to rehydrate its view.
// Votes and Average are populated only while the round is revealed.
type Room struct {
	Id       string            `json:"id"`
	Members  []Member          `json:"members"`
	Topic    Topic             `json:"topic"`
	Revealed bool              `json:"revealed"`
	Votes    map[string]string `json:"votes,omitempty"`
	Average  string            `json:"average,omitempty"`
}

// Deck is the card set offered by the UI. The engine itself accepts any
// non-empty token, so a custom deck doesn't require a server change.
var Deck = []string{"0", "1", "2", "3", "5", "8", "13", "20", "40", "100", "∞", "?"}
