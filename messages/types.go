package messages

import (
	"encoding/json"

	"burrow/server/pathing"
)

// MessageType defines the type of message being sent
type MessageType string

const (
	MessageTypeLogin        MessageType = "login"
	MessageTypeLoginSuccess MessageType = "login_success"
	MessageTypeSetTarget    MessageType = "set_target"
	MessageTypeTargetResult MessageType = "target_result"
	MessageTypeAdvance      MessageType = "advance"
	MessageTypeRoute        MessageType = "route"
	MessageTypeSetTile      MessageType = "set_tile"
	MessageTypeChat         MessageType = "chat"
	MessageTypeUpdate       MessageType = "update"
	MessageTypeEvent        MessageType = "event"
	MessageTypeError        MessageType = "error"
)

// Error codes sent in ErrorMessage.Code.
const (
	CodeBadRequest    = "bad_request"
	CodeNotLoggedIn   = "not_logged_in"
	CodeInvalidCell   = "invalid_cell"
	CodeUnknownType   = "unknown_type"
	CodeLoginFailed   = "login_failed"
	CodeInternalError = "internal_error"
)

// BaseMessage is the base structure for all messages
type BaseMessage struct {
	Type    MessageType `json:"type"`
	Payload interface{} `json:"payload"`
}

// Envelope is an inbound message whose payload is decoded once its type is known.
type Envelope struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Decode unmarshals the payload into v. An absent payload leaves v untouched.
func (e Envelope) Decode(v any) error {
	if len(e.Payload) == 0 || string(e.Payload) == "null" {
		return nil
	}
	return json.Unmarshal(e.Payload, v)
}

// LoginMessage represents a login request
type LoginMessage struct {
	Name string `json:"name"`
}

// LoginSuccessMessage represents a successful login response
type LoginSuccessMessage struct {
	WalkerID string       `json:"walker_id"`
	World    string       `json:"world"`
	Extent   []int        `json:"extent"`
	Periodic bool         `json:"periodic"`
	Cell     pathing.Cell `json:"cell"`
	Message  string       `json:"message"`
}

// SetTargetMessage asks the server to route the walker to a cell.
type SetTargetMessage struct {
	Target pathing.Cell `json:"target"`
}

// TargetResultMessage answers a SetTargetMessage. Found is false when no path exists.
type TargetResultMessage struct {
	Target pathing.Cell   `json:"target"`
	Found  bool           `json:"found"`
	Route  []pathing.Cell `json:"route"`
	Cost   float64        `json:"cost"`
}

// AdvanceMessage moves the walker immediately instead of waiting for ticks.
// Budget is in metric units; Hops, when set, moves whole hops instead.
type AdvanceMessage struct {
	Budget float64 `json:"budget,omitempty"`
	Hops   int     `json:"hops,omitempty"`
}

// RouteMessage describes the remaining route of a walker.
type RouteMessage struct {
	WalkerID   string         `json:"walker_id"`
	Cell       pathing.Cell   `json:"cell"`
	Position   [3]float64     `json:"position"`
	Route      []pathing.Cell `json:"route"`
	Cost       float64        `json:"cost"`
	Stationary bool           `json:"stationary"`
	Remaining  float64        `json:"remaining,omitempty"`
	Blocked    bool           `json:"blocked,omitempty"`
}

// SetTileMessage edits the map. The change applies on the next tick.
type SetTileMessage struct {
	Cell pathing.Cell `json:"cell"`
	Tile int          `json:"tile"`
}

// ChatMessage represents a chat message
type ChatMessage struct {
	Sender    string `json:"sender"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// WalkerView is what clients see of another walker.
type WalkerView struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Icon     string     `json:"icon"`
	Color    []int      `json:"color"`
	Position [3]float64 `json:"position"`
	Moving   bool       `json:"moving"`
}

// BeaconView is a static marker within view.
type BeaconView struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Char  string `json:"char"`
	Color []int  `json:"color"`
	X     int    `json:"x"`
	Y     int    `json:"y"`
	Z     int    `json:"z"`
}

// MapView is the tile window around a walker, indexed [row][col].
type MapView struct {
	CenterX int     `json:"center_x"`
	CenterY int     `json:"center_y"`
	Z       int     `json:"z"`
	Radius  int     `json:"radius"`
	Tiles   [][]int `json:"tiles"`
}

// UpdateMessage represents a world update
type UpdateMessage struct {
	Tick    uint64         `json:"tick"`
	Walkers []WalkerView   `json:"walkers"`
	Beacons []BeaconView   `json:"beacons"`
	Route   []pathing.Cell `json:"route"`
	Map     MapView        `json:"map"`
}

// EventMessage reports arrivals, blocked routes, tile changes and joining walkers.
type EventMessage struct {
	Kind     string       `json:"kind"`
	WalkerID string       `json:"walker_id,omitempty"`
	Cell     pathing.Cell `json:"cell"`
	Tile     int          `json:"tile,omitempty"`
	Tick     uint64       `json:"tick"`
}

// ErrorMessage represents an error response
type ErrorMessage struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
