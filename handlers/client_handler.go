package handlers

import (
	"encoding/json"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"burrow/server/messages"
	"burrow/server/models"
	"burrow/server/network"
	"burrow/server/pathing"
	"burrow/server/services"
)

// ClientHandler manages a single client connection
type ClientHandler struct {
	conn          *network.Connection
	walkerService *services.WalkerService
	worldService  *services.WorldService
	clientManager *ClientManager
	walker        atomic.Pointer[models.Walker] // nil until login
}

// HandleClientConnection serves one client until its connection drops. The
// walker stays in the world after the client leaves.
func HandleClientConnection(wsConn *websocket.Conn, walkerService *services.WalkerService, worldService *services.WorldService, clientManager *ClientManager) {
	logger := clientManager.logger
	conn := network.NewConnection(wsConn, logger)
	logger.Printf("New connection from %s", conn.RemoteAddr())

	handler := &ClientHandler{
		conn:          conn,
		walkerService: walkerService,
		worldService:  worldService,
		clientManager: clientManager,
	}

	go conn.WritePump()
	conn.ReadPump(handler)

	if walker := handler.walker.Load(); walker != nil {
		clientManager.RemoveClient(walker.ID, handler)
		if err := walkerService.Save(walker.ID); err != nil {
			logger.Printf("Error saving walker %s: %v", walker.Name, err)
		}
		logger.Printf("Walker %s disconnected", walker.Name)
	}
}

// HandleMessage handles incoming messages from the client
func (h *ClientHandler) HandleMessage(conn *network.Connection, message []byte) {
	var env messages.Envelope
	if err := json.Unmarshal(message, &env); err != nil {
		h.sendError(messages.CodeBadRequest, "malformed message")
		return
	}

	walker := h.walker.Load()
	if env.Type != messages.MessageTypeLogin && walker == nil {
		h.sendError(messages.CodeNotLoggedIn, "log in first")
		return
	}

	var err error
	switch env.Type {
	case messages.MessageTypeLogin:
		err = h.handleLogin(env)
	case messages.MessageTypeSetTarget:
		err = h.handleSetTarget(walker, env)
	case messages.MessageTypeAdvance:
		err = h.handleAdvance(walker, env)
	case messages.MessageTypeRoute:
		err = h.sendRoute(walker, nil)
	case messages.MessageTypeSetTile:
		err = h.handleSetTile(env)
	case messages.MessageTypeChat:
		err = h.handleChat(walker, env)
	default:
		h.clientManager.logger.Printf("Unknown message type: %s", env.Type)
		h.sendError(messages.CodeUnknownType, "unknown message type "+string(env.Type))
		return
	}
	if err != nil {
		h.reportError(err)
	}
}

// badRequest marks errors caused by the client's payload.
type badRequest struct{ err error }

func (b badRequest) Error() string { return b.err.Error() }
func (b badRequest) Unwrap() error { return b.err }

func decode(env messages.Envelope, v any) error {
	if err := env.Decode(v); err != nil {
		return badRequest{err}
	}
	return nil
}

func (h *ClientHandler) reportError(err error) {
	var bad badRequest
	switch {
	case errors.Is(err, pathing.ErrInvalidCell):
		h.sendError(messages.CodeInvalidCell, err.Error())
	case errors.As(err, &bad):
		h.sendError(messages.CodeBadRequest, err.Error())
	default:
		h.clientManager.logger.Printf("Error handling message: %v", err)
		h.sendError(messages.CodeInternalError, err.Error())
	}
}

func (h *ClientHandler) sendError(code, msg string) {
	_ = h.conn.SendMessage(messages.BaseMessage{
		Type:    messages.MessageTypeError,
		Payload: messages.ErrorMessage{Code: code, Message: msg},
	})
}

// handleLogin handles login requests
func (h *ClientHandler) handleLogin(env messages.Envelope) error {
	var loginMsg messages.LoginMessage
	if err := decode(env, &loginMsg); err != nil {
		return err
	}
	name := strings.TrimSpace(loginMsg.Name)
	if name == "" {
		return badRequest{errors.New("name is required")}
	}

	walker, err := h.walkerService.GetOrCreateWalker(name)
	if err != nil {
		h.clientManager.logger.Printf("Error getting/creating walker: %v", err)
		h.sendError(messages.CodeLoginFailed, "failed to log in")
		return nil
	}
	if prev := h.walker.Swap(walker); prev != nil && prev.ID != walker.ID {
		h.clientManager.RemoveClient(prev.ID, h)
	}
	h.clientManager.AddClient(walker.ID, h)

	snapshot, err := h.worldService.WalkerCopy(walker.ID)
	if err != nil {
		return err
	}
	if err := h.conn.SendMessage(messages.BaseMessage{
		Type: messages.MessageTypeLoginSuccess,
		Payload: messages.LoginSuccessMessage{
			WalkerID: walker.ID,
			World:    h.worldService.Name(),
			Extent:   h.worldService.Extent(),
			Periodic: h.worldService.Periodic(),
			Cell:     snapshot.Nav.Cell(),
			Message:  "Login successful",
		},
	}); err != nil {
		return err
	}

	h.clientManager.BroadcastToOthers(walker.ID, messages.BaseMessage{
		Type: messages.MessageTypeEvent,
		Payload: messages.EventMessage{
			Kind:     "joined",
			WalkerID: walker.ID,
			Cell:     snapshot.Nav.Cell(),
			Tick:     h.worldService.CurrentTick(),
		},
	})
	h.sendWorldUpdate()
	return nil
}

// handleSetTarget computes a route for the walker and reports it.
func (h *ClientHandler) handleSetTarget(walker *models.Walker, env messages.Envelope) error {
	var msg messages.SetTargetMessage
	if err := decode(env, &msg); err != nil {
		return err
	}
	found, err := h.worldService.SetTarget(walker.ID, msg.Target)
	if err != nil {
		return err
	}
	route, err := h.worldService.Route(walker.ID)
	if err != nil {
		return err
	}
	cells := route.Cells()
	if cells == nil {
		cells = []pathing.Cell{}
	}
	return h.conn.SendMessage(messages.BaseMessage{
		Type: messages.MessageTypeTargetResult,
		Payload: messages.TargetResultMessage{
			Target: msg.Target,
			Found:  found,
			Route:  cells,
			Cost:   route.Cost(),
		},
	})
}

// handleAdvance moves the walker right away by a budget or by whole hops.
func (h *ClientHandler) handleAdvance(walker *models.Walker, env messages.Envelope) error {
	var msg messages.AdvanceMessage
	if err := decode(env, &msg); err != nil {
		return err
	}
	if msg.Budget < 0 || msg.Hops < 0 {
		return badRequest{errors.New("budget and hops must not be negative")}
	}

	var p pathing.Progress
	if msg.Hops > 0 {
		left, err := h.worldService.Step(walker.ID, msg.Hops)
		if err != nil {
			return err
		}
		p.Remaining = float64(left)
	} else {
		var err error
		if p, err = h.worldService.Advance(walker.ID, msg.Budget); err != nil {
			return err
		}
	}
	return h.sendRoute(walker, &p)
}

// sendRoute reports the walker's remaining route, with the outcome of an
// advance when p is set.
func (h *ClientHandler) sendRoute(walker *models.Walker, p *pathing.Progress) error {
	desc, err := h.worldService.Describe(walker.ID)
	if err != nil {
		return err
	}
	if desc.Route == nil {
		desc.Route = []pathing.Cell{}
	}
	if p != nil {
		desc.Remaining = p.Remaining
		desc.Blocked = p.Blocked
	}
	return h.conn.SendMessage(messages.BaseMessage{
		Type:    messages.MessageTypeRoute,
		Payload: desc,
	})
}

// handleSetTile queues a map edit. Everyone hears about it on the next tick.
func (h *ClientHandler) handleSetTile(env messages.Envelope) error {
	var msg messages.SetTileMessage
	if err := decode(env, &msg); err != nil {
		return err
	}
	if !models.ValidTile(msg.Tile) {
		return badRequest{errors.New("unknown tile")}
	}
	return h.worldService.SetTile(msg.Cell, msg.Tile)
}

// handleChat handles chat messages
func (h *ClientHandler) handleChat(walker *models.Walker, env messages.Envelope) error {
	var chatMsg messages.ChatMessage
	if err := decode(env, &chatMsg); err != nil {
		return err
	}
	chatMsg.Sender = walker.Name
	chatMsg.Timestamp = time.Now().Unix()

	h.clientManager.BroadcastToAll(messages.BaseMessage{
		Type:    messages.MessageTypeChat,
		Payload: chatMsg,
	})
	return nil
}

// sendWorldUpdate sends the current world state around the walker
func (h *ClientHandler) sendWorldUpdate() {
	walker := h.walker.Load()
	if walker == nil {
		return
	}

	update, err := h.worldService.View(walker.ID, h.clientManager.viewRadius)
	if err != nil {
		h.clientManager.logger.Printf("Error building world update: %v", err)
		return
	}
	if update.Route == nil {
		update.Route = []pathing.Cell{}
	}
	if err := h.conn.SendMessage(messages.BaseMessage{
		Type:    messages.MessageTypeUpdate,
		Payload: update,
	}); err != nil {
		h.clientManager.logger.Printf("Error sending world update: %v", err)
	}
}
