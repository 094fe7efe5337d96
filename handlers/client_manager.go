package handlers

import (
	"log"
	"sync"

	"burrow/server/messages"
	"burrow/server/services"
)

// ClientManager manages connected clients
type ClientManager struct {
	clients    map[string]*ClientHandler // walker ID -> handler
	viewRadius int
	logger     *log.Logger
	mutex      sync.RWMutex
}

// NewClientManager creates a new client manager
func NewClientManager(viewRadius int, logger *log.Logger) *ClientManager {
	if logger == nil {
		logger = log.Default()
	}
	if viewRadius <= 0 {
		viewRadius = 10
	}
	return &ClientManager{
		clients:    make(map[string]*ClientHandler),
		viewRadius: viewRadius,
		logger:     logger,
	}
}

// AddClient registers handler for walkerID, replacing an older session.
func (cm *ClientManager) AddClient(walkerID string, handler *ClientHandler) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()
	cm.clients[walkerID] = handler
}

// RemoveClient removes handler if it is still the session for walkerID.
func (cm *ClientManager) RemoveClient(walkerID string, handler *ClientHandler) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()
	if cm.clients[walkerID] == handler {
		delete(cm.clients, walkerID)
	}
}

// Count returns the number of connected clients.
func (cm *ClientManager) Count() int {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()
	return len(cm.clients)
}

// BroadcastToAll sends a message to all connected clients
func (cm *ClientManager) BroadcastToAll(msg interface{}) {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	for id, client := range cm.clients {
		if err := client.conn.SendMessage(msg); err != nil {
			cm.logger.Printf("Error broadcasting to client %s: %v", id, err)
		}
	}
}

// BroadcastToOthers sends a message to all connected clients except the specified one
func (cm *ClientManager) BroadcastToOthers(excludeWalkerID string, msg interface{}) {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	for id, client := range cm.clients {
		if id == excludeWalkerID {
			continue
		}
		if err := client.conn.SendMessage(msg); err != nil {
			cm.logger.Printf("Error broadcasting to client %s: %v", id, err)
		}
	}
}

// ExecuteOnAllClients executes a function for each connected client
func (cm *ClientManager) ExecuteOnAllClients(action func(*ClientHandler)) {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	for _, client := range cm.clients {
		action(client)
	}
}

// PublishTick sends the tick's events to everyone and refreshes every
// client's view. Its signature matches the WorldService.Run hook.
func (cm *ClientManager) PublishTick(tick uint64, events []services.Event) {
	for _, e := range events {
		cm.BroadcastToAll(messages.BaseMessage{
			Type: messages.MessageTypeEvent,
			Payload: messages.EventMessage{
				Kind:     string(e.Kind),
				WalkerID: e.WalkerID,
				Cell:     e.Cell,
				Tile:     e.Tile,
				Tick:     e.Tick,
			},
		})
	}
	cm.ExecuteOnAllClients(func(client *ClientHandler) {
		client.sendWorldUpdate()
	})
}
