package wsnotify

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	EventReply      = "reply"
	EventMessage    = "message"
	EventAutomation = "automation"
	EventNoResponse = "no_response"
	EventStatus     = "status"
)

type WebSocketManager struct {
	clients map[*websocket.Conn]bool
	lock    sync.RWMutex
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func Upgrader() *websocket.Upgrader {
	return &upgrader
}

var Manager = NewManager()

func NewManager() *WebSocketManager {
	return &WebSocketManager{clients: make(map[*websocket.Conn]bool)}
}

func (m *WebSocketManager) AddClient(conn *websocket.Conn) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.clients[conn] = true
}

func (m *WebSocketManager) RemoveClient(conn *websocket.Conn) {
	m.lock.Lock()
	defer m.lock.Unlock()
	delete(m.clients, conn)
}

func (m *WebSocketManager) ClientCount() int {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return len(m.clients)
}

// Broadcast writes event to every client. Clients that fail the write are dropped.
func (m *WebSocketManager) Broadcast(event interface{}) {
	m.lock.Lock()
	defer m.lock.Unlock()
	for client := range m.clients {
		client.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := client.WriteJSON(event); err != nil {
			client.Close()
			delete(m.clients, client)
		}
	}
}

type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type ContactPayload struct {
	ContactID string `json:"contactId"`
	Name      string `json:"name"`
	Content   string `json:"content,omitempty"`
	Stage     int    `json:"automationStage"`
	SentAt    string `json:"sentAt"`
}

func NewContactEvent(eventType, contactID, name, content string, stage int, at time.Time) Event {
	return Event{
		Type: eventType,
		Payload: ContactPayload{
			ContactID: contactID,
			Name:      name,
			Content:   content,
			Stage:     stage,
			SentAt:    at.UTC().Format(time.RFC3339Nano),
		},
	}
}
