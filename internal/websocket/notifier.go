package websocket

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/yplo6403/rcsjta-sub005/internal/models"
	"github.com/yplo6403/rcsjta-sub005/internal/provider"
	"github.com/yplo6403/rcsjta-sub005/internal/scheduler"
)

// EventTypeOperationCompleted is the type of scheduler completion events.
// Message events use the provider event names.
const EventTypeOperationCompleted = "operation_completed"

// Event is the JSON pushed to clients when a scheduled operation ends.
type Event struct {
	Type      string `json:"type"`
	Operation string `json:"operation"`
	Param     string `json:"param,omitempty"`
	Result    bool   `json:"result"`
}

// MessageEvent is the JSON pushed to clients when a local message changes.
type MessageEvent struct {
	Type         string `json:"type"`
	MessageID    string `json:"message_id"`
	MessageType  string `json:"message_type"`
	Conversation string `json:"conversation"`
}

// Notifier relays scheduler completions to the hub and serves the upgrade endpoint.
type Notifier struct {
	hub      *Hub
	upgrader websocket.Upgrader
	log      logrus.FieldLogger
}

var (
	_ scheduler.Listener = (*Notifier)(nil)
	_ provider.EventSink = (*Notifier)(nil)
)

func NewNotifier(hub *Hub, log logrus.FieldLogger) *Notifier {
	return &Notifier{
		hub: hub,
		upgrader: websocket.Upgrader{
			// The API is served on the device to local UI clients.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		log: log.WithField("component", "websocket"),
	}
}

// OperationCompleted broadcasts the outcome of op.
func (n *Notifier) OperationCompleted(op scheduler.Operation, success bool) {
	n.broadcast(Event{
		Type:      EventTypeOperationCompleted,
		Operation: op.Type.String(),
		Param:     op.Param,
		Result:    success,
	})
}

// MessageChanged broadcasts a local message event.
func (n *Notifier) MessageChanged(event string, msg *models.LocalMessage) {
	n.broadcast(MessageEvent{
		Type:         event,
		MessageID:    msg.ID,
		MessageType:  string(msg.Type),
		Conversation: msg.Conversation,
	})
}

func (n *Notifier) broadcast(v any) {
	msg, err := json.Marshal(v)
	if err != nil {
		n.log.WithError(err).Error("Failed to encode event")
		return
	}
	n.hub.Broadcast(msg)
}

// ServeHTTP upgrades the request and keeps the connection registered until
// the client goes away.
func (n *Notifier) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := n.upgrader.Upgrade(w, r, nil)
	if err != nil {
		n.log.WithError(err).Warn("Failed to upgrade connection")
		return
	}

	client := n.hub.Register(conn)
	if client == nil {
		return
	}
	n.log.WithField("remote", r.RemoteAddr).Debug("Client connected")

	go n.readLoop(client)
}

// readLoop discards client messages and unregisters the client on disconnect.
func (n *Notifier) readLoop(client *Client) {
	conn := client.Conn()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	n.hub.Unregister(client)
}
