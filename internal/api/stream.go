package api

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Event types sent over the evaluation stream.
const (
	EventStarted    = "started"
	EventProgress   = "progress"
	EventEvaluation = "evaluation"
	EventComplete   = "complete"
	EventError      = "error"
)

// EvaluationEvent is one websocket payload of a batch AI evaluation.
type EvaluationEvent struct {
	Type          string    `json:"type"`
	JobID         string    `json:"job_id"`
	DecisionID    string    `json:"decision_id"`
	Total         int       `json:"total,omitempty"`
	Processed     int       `json:"processed,omitempty"`
	Failed        int       `json:"failed,omitempty"`
	AlternativeID string    `json:"alternative_id,omitempty"`
	Alternative   string    `json:"alternative,omitempty"`
	Message       string    `json:"message,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// EvaluationNotifier fans evaluation events out to websocket clients and
// remembers the latest status for late joiners.
type EvaluationNotifier struct {
	mu         sync.Mutex
	clients    map[*wsClient]struct{}
	lastStatus *EvaluationEvent
	now        func() time.Time
}

func NewEvaluationNotifier() *EvaluationNotifier {
	return &EvaluationNotifier{
		clients: make(map[*wsClient]struct{}),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Register attaches a connection and replays the last status to it.
func (n *EvaluationNotifier) Register(conn *websocket.Conn) *wsClient {
	client := &wsClient{conn: conn}
	n.mu.Lock()
	n.clients[client] = struct{}{}
	status := n.lastStatus
	n.mu.Unlock()

	if status != nil {
		_ = client.writeJSON(*status)
	}
	return client
}

// Unregister detaches the client and closes its socket.
func (n *EvaluationNotifier) Unregister(client *wsClient) {
	if client == nil {
		return
	}
	n.mu.Lock()
	delete(n.clients, client)
	n.mu.Unlock()
	_ = client.conn.Close()
}

// Broadcast stamps the event and writes it to every client, dropping the ones
// that fail.
func (n *EvaluationNotifier) Broadcast(event EvaluationEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	event.Timestamp = n.now()
	snapshot := event
	n.lastStatus = &snapshot

	for client := range n.clients {
		if err := client.writeJSON(event); err != nil {
			delete(n.clients, client)
			_ = client.conn.Close()
		}
	}
}

// LastStatus returns a copy of the most recent event, or nil.
func (n *EvaluationNotifier) LastStatus() *EvaluationEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.lastStatus == nil {
		return nil
	}
	cp := *n.lastStatus
	return &cp
}

// Clients reports the number of connected websocket clients.
func (n *EvaluationNotifier) Clients() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.clients)
}

func (c *wsClient) writeJSON(payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteJSON(payload)
}
