package websocket

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"sync"
	"time"

	"facewatch/internal/logger"
	"facewatch/internal/model"

	"github.com/gorilla/websocket"
)

const writeWait = 5 * time.Second

// AllCameras subscribes a viewer to every camera.
const AllCameras = 0

type subscription struct {
	conn     *websocket.Conn
	cameraID int
}

type envelope struct {
	cameraID int
	payload  []byte
}

type frameMessage struct {
	Type   string `json:"type"`
	Camera int    `json:"camera"`
	Image  string `json:"image"`
}

type alertMessage struct {
	Type  string           `json:"type"`
	Alert model.AlertEvent `json:"alert"`
}

// HubService fans frames and alerts out to connected viewers. Only the Run
// goroutine writes to connections.
type HubService struct {
	clients    map[*websocket.Conn]int
	broadcast  chan envelope
	register   chan subscription
	unregister chan *websocket.Conn
	done       chan struct{}
	mutex      sync.RWMutex
	logger     *logger.Logger
	dropped    uint64
}

func NewHubService(log *logger.Logger) *HubService {
	return &HubService{
		clients:    make(map[*websocket.Conn]int),
		broadcast:  make(chan envelope, 64),
		register:   make(chan subscription),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		logger:     log,
	}
}

// Run serves registrations and broadcasts until ctx is done, then closes all clients.
func (h *HubService) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mutex.Lock()
			for client := range h.clients {
				client.Close()
				delete(h.clients, client)
			}
			h.mutex.Unlock()
			return

		case sub := <-h.register:
			h.mutex.Lock()
			h.clients[sub.conn] = sub.cameraID
			total := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("Viewer connected. Total: %d", total)

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
			}
			total := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("Viewer disconnected. Total: %d", total)

		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

func (h *HubService) deliver(msg envelope) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for client, cameraID := range h.clients {
		if cameraID != AllCameras && msg.cameraID != AllCameras && cameraID != msg.cameraID {
			continue
		}
		client.SetWriteDeadline(time.Now().Add(writeWait))
		if err := client.WriteMessage(websocket.TextMessage, msg.payload); err != nil {
			h.logger.Warning("Error sending to viewer, dropping it: %v", err)
			delete(h.clients, client)
			client.Close()
		}
	}
}

// Register subscribes conn to one camera, or to all with AllCameras.
func (h *HubService) Register(conn *websocket.Conn, cameraID int) {
	select {
	case h.register <- subscription{conn: conn, cameraID: cameraID}:
	case <-h.done:
		conn.Close()
	}
}

func (h *HubService) Unregister(conn *websocket.Conn) {
	select {
	case h.unregister <- conn:
	case <-h.done:
	}
}

// Broadcast queues a message for viewers of cameraID. It never blocks: when
// the queue is full the message is dropped.
func (h *HubService) Broadcast(message []byte, cameraID int) {
	select {
	case h.broadcast <- envelope{cameraID: cameraID, payload: message}:
	default:
		h.mutex.Lock()
		h.dropped++
		h.mutex.Unlock()
	}
}

// BroadcastFrame sends a JPEG frame as {"type":"frame","camera":id,"image":base64}.
func (h *HubService) BroadcastFrame(cameraID int, frame []byte) {
	if h.GetClientCount() == 0 {
		return
	}
	msg, err := json.Marshal(frameMessage{
		Type:   "frame",
		Camera: cameraID,
		Image:  base64.StdEncoding.EncodeToString(frame),
	})
	if err != nil {
		h.logger.Error("Failed to encode frame message: %v", err)
		return
	}
	h.Broadcast(msg, cameraID)
}

// BroadcastAlert sends an alert event to every viewer.
func (h *HubService) BroadcastAlert(event model.AlertEvent) {
	msg, err := json.Marshal(alertMessage{Type: "alert", Alert: event})
	if err != nil {
		h.logger.Error("Failed to encode alert message: %v", err)
		return
	}
	h.Broadcast(msg, AllCameras)
}

func (h *HubService) GetClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// Dropped is the number of messages discarded because the queue was full.
func (h *HubService) Dropped() uint64 {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.dropped
}
