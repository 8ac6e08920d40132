package streaming

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const (
	// Interval between keepalive pings
	pingInterval = 30 * time.Second

	// Time allowed to read the next pong
	pongWait = 60 * time.Second

	// Time allowed to write a message
	writeTimeout = 10 * time.Second

	// Subscribers only send small control messages
	maxMessageSize = 4096
)

// Subscriber is one websocket connection receiving announcements
type Subscriber struct {
	id      string
	version string
	conn    *websocket.Conn
	hub     *Hub

	// send is owned by the hub and closed when it drops the subscriber
	send chan []byte
	// replies carries direct responses to control messages
	replies chan []byte
}

// ID returns the subscriber's UUID
func (s *Subscriber) ID() string { return s.id }

// Serve registers conn with the hub and pumps messages until the connection
// closes or the hub stops. It returns once the subscriber is registered.
func (h *Hub) Serve(conn *websocket.Conn, version string) (*Subscriber, error) {
	sub := &Subscriber{
		id:      newSubscriberID(),
		version: version,
		conn:    conn,
		hub:     h,
		send:    make(chan []byte, subscriberQueueSize),
		replies: make(chan []byte, subscriberQueueSize),
	}
	if err := h.add(sub); err != nil {
		if conn != nil {
			conn.Close()
		}
		return nil, err
	}

	go sub.writePump()
	go sub.readPump()
	return sub, nil
}

// readPump handles control messages from the subscriber
func (s *Subscriber) readPump() {
	defer func() {
		s.hub.remove(s)
		s.conn.Close()
	}()

	s.conn.SetReadLimit(maxMessageSize)
	if err := s.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		log.WithError(err).Warn("Failed to set read deadline")
		return
	}
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.WithError(err).WithField("subscriber", s.id).Warn("WebSocket read error")
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			s.sendError("", "Invalid message format", "InvalidMessageFormat")
			continue
		}
		switch msg.Type {
		case "ping":
			s.reply(Message{Type: MessagePong, ID: msg.ID})
		default:
			s.sendError(msg.ID, "Unknown message type", "UnknownMessageType")
		}
	}
}

// writePump delivers queued messages and keepalive pings
func (s *Subscriber) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case message, ok := <-s.send:
			if err := s.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				return
			}
			if !ok {
				// Hub dropped us.
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.WithError(err).WithField("subscriber", s.id).Debug("WebSocket write failed")
				return
			}

		case reply := <-s.replies:
			if err := s.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, reply); err != nil {
				return
			}

		case <-ticker.C:
			if err := s.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				return
			}
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// reply queues a direct response to the subscriber
func (s *Subscriber) reply(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.WithError(err).Error("Failed to marshal reply")
		return
	}
	select {
	case s.replies <- data:
	default:
		log.WithField("subscriber", s.id).Warn("Failed to send reply: channel full")
	}
}

func (s *Subscriber) sendError(id, message, code string) {
	s.reply(ErrorMessage{Type: MessageError, ID: id, Error: message, Code: code})
}
