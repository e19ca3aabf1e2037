package http

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
	"github.com/gorilla/websocket"
)

// WSHandler is the persistent socket endpoint. One receive loop runs per
// connection; every session-mutating call it makes goes through the live
// service, which in turn confines mutation to the room store.
type WSHandler struct {
	service    *app.LiveService
	registry   *Registry
	dispatcher *Dispatcher
	upgrader   websocket.Upgrader
}

func NewWSHandler(service *app.LiveService, registry *Registry, dispatcher *Dispatcher) *WSHandler {
	return &WSHandler{
		service:    service,
		registry:   registry,
		dispatcher: dispatcher,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundEvent struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type userConnectedPayload struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

type quizRefPayload struct {
	QuizID string `json:"quizId"`
	UserID string `json:"userId"`
}

// ServeWS upgrades the request and runs the receive loop until the socket
// closes or errors. Registry cleanup is guaranteed on any exit path.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}

	conn := h.registry.Register(ws)
	defer func() {
		h.registry.Unregister(conn.ID)
		ws.Close()
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("ws read on %s: %v", conn.ID, err)
			}
			return
		}
		h.handleFrame(conn, data)
	}
}

// handleFrame dispatches one inbound frame. Malformed payloads and handler
// panics are contained here so a single bad message never kills the loop.
func (h *WSHandler) handleFrame(conn *Connection, data []byte) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("ws message on %s panicked: %v", conn.ID, r)
		}
	}()

	var event inboundEvent
	if err := json.Unmarshal(data, &event); err != nil {
		h.sendError(conn, "invalid message envelope")
		return
	}

	switch {
	case strings.EqualFold(event.Type, domain.EventUserConnected):
		var payload userConnectedPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil || payload.UserID == "" {
			h.sendError(conn, "invalid user connected payload")
			return
		}
		h.registry.Bind(conn.ID, payload.UserID, payload.Username)

	case strings.EqualFold(event.Type, domain.EventLiveQuizCreated):
		// Relay to every open connection, payload passed through untouched.
		h.dispatcher.BroadcastAll(domain.Event{Type: domain.EventLiveQuizCreated, Payload: event.Payload})

	case strings.EqualFold(event.Type, domain.EventUserJoined):
		payload, userID, ok := h.decodeQuizRef(conn, event.Payload)
		if !ok {
			return
		}
		if _, err := h.service.JoinSession(context.Background(), payload.QuizID, userID); err != nil {
			h.sendError(conn, err.Error())
		}

	case strings.EqualFold(event.Type, domain.EventUserLeft):
		payload, userID, ok := h.decodeQuizRef(conn, event.Payload)
		if !ok {
			return
		}
		if payload.UserID != "" {
			userID = payload.UserID
		}
		if _, err := h.service.LeaveSession(payload.QuizID, userID); err != nil {
			h.sendError(conn, err.Error())
		}

	case strings.EqualFold(event.Type, domain.EventQuizCancelled):
		payload, userID, ok := h.decodeQuizRef(conn, event.Payload)
		if !ok {
			return
		}
		if err := h.service.CancelSession(payload.QuizID, userID); err != nil {
			h.sendError(conn, err.Error())
		}

	default:
		h.sendError(conn, "unsupported message type")
	}
}

// decodeQuizRef parses a {quizId[, userId]} payload and resolves the sender's
// bound identity.
func (h *WSHandler) decodeQuizRef(conn *Connection, raw json.RawMessage) (quizRefPayload, string, bool) {
	var payload quizRefPayload
	if err := json.Unmarshal(raw, &payload); err != nil || payload.QuizID == "" {
		h.sendError(conn, "invalid quiz payload")
		return payload, "", false
	}
	userID, _, bound := conn.BoundUser()
	if !bound {
		h.sendError(conn, "connection is not bound to a user")
		return payload, "", false
	}
	return payload, userID, true
}

func (h *WSHandler) sendError(conn *Connection, message string) {
	data, err := json.Marshal(domain.Event{Type: domain.EventError, Payload: domain.ErrorPayload{Message: message}})
	if err != nil {
		return
	}
	if !conn.enqueue(data) {
		log.Printf("error frame dropped for connection %s", conn.ID)
	}
}
