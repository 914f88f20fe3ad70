package http

import (
	"encoding/json"
	"log"
	"net/http"

	"quizhost-service/internal/app"
	"github.com/gorilla/websocket"
)

type WSHandler struct {
	service  *app.SessionService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.SessionService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type actionPayload struct {
	Action string `json:"action"`
}

type submitPayload struct {
	QuestionPosition int   `json:"questionPosition"`
	AnswerIDs        []int `json:"answerIds"`
}

type resultsPayload struct {
	QuestionPosition int `json:"questionPosition"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type startSessionRequest struct {
	OwnerID      string `json:"ownerId"`
	QuizID       string `json:"quizId"`
	AutoStartNum int    `json:"autoStartNum"`
}

// ServeStartSession creates a session from an authored quiz. The owner
// identity arrives pre-resolved; auth policy lives upstream.
func (h *WSHandler) ServeStartSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	status, err := h.service.Start(r.Context(), req.OwnerID, req.QuizID, req.AutoStartNum)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(status)
}

// ServeResultsRecords exposes the CSV-shaped results grid as JSON; rendering
// to an actual CSV file is owned by the export collaborator.
func (h *WSHandler) ServeResultsRecords(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		http.Error(w, "missing sessionId", http.StatusBadRequest)
		return
	}
	records, err := h.service.ResultsRecords(r.Context(), sessionID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(records)
}

// ServeWS upgrades the connection and wires it into the session engine. A
// role=player socket joins the session and may submit answers and read
// results; a role=owner socket drives lifecycle actions. Both receive status
// broadcasts, including timer-driven transitions.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	role := r.URL.Query().Get("role")
	if sessionID == "" || (role != "player" && role != "owner") {
		http.Error(w, "missing sessionId or role", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	playerID := ""
	if role == "player" {
		player, err := h.service.Join(r.Context(), sessionID, r.URL.Query().Get("name"))
		if err != nil {
			_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
			return
		}
		playerID = player.ID
		_ = conn.WriteJSON(outboundMessage[any]{Type: "joined", Payload: player})
	}

	updates, cancel, err := h.service.Subscribe(r.Context(), sessionID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "status", Payload: update}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		h.dispatch(r, sessionID, role, playerID, inbound, send)
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

func (h *WSHandler) dispatch(r *http.Request, sessionID, role, playerID string, inbound inboundMessage, send chan<- outboundMessage[any]) {
	fail := func(msg string) {
		send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: msg}}
	}

	switch inbound.Type {
	case "action":
		if role != "owner" {
			fail("only the owner may send actions")
			return
		}
		var payload actionPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			fail("invalid action payload")
			return
		}
		if err := h.service.Apply(r.Context(), sessionID, payload.Action); err != nil {
			fail(err.Error())
		}
	case "submit":
		if role != "player" {
			fail("only players may submit answers")
			return
		}
		var payload submitPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			fail("invalid submit payload")
			return
		}
		if err := h.service.Submit(r.Context(), playerID, payload.QuestionPosition, payload.AnswerIDs); err != nil {
			fail(err.Error())
			return
		}
		send <- outboundMessage[any]{Type: "submitted", Payload: payload}
	case "questionResults":
		if role != "player" {
			fail("question results are a player view")
			return
		}
		var payload resultsPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			fail("invalid results payload")
			return
		}
		result, err := h.service.QuestionResults(r.Context(), playerID, payload.QuestionPosition)
		if err != nil {
			fail(err.Error())
			return
		}
		send <- outboundMessage[any]{Type: "questionResults", Payload: result}
	case "finalResults":
		var (
			results any
			err     error
		)
		if role == "player" {
			results, err = h.service.FinalResults(r.Context(), playerID)
		} else {
			results, err = h.service.SessionResults(r.Context(), sessionID)
		}
		if err != nil {
			fail(err.Error())
			return
		}
		send <- outboundMessage[any]{Type: "finalResults", Payload: results}
	default:
		fail("unsupported message type")
	}
}
