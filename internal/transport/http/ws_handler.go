package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"quizcat-service/internal/app"
	"quizcat-service/internal/domain"
	"quizcat-service/internal/logger"
)

// WSHandler drives a quiz session over a websocket. Every transition,
// including timer-driven ones, is pushed to the client as a "state" message.
type WSHandler struct {
	service  *app.QuizService
	upgrader websocket.Upgrader
	log      *logger.Logger
}

func NewWSHandler(service *app.QuizService, log *logger.Logger) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log: logger.OrNop(log).With("component", "ws"),
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type selectPayload struct {
	Choice int `json:"choice"`
}

type confidencePayload struct {
	Level domain.ConfidenceLevel `json:"level"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func errorMessage(err error) outboundMessage {
	_, code := statusFor(err)
	return outboundMessage{Type: "error", Payload: errorPayload{Message: err.Error(), Code: code}}
}

// ServeWS resumes the session named by ?sessionId, or starts one from the
// filter query parameters. A session started here is abandoned when the socket closes.
func (h *WSHandler) ServeWS(c *gin.Context) {
	id, err := identity(c)
	if err != nil {
		respondError(c, err)
		return
	}
	ctx := c.Request.Context()

	sessionID := c.Query("sessionId")
	owned := false
	if sessionID == "" {
		filter, err := filterFromQuery(c)
		if err != nil {
			respondError(c, err)
			return
		}
		opts := app.StartOptions{Practice: c.Query("practice") == "true"}
		view, err := h.service.Start(ctx, id.UID, filter, opts)
		if err != nil {
			respondError(c, err)
			return
		}
		sessionID = view.SessionID
		owned = true
	}

	updates, cancel, err := h.service.Subscribe(ctx, id.UID, sessionID)
	if err != nil {
		respondError(c, err)
		return
	}
	defer cancel()
	if owned {
		defer h.service.Abandon(context.WithoutCancel(ctx), id.UID, sessionID)
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	send := make(chan outboundMessage, 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// a single writer goroutine owns conn writes
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Debug("ws write error", "session_id", sessionID, "error", err)
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		resultSent := false
		for {
			select {
			case view, ok := <-updates:
				if !ok {
					return
				}
				msgs := []outboundMessage{{Type: "state", Payload: view}}
				if view.Finished && !resultSent {
					if res, err := h.service.Result(ctx, id.UID, sessionID); err == nil {
						msgs = append(msgs, outboundMessage{Type: "finished", Payload: res})
						resultSent = true
					}
				}
				for _, msg := range msgs {
					select {
					case send <- msg:
					case <-closeSignals:
						return
					}
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
		if reply, ok := h.handle(ctx, id.UID, sessionID, inbound); ok {
			select {
			case send <- reply:
			case <-writerDone:
			}
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

// handle applies one client message. State changes reach the client through
// the subscription, so only submissions and failures produce a direct reply.
func (h *WSHandler) handle(ctx context.Context, userID, sessionID string, in inboundMessage) (outboundMessage, bool) {
	var err error
	switch in.Type {
	case "select":
		var p selectPayload
		if err := json.Unmarshal(in.Payload, &p); err != nil {
			return outboundMessage{Type: "error", Payload: errorPayload{Message: "invalid select payload", Code: "invalid_request"}}, true
		}
		_, err = h.service.Select(ctx, userID, sessionID, p.Choice)
	case "confidence":
		var p confidencePayload
		if err := json.Unmarshal(in.Payload, &p); err != nil {
			return outboundMessage{Type: "error", Payload: errorPayload{Message: "invalid confidence payload", Code: "invalid_request"}}, true
		}
		_, err = h.service.SetConfidence(ctx, userID, sessionID, p.Level)
	case "submit":
		res, err := h.service.Submit(ctx, userID, sessionID)
		if err != nil {
			return errorMessage(err), true
		}
		return outboundMessage{Type: "answerResult", Payload: res}, true
	case "skip":
		_, err = h.service.Skip(ctx, userID, sessionID)
	case "next":
		_, err = h.service.Advance(ctx, userID, sessionID)
	default:
		return outboundMessage{Type: "error", Payload: errorPayload{Message: "unsupported message type", Code: "invalid_request"}}, true
	}
	if err != nil {
		return errorMessage(err), true
	}
	return outboundMessage{}, false
}
