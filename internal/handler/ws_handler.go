package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prepforge/session-backend/internal/middleware"
	"github.com/prepforge/session-backend/internal/service"
	ws "github.com/prepforge/session-backend/internal/websocket"
	"github.com/rs/zerolog"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams engine events (phase changes, merged questions, countdown
// ticks, completion) to the client and accepts answer/flag/submit actions on
// the same connection.
type WSHandler struct {
	sessionService *service.SessionService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessionService *service.SessionService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessionService: sessionService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// TestStream godoc
// WS /ws/v1/tests/stream
// Upgrades to WebSocket. Requires a live session (start via the REST API
// first). The connection closes when the client disconnects; the session
// itself keeps running server-side.
func (h *WSHandler) TestStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	userID := claims.UserID

	events, err := h.sessionService.Events(userID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no active test session"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().Int("user_id", userID).Logger()
	wsLog.Info().Msg("Test stream connected")

	// All writes go through one locked Writer: the pump goroutine and the
	// action loop below would otherwise write the connection concurrently.
	out := ws.NewWriter(conn)

	// Writer pump: engine events → client. Stopped by the read loop on
	// disconnect, or by a failed write.
	stop := make(chan struct{})
	go func() {
		for {
			select {
			case <-stop:
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				if err := out.WriteTyped(ws.EngineEvent{Event: string(ev.Type), Payload: ev}); err != nil {
					return
				}
			}
		}
	}()
	defer close(stop)

	for {
		var msg ws.RequestPayload
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			break
		}

		switch msg.Action {
		case ws.ActionAnswer:
			h.handleAnswer(out, userID, &msg)
		case ws.ActionFlag:
			h.handleFlag(out, userID, &msg)
		case ws.ActionSubmit:
			h.handleSubmit(out, wsLog, userID)
		case ws.ActionPing:
			out.WriteTyped(ws.PongResponse{Event: ws.EventPong})
		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			out.WriteError("unknown action: " + string(msg.Action))
		}
	}
}

func (h *WSHandler) handleAnswer(out *ws.Writer, userID int, msg *ws.RequestPayload) {
	if msg.QuestionID == "" || msg.OptionIndex == nil {
		out.WriteError("question_id and option_index are required")
		return
	}
	qid, err := uuid.Parse(msg.QuestionID)
	if err != nil {
		out.WriteError("invalid question_id format")
		return
	}

	if err := h.sessionService.Answer(context.Background(), userID, qid, *msg.OptionIndex); err != nil {
		out.WriteError(err.Error())
		return
	}

	out.WriteTyped(ws.AckResponse{Event: ws.EventAck, Action: ws.ActionAnswer, Status: "saved"})
}

func (h *WSHandler) handleFlag(out *ws.Writer, userID int, msg *ws.RequestPayload) {
	if msg.QuestionID == "" {
		out.WriteError("question_id is required")
		return
	}
	qid, err := uuid.Parse(msg.QuestionID)
	if err != nil {
		out.WriteError("invalid question_id format")
		return
	}

	flagged, err := h.sessionService.Flag(context.Background(), userID, qid)
	if err != nil {
		out.WriteError(err.Error())
		return
	}

	status := "unflagged"
	if flagged {
		status = "flagged"
	}
	out.WriteTyped(ws.AckResponse{Event: ws.EventAck, Action: ws.ActionFlag, Status: status})
}

func (h *WSHandler) handleSubmit(out *ws.Writer, wsLog zerolog.Logger, userID int) {
	if _, err := h.sessionService.Submit(context.Background(), userID); err != nil {
		wsLog.Error().Err(err).Msg("Submit over stream failed")
		out.WriteError(err.Error())
		return
	}

	// The graded result arrives on the event pump as a "completed" event.
	out.WriteTyped(ws.AckResponse{Event: ws.EventAck, Action: ws.ActionSubmit, Status: "submitted"})
}
