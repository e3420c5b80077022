package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-attempt/internal/middleware"
	"github.com/stemsi/exstem-attempt/internal/model"
	"github.com/stemsi/exstem-attempt/internal/response"
	"github.com/stemsi/exstem-attempt/internal/validator"
	ws "github.com/stemsi/exstem-attempt/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins permits all origins (development mode).
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

// Autosaver stores attempt snapshots.
type Autosaver interface {
	Autosave(ctx context.Context, studentID string, req *model.AutosaveAttemptRequest) (string, error)
}

// WSHandler streams autosaves over a WebSocket.
type WSHandler struct {
	attemptService Autosaver
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(attemptService Autosaver, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		attemptService: attemptService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// AttemptStream godoc
// WS /ws/v1/attempts/stream?token=...
// Accepts autosave snapshots for any of the student's sessions.
func (h *WSHandler) AttemptStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(ws.MaxMessageSize)

	wsLog := h.log.With().Str("student_id", claims.UserID).Logger()
	wsLog.Info().Msg("Student connected")

	ctx := c.Request.Context()
	for {
		data, err := ws.ReadMessage(conn)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		action, err := ws.PeekAction(data)
		if err != nil {
			h.write(conn, wsLog, ws.ErrorResponse{
				Event: ws.EventError,
				Code:  string(response.ErrInvalidPayload),
				Error: response.GetMessage(response.ErrInvalidPayload),
			})
			continue
		}

		switch action {
		case ws.ActionAutosave:
			h.write(conn, wsLog, h.handleAutosave(ctx, wsLog, claims.UserID, data))
		case ws.ActionPing:
			h.write(conn, wsLog, ws.PongResponse{Event: ws.EventPong})
		default:
			wsLog.Warn().Str("action", string(action)).Msg("Unknown action")
			h.write(conn, wsLog, ws.ErrorResponse{
				Event: ws.EventError,
				Code:  string(response.ErrInvalidPayload),
				Error: "unknown action: " + string(action),
			})
		}
	}
}

// handleAutosave validates and stores one snapshot and returns the reply.
func (h *WSHandler) handleAutosave(ctx context.Context, wsLog zerolog.Logger, studentID string, data []byte) interface{} {
	var msg ws.AutosaveRequest
	if err := json.Unmarshal(data, &msg); err != nil {
		return ws.ErrorResponse{
			Event: ws.EventError,
			Code:  string(response.ErrInvalidPayload),
			Error: response.GetMessage(response.ErrInvalidPayload),
		}
	}

	req := model.AutosaveAttemptRequest{ExamID: msg.ExamID, Snapshot: msg.Snapshot}
	if err := binding.Validator.ValidateStruct(&req); err != nil {
		fields := validator.TranslateErrors(err)
		msgs := make([]string, 0, len(fields))
		for field, m := range fields {
			msgs = append(msgs, field+": "+m)
		}
		return ws.ErrorResponse{
			Event: ws.EventError,
			Code:  string(response.ErrValidation),
			Error: strings.Join(msgs, "; "),
		}
	}

	attemptID, err := h.attemptService.Autosave(ctx, studentID, &req)
	if err != nil {
		_, code := errorStatus(err)
		if code == response.ErrInternal {
			wsLog.Error().Err(err).Str("session_id", req.Snapshot.SessionID).Msg("Autosave failed")
		}
		return ws.ErrorResponse{
			Event: ws.EventError,
			Code:  string(code),
			Error: response.GetMessage(code),
		}
	}

	return ws.SavedResponse{
		Event:     ws.EventSaved,
		AttemptID: attemptID,
		SessionID: req.Snapshot.SessionID,
	}
}

func (h *WSHandler) write(conn *websocket.Conn, wsLog zerolog.Logger, v interface{}) {
	if err := ws.WriteTyped(conn, v); err != nil {
		wsLog.Debug().Err(err).Msg("Write failed")
	}
}
