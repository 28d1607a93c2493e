package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"incident-worker-go/internal/logging"
)

// EventServer serves a websocket connection until it closes.
type EventServer interface {
	Serve(conn *websocket.Conn)
}

type EventsHandler struct {
	events   EventServer
	upgrader websocket.Upgrader
}

func NewEventsHandler(events EventServer) *EventsHandler {
	return &EventsHandler{
		events: events,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Stream godoc
// @Summary Live events
// @Description Websocket stream of incident and camera status events as {"subject": ..., "data": ...}
// @Tags events
// @Router /ws/events [get]
func (h *EventsHandler) Stream(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Warn(c).Err(err).Msg("Websocket upgrade failed")
		return
	}
	h.events.Serve(conn)
}
