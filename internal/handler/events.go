package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/GoStakeVault/stakegate/internal/pkg/apperrors"
	"github.com/GoStakeVault/stakegate/internal/pkg/logger"
	"github.com/GoStakeVault/stakegate/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type EventHandler struct {
	svc      *service.EventService
	upgrader websocket.Upgrader
}

func NewEventHandler(svc *service.EventService) *EventHandler {
	return &EventHandler{
		svc: svc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Admin-key gated; browser origins are not a concern here.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// List serves GET /v1/admin/events with optional account, limit, from and to
// filters.
func (h *EventHandler) List(c *gin.Context) {
	account := c.Query("account")

	limit := 100
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}
	var fromPtr *time.Time
	var toPtr *time.Time
	if raw := c.Query("from"); raw != "" {
		if t, err := parseTime(raw); err == nil {
			fromPtr = &t
		} else {
			c.Error(apperrors.NewInvalidRequest(err.Error()))
			return
		}
	}
	if raw := c.Query("to"); raw != "" {
		if t, err := parseTime(raw); err == nil {
			toPtr = &t
		} else {
			c.Error(apperrors.NewInvalidRequest(err.Error()))
			return
		}
	}

	records, err := h.svc.List(c.Request.Context(), account, limit, fromPtr, toPtr)
	if err != nil {
		c.Error(apperrors.New(apperrors.ErrInternal, err.Error(), err))
		return
	}
	c.JSON(http.StatusOK, records)
}

// Stream serves GET /v1/admin/events/stream: upgrades to a websocket and
// forwards live ledger events until the client disconnects.
func (h *EventHandler) Stream(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		c.Error(apperrors.NewInvalidRequest("websocket upgrade failed"))
		return
	}
	defer conn.Close()

	id, events := h.svc.Subscribe()
	defer h.svc.Unsubscribe(id)

	// Drain reads so close frames are processed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-done:
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				logger.Debug("event stream write failed", "error", err)
				return
			}
		}
	}
}

func parseTime(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if unix, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("invalid time format")
}
