package web

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"tripvault/mq/mq"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// streamEvents upgrades to a websocket and pushes every expense event of the
// trip until the client goes away.
func (h *Handler) streamEvents(c *gin.Context) {
	tripID, ok := uuidParam(c, "tripId")
	if !ok {
		return
	}
	if _, err := h.ledger.GetTrip(c.Request.Context(), callerID(c), tripID); err != nil {
		writeError(c, err)
		return
	}
	if h.events == nil {
		abortWithMessage(c, http.StatusServiceUnavailable, "events are not enabled")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader already replied
		slog.WarnContext(c.Request.Context(), "websocket upgrade failed", "trip", tripID, "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	out := make(chan eventResponse)
	var wg sync.WaitGroup
	for action := mq.Action(0); action < mq.ActionCnt; action++ {
		queue := h.events.GetExpenseMessageQueue(action)
		if queue == nil {
			continue
		}
		stream := make(chan eventResponse)
		mq.SubscribeProcessor(tripID, ctx, queue, expenseMQ2Event, stream)

		wg.Add(1)
		go func() {
			defer wg.Done()
			for ev := range stream {
				select {
				case out <- ev:
				case <-ctx.Done():
				}
			}
		}()
	}
	go func() {
		wg.Wait()
		close(out)
	}()

	// the read loop only exists to notice the client closing
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case ev, ok := <-out:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				slog.DebugContext(ctx, "websocket write failed", "trip", tripID, "error", err)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		}
	}
}
