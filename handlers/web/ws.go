// handlers/web/ws.go
package web

import (
	"context"
	"time"

	"github.com/gofiber/websocket/v2"

	"flaremail/push"
	"flaremail/store"
	"flaremail/utils"
)

const wsWriteTimeout = 5 * time.Second

// WSHandler keeps one websocket per open mailbox page. While a connection
// is up it polls both partitions at the configured cadence and forwards
// change events from the hub, so the page learns about new mail without
// asking.
type WSHandler struct {
	hub      *push.Hub
	interval time.Duration
}

// NewWSHandler creates a new websocket handler.
func NewWSHandler(hub *push.Hub, interval time.Duration) *WSHandler {
	return &WSHandler{hub: hub, interval: interval}
}

// HandleMailbox runs the connection loop. Pollers and the hub
// subscription live exactly as long as the socket.
func (h *WSHandler) HandleMailbox(c *websocket.Conn) {
	defer c.Close()

	email, _ := c.Locals("email").(string)
	app, _ := c.Locals("app").(*store.App)
	if email == "" || app == nil {
		return
	}
	m := app.Mail()
	if m == nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, unsubscribe := h.hub.Subscribe(email)
	defer unsubscribe()

	inboxPoller := store.NewPoller(h.interval, m.FetchInbox)
	sentPoller := store.NewPoller(h.interval, m.FetchSent)
	inboxPoller.Start(ctx)
	sentPoller.Start(ctx)
	defer inboxPoller.Stop()
	defer sentPoller.Stop()

	// Read pump. The client never sends data; this only notices the close.
	go func() {
		defer cancel()
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-events:
			if !ok {
				return
			}
			c.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := c.WriteMessage(websocket.TextMessage, payload); err != nil {
				utils.Log.Debug("Websocket write failed for %s: %v", email, err)
				return
			}
		}
	}
}
