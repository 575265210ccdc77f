package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"solana-call-tracker/internal/domain"
)

const writeWait = 5 * time.Second

// StreamProgress handles GET /backfill/progress/ws. It pushes a snapshot
// immediately and then every push interval while the job is running. The
// final snapshot after the job leaves running is sent before the socket is
// closed.
func (h *Handler) StreamProgress(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Printf("[api] websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	// Drain client frames so close and ping control frames are handled.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.pushInterval)
	defer ticker.Stop()

	for {
		snap := h.ctrl.Progress()
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(toProgressResponse(snap)); err != nil {
			return
		}
		if snap.Status != domain.JobStatusRunning {
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(snap.Status)))
			return
		}

		select {
		case <-ticker.C:
		case <-closed:
			return
		case <-c.Request.Context().Done():
			return
		}
	}
}
