package dashboard

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/danmuck/wxdash/internal/bus"
	logs "github.com/danmuck/wxdash/internal/logging"
)

// streamEvents relays bus events as server-sent events. The first event is a
// "snapshot" of the current stations and readings.
func (s *Server) streamEvents(c *gin.Context) {
	if s.bus == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event stream disabled"})
		return
	}
	sub := s.bus.Subscribe(bus.AllTopics...)
	defer func() {
		// pubsub requires draining until the channel closes
		go s.bus.Unsubscribe(sub)
		for range sub {
		}
	}()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	c.SSEvent("snapshot", gin.H{
		"stations": s.backend.Stations(),
		"readings": s.backend.Readings(),
		"state":    s.backend.Status().State.String(),
	})
	c.Writer.Flush()

	keepalive := time.NewTicker(s.keepalive)
	defer keepalive.Stop()
	ctx := c.Request.Context()
	logs.Debugf("dashboard.Server.streamEvents open client=%s", c.ClientIP())

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case msg, ok := <-sub:
			if !ok {
				return false
			}
			ev, ok := msg.(bus.Event)
			if !ok {
				return true
			}
			c.SSEvent(ev.Topic, ev.Payload)
			return true
		case <-keepalive.C:
			_, err := io.WriteString(w, ": keepalive\n\n")
			return err == nil
		}
	})
	logs.Debugf("dashboard.Server.streamEvents closed client=%s", c.ClientIP())
}
