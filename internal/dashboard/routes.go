package dashboard

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/danmuck/wxdash/internal/client"
)

type refreshRequest struct {
	StationIDs []int `json:"stationIds"`
}

func (s *Server) registerRoutes(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"uptime":    time.Since(s.started).String(),
			"component": s.cfg.Name,
			"version":   Version,
		})
	})

	r.GET("/ready", func(c *gin.Context) {
		st := s.backend.Status()
		code := http.StatusOK
		ready := s.backend.Connected()
		if !ready {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"ready":      ready,
			"state":      st.State.String(),
			"endpoint":   st.Endpoint,
			"since":      st.Since,
			"last_error": st.LastError,
			"component":  s.cfg.Name,
			"version":    Version,
		})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/stations", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"stations": s.backend.Stations(),
			"readings": s.backend.Readings(),
		})
	})

	r.GET("/stations/:id", func(c *gin.Context) {
		id, ok := stationParam(c)
		if !ok {
			return
		}
		view, found := s.backend.Reading(id)
		if !found {
			c.JSON(http.StatusNotFound, gin.H{"error": "station not cached"})
			return
		}
		c.JSON(http.StatusOK, view)
	})

	r.DELETE("/stations/:id", func(c *gin.Context) {
		id, ok := stationParam(c)
		if !ok {
			return
		}
		removed := s.backend.DeleteStation(id)
		c.JSON(http.StatusOK, gin.H{"status": "ok", "stationId": id, "removed": removed})
	})

	r.POST("/stations/refresh", func(c *gin.Context) {
		var body refreshRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body: " + err.Error()})
			return
		}
		if body.StationIDs == nil {
			body.StationIDs = []int{}
		}
		if err := s.backend.RefreshSelected(c.Request.Context(), body.StationIDs); err != nil {
			respondSendError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"status": "sent", "stationIds": body.StationIDs})
	})

	r.POST("/stations/list", func(c *gin.Context) {
		if err := s.backend.RequestStationList(c.Request.Context()); err != nil {
			respondSendError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"status": "sent"})
	})

	r.GET("/events", s.streamEvents)
}

func stationParam(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "station id must be an integer"})
		return 0, false
	}
	return id, true
}

func respondSendError(c *gin.Context, err error) {
	if client.IsNotConnected(err) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
}
