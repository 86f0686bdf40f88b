package api

import (
	"net/http"
	"strings"

	"github.com/Adda-Baaj/phantombuster-relay/internal/domain"
	"github.com/Adda-Baaj/phantombuster-relay/pkg/phantombuster"
	"github.com/gin-gonic/gin"
)

func (s *Server) handleListAgents(c *gin.Context) {
	s.relay(c, "list agents", func() (phantombuster.Payload, error) {
		return s.backend.ListAgents(c.Request.Context())
	})
}

func (s *Server) handleAgentStatus(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	s.relay(c, "get agent status", func() (phantombuster.Payload, error) {
		return s.backend.AgentStatus(c.Request.Context(), id)
	})
}

func (s *Server) handleAgentOutput(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	mode := domain.OutputMode(c.DefaultQuery("mode", string(domain.OutputMostRecent))).OrDefault()
	s.relay(c, "get agent output", func() (phantombuster.Payload, error) {
		return s.backend.AgentOutput(c.Request.Context(), id, mode)
	})
}

func (s *Server) handleLaunchAgent(c *gin.Context) {
	var req domain.LaunchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeDetail(c, http.StatusUnprocessableEntity, "invalid launch request: "+err.Error())
		return
	}
	id := strings.TrimSpace(req.AgentID)
	if id == "" {
		writeDetail(c, http.StatusUnprocessableEntity, "agent_id is required")
		return
	}
	s.relay(c, "launch agent", func() (phantombuster.Payload, error) {
		return s.backend.LaunchAgent(c.Request.Context(), id, req.Argument)
	})
}

func (s *Server) handleListContainers(c *gin.Context) {
	s.relay(c, "list containers", func() (phantombuster.Payload, error) {
		return s.backend.ListContainers(c.Request.Context())
	})
}

func (s *Server) handleContainerData(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	s.relay(c, "get container data", func() (phantombuster.Payload, error) {
		return s.backend.ContainerData(c.Request.Context(), id)
	})
}

func (s *Server) handleAgentResults(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	s.relay(c, "get agent result object", func() (phantombuster.Payload, error) {
		return s.backend.AgentResultObject(c.Request.Context(), id)
	})
}

// relay runs one backend call and writes either its payload or the mapped failure.
func (s *Server) relay(c *gin.Context, op string, call func() (phantombuster.Payload, error)) {
	payload, err := call()
	if err != nil {
		status, detail := errorResponse(err)
		s.log.WarnObj("relay call failed", "relay_error", map[string]any{
			"op":         op,
			"status":     status,
			"error":      err.Error(),
			"request_id": c.GetString(requestIDKey),
		})
		writeDetail(c, status, detail)
		return
	}
	c.PureJSON(http.StatusOK, payload)
}

func pathID(c *gin.Context) (string, bool) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		writeDetail(c, http.StatusUnprocessableEntity, "id is required")
		return "", false
	}
	return id, true
}
