package domain

import "strings"

// OutputMode selects which agent output the remote service returns.
type OutputMode string

const (
	OutputMostRecent OutputMode = "most-recent"
	OutputAll        OutputMode = "all"
)

// OrDefault returns the mode, or OutputMostRecent when blank. Other values pass through untouched.
func (m OutputMode) OrDefault() OutputMode {
	if strings.TrimSpace(string(m)) == "" {
		return OutputMostRecent
	}
	return m
}

// LaunchRequest is the local launch body.
type LaunchRequest struct {
	AgentID  string         `json:"agent_id" binding:"required"`
	Argument map[string]any `json:"argument,omitempty"`
}
