package phantombuster

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"unicode/utf8"
)

var (
	// ErrMissingAPIKey is returned when no API key was supplied and none is configured.
	ErrMissingAPIKey = errors.New("phantombuster: API key is required")
	// ErrMissingID is returned when a required agent or container id is blank.
	ErrMissingID = errors.New("phantombuster: id is required")
)

// RemoteError is a non-2xx response from the remote API.
type RemoteError struct {
	Op         string
	StatusCode int
	Message    string
	Body       []byte
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: remote status %d: %s", e.Op, e.StatusCode, e.Message)
}

// TransportError covers network failures, timeouts and unusable 2xx bodies.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Timeout reports whether the failure was caused by a deadline or client timeout.
func (e *TransportError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}

// IsRemote reports whether err carries a remote status code.
func IsRemote(err error) (*RemoteError, bool) {
	var remote *RemoteError
	if errors.As(err, &remote) {
		return remote, true
	}
	return nil, false
}

const maxMessageBytes = 512

// remoteMessage extracts the remote-supplied error text from a failed response body.
func remoteMessage(status int, body []byte) string {
	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err == nil {
		for _, key := range []string{"error", "message", "detail"} {
			if v, ok := decoded[key].(string); ok && strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v)
			}
		}
	}

	snippet := strings.TrimSpace(string(body))
	if len(snippet) > maxMessageBytes {
		cut := maxMessageBytes
		for cut > 0 && !utf8.RuneStart(snippet[cut]) {
			cut--
		}
		snippet = snippet[:cut] + "..."
	}
	if snippet != "" {
		return snippet
	}
	if text := http.StatusText(status); text != "" {
		return text
	}
	return "unknown error"
}
