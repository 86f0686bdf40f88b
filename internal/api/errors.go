package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Adda-Baaj/phantombuster-relay/pkg/phantombuster"
	"github.com/gin-gonic/gin"
)

// errorBody is the JSON shape of every failure response.
type errorBody struct {
	Detail string `json:"detail"`
}

// errorResponse maps a backend failure to a local status and detail message.
// Remote failures keep their status; everything else becomes a 500.
func errorResponse(err error) (int, string) {
	if remote, ok := phantombuster.IsRemote(err); ok {
		status := remote.StatusCode
		if status < 100 || status > 599 {
			status = http.StatusBadGateway
		}
		return status, fmt.Sprintf("PhantomBuster API error: %d %s", remote.StatusCode, remote.Message)
	}
	if errors.Is(err, phantombuster.ErrMissingID) {
		return http.StatusUnprocessableEntity, err.Error()
	}
	return http.StatusInternalServerError, err.Error()
}

func writeDetail(c *gin.Context, status int, detail string) {
	c.AbortWithStatusJSON(status, errorBody{Detail: detail})
}
