package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	domainwf "github.com/garyjia/yacht-customization/internal/domain/workflow"
)

const actorHeader = "X-Actor-ID"
const actorKey = "actor_id"

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`

	// Fields lists the failing payload fields of a validation error
	Fields []string `json:"fields,omitempty"`

	// CurrentStatus is the live status of a request on a stale submission
	CurrentStatus string `json:"current_status,omitempty"`
}

// statusFor maps an error kind to its HTTP status
var statusFor = map[string]int{
	"not_found":          http.StatusNotFound,
	"authorization":      http.StatusForbidden,
	"validation":         http.StatusUnprocessableEntity,
	"stale_state":        http.StatusConflict,
	"terminal_state":     http.StatusConflict,
	"invalid_transition": http.StatusBadRequest,
	"persistence":        http.StatusInternalServerError,
	"internal":           http.StatusInternalServerError,
}

// writeError renders an engine error. Server-side failures hide their cause.
func writeError(c *gin.Context, err error) {
	kind := domainwf.Kind(err)
	status, ok := statusFor[kind]
	if !ok {
		status = http.StatusInternalServerError
	}

	resp := Response{Success: false, Error: err.Error(), Code: kind}
	if status == http.StatusInternalServerError {
		resp.Error = "internal error"
	}

	var validation *domainwf.ValidationError
	if errors.As(err, &validation) {
		resp.Fields = validation.Fields
	}
	var stale *domainwf.StaleStateError
	if errors.As(err, &stale) {
		resp.CurrentStatus = stale.Actual.String()
	}

	c.AbortWithStatusJSON(status, resp)
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, Response{
		Success: false,
		Error:   msg,
		Code:    "bad_request",
	})
}

// requireActor rejects commands without an acting user. Authentication
// happens upstream; the gateway forwards the user id in X-Actor-ID.
func requireActor() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := strings.TrimSpace(c.GetHeader(actorHeader))
		if actor == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
				Success: false,
				Error:   "missing " + actorHeader + " header",
				Code:    "unauthenticated",
			})
			return
		}
		c.Set(actorKey, actor)
		c.Next()
	}
}
