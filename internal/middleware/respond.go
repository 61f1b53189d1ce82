package middleware

import (
	"github.com/gin-gonic/gin"

	"gulfquotes/internal/apperr"
)

// ErrorBody is the `error` member of the response envelope.
type ErrorBody struct {
	Code    apperr.Code `json:"code"`
	Message string      `json:"message"`
	Details any         `json:"details,omitempty"`
}

// Envelope is the shape of every API response.
type Envelope struct {
	Data  any        `json:"data,omitempty"`
	Error *ErrorBody `json:"error,omitempty"`
}

// AbortWithError writes the error envelope and stops the chain.
func AbortWithError(c *gin.Context, e *apperr.Error) {
	c.AbortWithStatusJSON(e.Status, Envelope{Error: &ErrorBody{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	}})
}
