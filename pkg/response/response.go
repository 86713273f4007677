package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nybble-vibe/backend/internal/engagement"
)

// Body is the standard API response envelope.
type Body struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
}

// OK sends a 200 JSON response with data.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Body{Success: true, Data: data})
}

// Created sends a 201 JSON response with data.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Body{Success: true, Data: data})
}

// NoContent sends 204.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// BadRequest sends 400 with error message.
func BadRequest(c *gin.Context, err string) {
	c.JSON(http.StatusBadRequest, Body{Success: false, Error: err, Code: string(engagement.KindInvalidInput)})
}

// NotFound sends 404.
func NotFound(c *gin.Context, err string) {
	c.JSON(http.StatusNotFound, Body{Success: false, Error: err, Code: string(engagement.KindNotFound)})
}

// Forbidden sends 403.
func Forbidden(c *gin.Context, err string) {
	c.JSON(http.StatusForbidden, Body{Success: false, Error: err, Code: "forbidden"})
}

// ServiceUnavailable sends 503.
func ServiceUnavailable(c *gin.Context, err string) {
	c.JSON(http.StatusServiceUnavailable, Body{Success: false, Error: err})
}

// Internal sends 500.
func Internal(c *gin.Context, err string) {
	c.JSON(http.StatusInternalServerError, Body{Success: false, Error: err})
}

// StatusFor maps a domain error kind to its HTTP status.
func StatusFor(kind engagement.Kind) int {
	switch kind {
	case engagement.KindNotFound:
		return http.StatusNotFound
	case engagement.KindInvalidTransition, engagement.KindConflictOnWrite:
		return http.StatusConflict
	case engagement.KindPreconditionFailed:
		return http.StatusPreconditionFailed
	case engagement.KindInvalidInput:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Error writes err with the status of its domain kind. Errors without a kind are
// reported as 500 without leaking their message.
func Error(c *gin.Context, err error) {
	var de *engagement.Error
	if !errors.As(err, &de) {
		_ = c.Error(err)
		Internal(c, "internal server error")
		return
	}
	msg := de.Msg
	if msg == "" {
		msg = de.Error()
	}
	c.JSON(StatusFor(de.Kind), Body{Success: false, Error: msg, Code: string(de.Kind)})
}
