package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// envelope matches the backend API's response shape.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data"`
	Message string `json:"message,omitempty"`
}

func ok(c *gin.Context, status int, data any) {
	c.JSON(status, envelope{Success: true, Data: data})
}

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, envelope{Success: false, Message: msg})
}

func badRequest(c *gin.Context, msg string) { fail(c, http.StatusBadRequest, msg) }
func notFound(c *gin.Context, msg string)   { fail(c, http.StatusNotFound, msg) }
func conflict(c *gin.Context, msg string)   { fail(c, http.StatusConflict, msg) }
func internal(c *gin.Context, msg string)   { fail(c, http.StatusInternalServerError, msg) }
