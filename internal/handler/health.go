package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Ping is a liveness probe: it never touches the database, so it stays
// up even while Postgres is unreachable (that's what /healthz is for).
func Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "pong"})
}

// Root is an unauthenticated index for humans poking at the service.
func Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"message": "kube-rca agent is running",
	})
}
