package middleware

import (
	"github.com/gin-gonic/gin"
)

// abortWithDetail stops the chain with the JSON error body used across the API
func abortWithDetail(c *gin.Context, status int, detail string) {
	c.AbortWithStatusJSON(status, gin.H{
		"status_code": status,
		"detail":      detail,
	})
}
