package middleware

import "github.com/gin-gonic/gin"

// abortJSON stops the chain with the same error envelope the handlers
// package writes.
func abortJSON(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"request_id": RequestIDFrom(c),
		"code":       code,
		"message":    msg,
	})
}
