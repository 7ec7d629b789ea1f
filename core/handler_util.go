package core

import "github.com/gin-gonic/gin"

// respondError writes the error envelope every handler shares:
// {"error": {"code": ..., "message": ...}}. Codes are stable identifiers
// clients can branch on; messages are free to change.
func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{"error": gin.H{"code": code, "message": message}})
}
