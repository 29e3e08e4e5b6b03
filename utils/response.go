package utils

import (
	"github.com/gin-gonic/gin"
)

// JSONResponse sends a structured JSON response
func JSONResponse(c *gin.Context, status int, data any, message string) {
	c.JSON(status, gin.H{
		"status":  status,
		"message": message,
		"data":    data,
	})
}

// JSONList sends a collection along with its size
func JSONList(c *gin.Context, status int, data any, count int, message string) {
	c.JSON(status, gin.H{
		"status":  status,
		"message": message,
		"count":   count,
		"data":    data,
	})
}

// JSONError sends a structured error response. The error text is logged by callers,
// clients only see message for 5xx statuses.
func JSONError(c *gin.Context, status int, err error, message string) {
	detail := message
	if status < 500 && err != nil {
		detail = err.Error()
	}
	c.JSON(status, gin.H{
		"status":  status,
		"message": message,
		"error":   detail,
	})
}
