package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// LimitConcurrentRequests caps in-flight requests at maxConcurrent.
// Requests over the cap are rejected with 429 and a Retry-After hint.
// A non-positive cap disables the limit.
//
//	router.Use(LimitConcurrentRequests(256))
func LimitConcurrentRequests(maxConcurrent int) gin.HandlerFunc {
	if maxConcurrent <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	semaphore := make(chan struct{}, maxConcurrent)

	return func(c *gin.Context) {
		select {
		case semaphore <- struct{}{}:
			defer func() { <-semaphore }()
			c.Next()
		default:
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"kind":    "too_many_requests",
				"message": "too many concurrent requests",
			})
		}
	}
}
