package middleware

import (
	"net/http"
	"strings"
	"unicode"

	"github.com/gin-gonic/gin"
)

const maxTokenLen = 64

// RequireValidToken ensures the path param ":token" is a printable,
// whitespace free string of at most 64 bytes.
func RequireValidToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !validToken(c.Param("token")) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"kind":    "invalid_argument",
				"message": "invalid token",
			})
			return
		}
		c.Next()
	}
}

func validToken(s string) bool {
	if s == "" || len(s) > maxTokenLen {
		return false
	}
	return strings.IndexFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || !unicode.IsPrint(r)
	}) < 0
}
