package middleware

import (
	"net/http"
	"strings"

	"github.com/edirooss/ptz-server/internal/device"
	"github.com/gin-gonic/gin"
)

const DeviceIdentityKey = "device_identity"

// Identity headers. Query parameters device_url, username and password are
// accepted as a fallback for clients that cannot set headers.
const (
	HeaderDeviceAddress  = "X-Device-Address"
	HeaderDeviceUsername = "X-Device-Username"
	HeaderDevicePassword = "X-Device-Password"
)

// DeviceIdentity extracts the addressed device from the request.
// Aborts with 400 when no device address is present.
func DeviceIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := device.Identity{
			Address:  firstNonEmpty(c.GetHeader(HeaderDeviceAddress), c.Query("device_url")),
			Username: firstNonEmpty(c.GetHeader(HeaderDeviceUsername), c.Query("username")),
			Password: firstNonEmpty(c.GetHeader(HeaderDevicePassword), c.Query("password")),
		}
		if strings.TrimSpace(id.Address) == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"kind":    "invalid_argument",
				"message": "device address required (" + HeaderDeviceAddress + " header or device_url query)",
			})
			return
		}

		c.Set(DeviceIdentityKey, id)
		c.Next()
	}
}

// GetDeviceIdentity returns the identity stored by DeviceIdentity.
func GetDeviceIdentity(c *gin.Context) (device.Identity, bool) {
	v, ok := c.Get(DeviceIdentityKey)
	if !ok {
		return device.Identity{}, false
	}
	id, ok := v.(device.Identity)
	return id, ok
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
