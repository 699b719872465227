package utils

import (
	"net"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/playfield/marketplace-backend/internal/models"
)

// GetRealIP returns the client address, preferring the first public address
// in X-Real-IP or X-Forwarded-For over gin's ClientIP.
func GetRealIP(c *gin.Context) string {
	if realIP := strings.TrimSpace(c.GetHeader("X-Real-IP")); isPublicIP(realIP) {
		return realIP
	}

	if forwarded := c.GetHeader("X-Forwarded-For"); forwarded != "" {
		for _, part := range strings.Split(forwarded, ",") {
			if ip := strings.TrimSpace(part); isPublicIP(ip) {
				return ip
			}
		}
	}

	return c.ClientIP()
}

// RequestMetaFromContext collects the client details recorded on payment audits
func RequestMetaFromContext(c *gin.Context) models.RequestMeta {
	return models.RequestMeta{
		IPAddress: GetRealIP(c),
		UserAgent: c.Request.UserAgent(),
	}
}

func isPublicIP(s string) bool {
	ip := net.ParseIP(s)
	if ip == nil {
		return false
	}
	return !ip.IsPrivate() && !ip.IsLoopback() && !ip.IsLinkLocalUnicast() && !ip.IsUnspecified()
}
