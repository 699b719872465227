package utils

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestParseUserAgent(t *testing.T) {
	tests := []struct {
		name       string
		userAgent  string
		deviceType string
		platform   string
	}{
		{
			name:       "Android Chrome",
			userAgent:  "Mozilla/5.0 (Linux; Android 13; Pixel 7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36",
			deviceType: "mobile",
			platform:   "android",
		},
		{
			name:       "iPhone Safari",
			userAgent:  "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
			deviceType: "mobile",
			platform:   "ios",
		},
		{
			name:       "Android app",
			userAgent:  "okhttp/4.12.0",
			deviceType: "mobile",
			platform:   "android",
		},
		{
			name:       "Desktop",
			userAgent:  "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			deviceType: "desktop",
			platform:   "windows",
		},
		{
			name:       "Empty",
			userAgent:  "",
			deviceType: "unknown",
			platform:   "unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := ParseUserAgent(tt.userAgent)
			assert.Equal(t, tt.deviceType, info.DeviceType)
			assert.Equal(t, tt.platform, info.Platform)
		})
	}
}

func TestGetRealIP(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("First public forwarded address", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest("POST", "/", nil)
		c.Request.Header.Set("X-Forwarded-For", "10.0.0.4, 203.0.113.7, 198.51.100.2")

		assert.Equal(t, "203.0.113.7", GetRealIP(c))
	})

	t.Run("Private X-Real-IP is ignored", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest("POST", "/", nil)
		c.Request.Header.Set("X-Real-IP", "192.168.1.10")
		c.Request.Header.Set("X-Forwarded-For", "198.51.100.2")

		assert.Equal(t, "198.51.100.2", GetRealIP(c))
	})

	t.Run("Falls back to remote address", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest("POST", "/", nil)
		c.Request.RemoteAddr = "127.0.0.1:5555"

		assert.Equal(t, "127.0.0.1", GetRealIP(c))
	})
}

func TestGenerateSecret(t *testing.T) {
	short, err := GenerateSecret(8)
	assert.NoError(t, err)
	assert.Len(t, short, MinSecretBytes*2)

	long, err := GenerateSecret(48)
	assert.NoError(t, err)
	assert.Len(t, long, 96)
	assert.Regexp(t, "^[0-9a-f]+$", long)

	other, err := GenerateSecret(48)
	assert.NoError(t, err)
	assert.NotEqual(t, long, other)
}
