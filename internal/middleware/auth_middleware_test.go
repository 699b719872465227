package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/playfield/marketplace-backend/pkg/jwt"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestJWTService() *jwt.Service {
	return jwt.NewService("test-access-secret-key-123456789", time.Hour)
}

func setupTestRouter(jwtService *jwt.Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	router := gin.New()
	router.GET("/protected", AuthMiddleware(jwtService, logger), func(c *gin.Context) {
		userCtx, exists := GetUserContext(c)
		if !exists {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{"user_id": userCtx.UserID})
	})
	return router
}

func TestAuthMiddleware_Success(t *testing.T) {
	jwtService := setupTestJWTService()
	router := setupTestRouter(jwtService)
	userID := uuid.New()

	token, err := jwtService.GenerateAccessToken(userID, []string{"athlete"})
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), userID.String())
}

func TestAuthMiddleware_Failures(t *testing.T) {
	jwtService := setupTestJWTService()
	router := setupTestRouter(jwtService)

	expiredToken, err := jwt.NewService("test-access-secret-key-123456789", -time.Minute).
		GenerateAccessToken(uuid.New(), []string{"athlete"})
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		code   string
	}{
		{name: "Missing header", header: "", code: "MISSING_AUTH_HEADER"},
		{name: "Wrong scheme", header: "Basic abc", code: "INVALID_AUTH_FORMAT"},
		{name: "Empty token", header: "Bearer   ", code: "INVALID_AUTH_FORMAT"},
		{name: "Garbage token", header: "Bearer not-a-jwt", code: "INVALID_TOKEN"},
		{name: "Expired token", header: "Bearer " + expiredToken, code: "TOKEN_EXPIRED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/protected", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Body.String(), tt.code)
		})
	}
}

func TestGetUserContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	_, exists := GetUserContext(c)
	assert.False(t, exists)

	c.Set(UserContextKey, "not a user context")
	_, exists = GetUserContext(c)
	assert.False(t, exists)

	userID := uuid.New()
	c.Set(UserContextKey, UserContext{UserID: userID})
	userCtx, exists := GetUserContext(c)
	assert.True(t, exists)
	assert.Equal(t, userID, userCtx.UserID)
}
