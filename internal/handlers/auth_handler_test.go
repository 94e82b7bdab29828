package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"bridge-relay/internal/config"
)

func setupAuthConfig(t *testing.T, password string) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	config.AppConfig = &config.Config{
		Bridge: config.BridgeConfig{
			AdminAddress: "0x000000000000000000000000000000000000Ad01",
		},
		Admin: config.AdminConfig{
			Username:      "ops",
			PasswordHash:  string(hash),
			JWTSecret:     "test-secret",
			TokenTTLHours: 1,
		},
	}
}

func TestAPITokenRoundTrip(t *testing.T) {
	require := require.New(t)
	setupAuthConfig(t, "hunter2")

	token, err := GenerateAPIToken("0x0000000000000000000000000000000000000001", "caller", time.Hour)
	require.NoError(err)

	claims, err := ValidateAPIToken(token)
	require.NoError(err)
	require.Equal("0x0000000000000000000000000000000000000001", claims.Address)
	require.Equal("caller", claims.Role)
}

func TestAPITokenExpired(t *testing.T) {
	require := require.New(t)
	setupAuthConfig(t, "hunter2")

	token, err := GenerateAPIToken("0x01", "caller", -time.Minute)
	require.NoError(err)
	_, err = ValidateAPIToken(token)
	require.Error(err)
}

func TestAPITokenTamperedSecret(t *testing.T) {
	require := require.New(t)
	setupAuthConfig(t, "hunter2")

	token, err := GenerateAPIToken("0x01", "caller", time.Hour)
	require.NoError(err)

	config.AppConfig.Admin.JWTSecret = "different-secret"
	_, err = ValidateAPIToken(token)
	require.Error(err)
}

func postLogin(t *testing.T, h *AuthHandler, body map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/auth/admin/login", bytes.NewReader(payload))
	c.Request.Header.Set("Content-Type", "application/json")

	h.AdminLogin(c)
	return w
}

func TestAdminLogin(t *testing.T) {
	require := require.New(t)
	setupAuthConfig(t, "hunter2")
	h := NewAuthHandler(logrus.New())

	w := postLogin(t, h, map[string]string{"username": "ops", "password": "hunter2"})
	require.Equal(http.StatusOK, w.Code)

	var resp struct {
		Success bool   `json:"success"`
		Token   string `json:"token"`
	}
	require.NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	require.True(resp.Success)

	claims, err := ValidateAPIToken(resp.Token)
	require.NoError(err)
	require.Equal("admin", claims.Role)
	require.Equal(config.AppConfig.Bridge.AdminAddress, claims.Address)
}

func TestAdminLoginRejectsBadPassword(t *testing.T) {
	require := require.New(t)
	setupAuthConfig(t, "hunter2")
	h := NewAuthHandler(logrus.New())

	w := postLogin(t, h, map[string]string{"username": "ops", "password": "wrong"})
	require.Equal(http.StatusUnauthorized, w.Code)
}

func TestAdminLoginRequiresTOTPWhenConfigured(t *testing.T) {
	require := require.New(t)
	setupAuthConfig(t, "hunter2")
	config.AppConfig.Admin.TOTPSecret = "JBSWY3DPEHPK3PXP"
	h := NewAuthHandler(logrus.New())

	w := postLogin(t, h, map[string]string{"username": "ops", "password": "hunter2"})
	require.Equal(http.StatusUnauthorized, w.Code)

	var resp struct {
		Code string `json:"code"`
	}
	require.NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal("INVALID_TOTP", resp.Code)
}
