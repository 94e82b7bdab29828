package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pquerna/otp/totp"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"bridge-relay/internal/config"
)

// APIClaims is the token payload for every caller of the API. Address is
// the chain address the engine authorizes against; Role is "admin" for
// operator tokens and informational otherwise.
type APIClaims struct {
	Address string `json:"address"`
	Role    string `json:"role"`
	jwt.RegisteredClaims
}

// GenerateAPIToken mints an HS256 token binding an address to API calls.
func GenerateAPIToken(address, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := APIClaims{
		Address: address,
		Role:    role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   address,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    "bridge-relay",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(config.AppConfig.Admin.JWTSecret))
}

// ValidateAPIToken parses and verifies a bearer token.
func ValidateAPIToken(tokenString string) (*APIClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &APIClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(config.AppConfig.Admin.JWTSecret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*APIClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Address == "" {
		return nil, errors.New("token missing address claim")
	}
	return claims, nil
}

// AuthHandler serves the operator login flow.
type AuthHandler struct {
	logger *logrus.Logger
}

func NewAuthHandler(logger *logrus.Logger) *AuthHandler {
	return &AuthHandler{logger: logger}
}

type adminLoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	TOTPCode string `json:"totp_code"`
}

// AdminLogin exchanges username/password (+ TOTP when configured) for an
// admin token bound to the configured admin address.
func (h *AuthHandler) AdminLogin(c *gin.Context) {
	var req adminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid request body",
			"code":    "INVALID_REQUEST",
		})
		return
	}

	adminCfg := config.AppConfig.Admin
	if req.Username != adminCfg.Username ||
		bcrypt.CompareHashAndPassword([]byte(adminCfg.PasswordHash), []byte(req.Password)) != nil {
		h.logger.WithField("username", req.Username).Warn("Admin login failed - bad credentials")
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error":   "Invalid credentials",
			"code":    "INVALID_CREDENTIALS",
		})
		return
	}

	if adminCfg.TOTPSecret != "" && !totp.Validate(req.TOTPCode, adminCfg.TOTPSecret) {
		h.logger.WithField("username", req.Username).Warn("Admin login failed - bad TOTP code")
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error":   "Invalid TOTP code",
			"code":    "INVALID_TOTP",
		})
		return
	}

	ttl := time.Duration(adminCfg.TokenTTLHours) * time.Hour
	token, err := GenerateAPIToken(config.AppConfig.Bridge.AdminAddress, "admin", ttl)
	if err != nil {
		h.logger.WithError(err).Error("Failed to sign admin token")
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to generate token",
			"code":    "TOKEN_GENERATION_FAILED",
		})
		return
	}

	h.logger.WithField("username", req.Username).Info("Admin login succeeded")
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"token":      token,
		"expires_in": int64(ttl / time.Second),
	})
}

type issueTokenRequest struct {
	Address string `json:"address" binding:"required"`
	Role    string `json:"role"`
	Hours   int    `json:"hours"`
}

// IssueToken mints a caller token for a validator, relayer or user address.
// Admin-guarded; the engine still checks the address's engine-side roles.
func (h *AuthHandler) IssueToken(c *gin.Context) {
	var req issueTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid request body",
			"code":    "INVALID_REQUEST",
		})
		return
	}
	if req.Role == "admin" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Admin tokens are minted by the login flow only",
			"code":    "INVALID_ROLE",
		})
		return
	}

	addr, err := parseAddressParam(req.Address)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid address",
			"code":    "INVALID_ADDRESS",
		})
		return
	}

	hours := req.Hours
	if hours <= 0 || hours > 24*30 {
		hours = int(config.AppConfig.Admin.TokenTTLHours)
	}
	role := req.Role
	if role == "" {
		role = "caller"
	}

	token, err := GenerateAPIToken(addr.Hex(), role, time.Duration(hours)*time.Hour)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to generate token",
			"code":    "TOKEN_GENERATION_FAILED",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"token":      token,
		"address":    addr.Hex(),
		"role":       role,
		"expires_in": hours * 3600,
	})
}
