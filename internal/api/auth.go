package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const tokenTTL = 24 * time.Hour

// dashboardClaims are the JWT claims issued to the dashboard session.
type dashboardClaims struct {
	jwt.RegisteredClaims
}

func hashPassword(password string) ([]byte, error) {
	if password == "" {
		// No password configured: auth stays disabled and login rejects.
		return nil, nil
	}
	return bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
}

func (s *Server) login(c *gin.Context) {
	var body struct {
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "password required"})
		return
	}

	if len(s.passwordHash) == 0 {
		c.JSON(http.StatusForbidden, gin.H{"error": "dashboard login disabled"})
		return
	}
	if err := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(body.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid password"})
		return
	}

	claims := dashboardClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "dashboard",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token generation failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": signed, "expiresIn": int(tokenTTL.Seconds())})
}

// authRequired guards API routes. When no dashboard password is configured
// the API is open (local dry-run convenience).
func (s *Server) authRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(s.passwordHash) == 0 {
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		tokenStr, found := strings.CutPrefix(header, "Bearer ")
		if !found || tokenStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}

		token, err := jwt.ParseWithClaims(tokenStr, &dashboardClaims{}, func(*jwt.Token) (any, error) {
			return []byte(s.jwtSecret), nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Next()
	}
}
