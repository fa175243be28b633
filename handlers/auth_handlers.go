// api/handlers/auth_handlers.go
package handlers

import (
	"crypto/subtle"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"logisticsassist/api/models"
	"logisticsassist/api/utils"
)

type AuthHandlers struct {
	Operator models.Operator
	Tokens   *utils.TokenIssuer
	Secure   bool
}

func NewAuthHandlers(op models.Operator, tokens *utils.TokenIssuer, secure bool) *AuthHandlers {
	return &AuthHandlers{Operator: op, Tokens: tokens, Secure: secure}
}

// Login checks the operator credentials and issues the jwt_token cookie.
func (h *AuthHandlers) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if h.Operator.Email == "" || len(h.Operator.HashedPassword) == 0 {
		log.Println("Login rejected: operator account is not configured")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Operator login is not configured"})
		return
	}

	emailOK := subtle.ConstantTimeCompare(
		[]byte(strings.ToLower(req.Email)),
		[]byte(strings.ToLower(h.Operator.Email)),
	) == 1
	if err := bcrypt.CompareHashAndPassword(h.Operator.HashedPassword, []byte(req.Password)); err != nil || !emailOK {
		log.Printf("Login failed for email %s", req.Email)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	tokenString, err := h.Tokens.GenerateJWT(h.Operator.Email)
	if err != nil {
		log.Printf("ERROR: Failed to generate JWT for operator %s: %v", h.Operator.Email, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate authentication token"})
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(
		"jwt_token",
		tokenString,
		int(24*time.Hour/time.Second),
		"/",
		"",
		h.Secure,
		true,
	)

	log.Printf("Operator logged in: %s. JWT issued.", h.Operator.Email)
	c.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"email":   h.Operator.Email,
	})
}

func (h *AuthHandlers) Logout(c *gin.Context) {
	c.SetCookie("jwt_token", "", -1, "/", "", h.Secure, true)

	log.Println("Operator logged out (JWT cookie cleared).")
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}
