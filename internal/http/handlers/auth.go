package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/loanrecovery/backend/internal/auth"
	"github.com/loanrecovery/backend/internal/db"
	"github.com/loanrecovery/backend/internal/http/middleware"
)

type AuthService interface {
	Register(ctx context.Context, in auth.RegisterInput, userAgent, ipAddress string) (*auth.AuthTokens, error)
	Login(ctx context.Context, email, password, userAgent, ipAddress string) (*auth.AuthTokens, error)
	Logout(ctx context.Context, sessionID string) error
	Me(ctx context.Context, userID string) (*db.User, error)
}

type AuthHandler struct {
	authService AuthService
	cookieCfg   auth.CookieConfig
	accessTTL   time.Duration
}

func NewAuthHandler(authService AuthService, cookieCfg auth.CookieConfig, accessTTL time.Duration) *AuthHandler {
	return &AuthHandler{authService: authService, cookieCfg: cookieCfg, accessTTL: accessTTL}
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func userBody(u *db.User) gin.H {
	body := gin.H{
		"id":    u.ID,
		"name":  u.Name,
		"email": u.Email,
		"role":  u.Role,
	}
	if u.AgentCode != nil {
		body["agent_code"] = *u.AgentCode
	}
	return body
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	tokens, err := h.authService.Register(c.Request.Context(), auth.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	}, c.GetHeader("User-Agent"), auth.ClientIP(c.Request))
	if err != nil {
		writeError(c, err)
		return
	}

	auth.SetAccessCookie(c.Writer, h.cookieCfg, tokens.AccessToken, h.accessTTL)
	c.JSON(http.StatusCreated, gin.H{"token": tokens.AccessToken, "user": userBody(tokens.User)})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	tokens, err := h.authService.Login(c.Request.Context(), req.Email, req.Password, c.GetHeader("User-Agent"), auth.ClientIP(c.Request))
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_credentials"})
			return
		}
		writeError(c, err)
		return
	}

	auth.SetAccessCookie(c.Writer, h.cookieCfg, tokens.AccessToken, h.accessTTL)
	c.JSON(http.StatusOK, gin.H{"token": tokens.AccessToken, "user": userBody(tokens.User)})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	if sid := c.GetString(middleware.ContextSessionID); sid != "" {
		_ = h.authService.Logout(c.Request.Context(), sid)
	}
	auth.ClearAccessCookie(c.Writer, h.cookieCfg)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *AuthHandler) Me(c *gin.Context) {
	uid := c.GetString(middleware.ContextUserID)
	if uid == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	user, err := h.authService.Me(c.Request.Context(), uid)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": userBody(user)})
}
