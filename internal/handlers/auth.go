package handlers

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"bistro/auth/internal/middleware"
	"bistro/auth/internal/models"
	"bistro/auth/internal/service"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Account   models.Identity `json:"account"`
	ExpiresAt time.Time       `json:"expiresAt"`
}

func (h HandlerSet) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": service.MessageInvalidInput})
		return
	}

	result, err := h.authService.Authenticate(c.Request.Context(), service.LoginInput{
		Email:    req.Email,
		Password: req.Password,
		Client:   middleware.ClientInfo(c),
	})
	if err != nil {
		h.writeLoginError(c, err)
		return
	}

	middleware.SetSessionCookie(c, h.cfg.Security, result.Token, result.Session.ExpiresAt)
	c.JSON(http.StatusOK, loginResponse{
		Account:   result.Account,
		ExpiresAt: result.Session.ExpiresAt,
	})
}

func (h HandlerSet) writeLoginError(c *gin.Context, err error) {
	body := gin.H{"error": service.PublicMessage(err)}

	var limited *service.RateLimitedError
	switch {
	case errors.As(err, &limited):
		wait := math.Ceil(time.Until(limited.LockoutUntil).Seconds())
		if wait < 1 {
			wait = 1
		}
		c.Header("Retry-After", strconv.Itoa(int(wait)))
		c.JSON(http.StatusTooManyRequests, body)
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, body)
	case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, service.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, body)
	default:
		h.log.Error().Err(err).Msg("login failed")
		c.JSON(http.StatusInternalServerError, body)
	}
}

// Logout always succeeds; the cookie is cleared even if the store is down.
func (h HandlerSet) Logout(c *gin.Context) {
	token := middleware.SessionToken(c, h.cfg.Security.CookieName)
	h.authService.Logout(c.Request.Context(), token)

	middleware.ClearSessionCookie(c, h.cfg.Security)
	c.Status(http.StatusNoContent)
}

func (h HandlerSet) Me(c *gin.Context) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not_authenticated"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"account": identity})
}
