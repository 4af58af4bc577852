package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"bistro/auth/internal/middleware"
	"bistro/auth/internal/repository"
)

func (h HandlerSet) AdminSweep(c *gin.Context) {
	result, err := h.reaper.Sweep(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("manual sweep failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sweep_failed"})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h HandlerSet) AdminRevokeSessions(c *gin.Context) {
	accountID := c.Param("id")

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.cfg.Database.QueryTimeout)
	_, err := h.store.Accounts().GetByID(ctx, accountID)
	cancel()
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "account_not_found"})
			return
		}
		h.log.Error().Err(err).Str("account_id", accountID).Msg("load account failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_server_error"})
		return
	}

	n, err := h.reaper.InvalidateAllSessionsForAccount(c.Request.Context(), accountID)
	if err != nil {
		h.log.Error().Err(err).Str("account_id", accountID).Msg("revoke sessions failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_server_error"})
		return
	}

	actor, _ := middleware.CurrentIdentity(c)
	h.log.Info().
		Str("actor_id", actor.ID).
		Str("account_id", accountID).
		Int64("sessions_deleted", n).
		Msg("sessions revoked by admin")

	c.JSON(http.StatusOK, gin.H{"sessionsDeleted": n})
}
