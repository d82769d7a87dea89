package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"marketsim/internal/engines/replay"
	"marketsim/internal/engines/trading"
)

// respondError maps service errors to HTTP statuses: missing resources to
// 404, bad input and bad state to 400, unavailable series data to 503,
// anything unrecognized to 500.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, trading.ErrSessionNotFound),
		errors.Is(err, trading.ErrPositionNotFound),
		errors.Is(err, trading.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, trading.ErrSessionEnded),
		errors.Is(err, trading.ErrSessionInactive),
		errors.Is(err, trading.ErrInvalidOrder),
		errors.Is(err, trading.ErrInsufficientFunds),
		errors.Is(err, trading.ErrInsufficientShares),
		errors.Is(err, trading.ErrInvalidThreshold),
		errors.Is(err, trading.ErrOrderNotPending):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, replay.ErrNoSeries):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
