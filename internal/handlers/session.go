package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"marketsim/internal/services"
)

type SessionHandler struct {
	service *services.SessionService
}

func NewSessionHandler(service *services.SessionService) *SessionHandler {
	return &SessionHandler{service: service}
}

type CreateSessionRequest struct {
	UserID          string `json:"user_id" binding:"required"`
	Label           string `json:"label"`
	DurationSeconds int    `json:"duration_seconds"`
}

type SetExitConditionsRequest struct {
	StopLoss   *float64 `json:"stop_loss"`
	TakeProfit *float64 `json:"take_profit"`
}

// POST /api/v1/sessions
func (sh *SessionHandler) CreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := sh.service.StartSession(c.Request.Context(), req.UserID, req.Label, req.DurationSeconds)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"session": session,
		"state":   session.State(),
	})
}

// GET /api/v1/sessions?user_id=...
func (sh *SessionHandler) ListSessions(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id query parameter is required"})
		return
	}

	sessions, err := sh.service.ListUserSessions(userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

// GET /api/v1/users/:userId/sessions
func (sh *SessionHandler) ListUserSessions(c *gin.Context) {
	sessions, err := sh.service.ListUserSessions(c.Param("userId"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

// GET /api/v1/sessions/:id
func (sh *SessionHandler) GetSession(c *gin.Context) {
	session, err := sh.service.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session": session,
		"state":   session.State(),
	})
}

// POST /api/v1/sessions/:id/activate
func (sh *SessionHandler) ActivateSession(c *gin.Context) {
	session, err := sh.service.ActivateSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session": session,
		"state":   session.State(),
	})
}

// POST /api/v1/sessions/:id/end
func (sh *SessionHandler) EndSession(c *gin.Context) {
	session, err := sh.service.EndSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session": session,
		"state":   session.State(),
	})
}

// POST /api/v1/sessions/:id/orders
func (sh *SessionHandler) PlaceOrder(c *gin.Context) {
	var req services.TradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := sh.service.PlaceOrder(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		// A rejected order is still persisted for the audit trail.
		if order != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "order": order})
			return
		}
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"order": order})
}

// GET /api/v1/sessions/:id/orders
func (sh *SessionHandler) ListOrders(c *gin.Context) {
	orders, err := sh.service.ListOrders(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

// DELETE /api/v1/sessions/:id/orders/:orderId
func (sh *SessionHandler) CancelOrder(c *gin.Context) {
	orderID, err := strconv.ParseUint(c.Param("orderId"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}

	order, err := sh.service.CancelOrder(c.Request.Context(), c.Param("id"), uint(orderID))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"order": order})
}

// PUT /api/v1/sessions/:id/positions/:symbol/exits
func (sh *SessionHandler) SetExitConditions(c *gin.Context) {
	var req SetExitConditionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	position, err := sh.service.SetExitConditions(
		c.Request.Context(), c.Param("id"), c.Param("symbol"), req.StopLoss, req.TakeProfit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"position": position})
}

// GET /api/v1/sessions/:id/portfolio
func (sh *SessionHandler) GetPortfolio(c *gin.Context) {
	snapshot, err := sh.service.GetPortfolio(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, snapshot)
}

// RegisterSessionRoutes registers all session lifecycle and trading routes.
func RegisterSessionRoutes(router *gin.RouterGroup, handler *SessionHandler) {
	sessions := router.Group("/sessions")
	{
		sessions.POST("", handler.CreateSession)
		sessions.GET("", handler.ListSessions)
		sessions.GET("/:id", handler.GetSession)
		sessions.GET("/:id/status", handler.GetSession)
		sessions.POST("/:id/activate", handler.ActivateSession)
		sessions.POST("/:id/end", handler.EndSession)
		sessions.POST("/:id/orders", handler.PlaceOrder)
		sessions.GET("/:id/orders", handler.ListOrders)
		sessions.DELETE("/:id/orders/:orderId", handler.CancelOrder)
		sessions.PUT("/:id/positions/:symbol/exits", handler.SetExitConditions)
		sessions.GET("/:id/portfolio", handler.GetPortfolio)
	}

	router.GET("/users/:userId/sessions", handler.ListUserSessions)
}
