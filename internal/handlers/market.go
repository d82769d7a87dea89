package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"marketsim/internal/engines/replay"
	"marketsim/internal/marketdata"
	"marketsim/internal/services"
)

type MarketHandler struct {
	service *services.SessionService
	store   marketdata.SeriesStore
	cache   *marketdata.SeriesCache
	indexer *replay.TickIndexer
}

func NewMarketHandler(service *services.SessionService, store marketdata.SeriesStore, cache *marketdata.SeriesCache, indexer *replay.TickIndexer) *MarketHandler {
	return &MarketHandler{service: service, store: store, cache: cache, indexer: indexer}
}

// GET /api/v1/market/symbols
func (mh *MarketHandler) ListSymbols(c *gin.Context) {
	symbols, err := mh.store.ListSymbols(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"symbols": symbols})
}

// GET /api/v1/market/intervals/:symbol
func (mh *MarketHandler) ListIntervals(c *gin.Context) {
	intervals, err := mh.store.ListIntervals(c.Request.Context(), c.Param("symbol"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"intervals": intervals})
}

// GET /api/v1/market/cache/stats
func (mh *MarketHandler) CacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, mh.cache.Stats())
}

// POST /api/v1/market/cache/invalidate/:symbol
func (mh *MarketHandler) InvalidateSymbol(c *gin.Context) {
	symbol := c.Param("symbol")
	mh.indexer.InvalidateSymbol(symbol)
	c.JSON(http.StatusOK, gin.H{"invalidated": symbol})
}

// DELETE /api/v1/market/cache
func (mh *MarketHandler) ClearCache(c *gin.Context) {
	mh.indexer.ClearCache()
	c.JSON(http.StatusOK, gin.H{"cleared": true})
}

// GET /api/v1/sessions/:id/quote/:symbol
func (mh *MarketHandler) GetQuote(c *gin.Context) {
	quote, err := mh.service.GetQuote(c.Request.Context(), c.Param("id"), c.Param("symbol"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, quote)
}

// GET /api/v1/sessions/:id/bar/:symbol
//
// The full OHLCV bar at the session's current tick.
func (mh *MarketHandler) GetCurrentBar(c *gin.Context) {
	bar, date, err := mh.service.GetCurrentBar(c.Request.Context(), c.Param("id"), c.Param("symbol"))
	if err != nil {
		respondError(c, err)
		return
	}
	if bar == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no bar at current tick"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"bar": bar, "date": date})
}

// GET /api/v1/sessions/:id/chart/:symbol
//
// Returns the bars revealed so far, never beyond the session's current
// tick.
func (mh *MarketHandler) GetChart(c *gin.Context) {
	bars, err := mh.service.GetChart(c.Request.Context(), c.Param("id"), c.Param("symbol"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"bars": bars})
}

// RegisterMarketRoutes registers market data and cache admin routes.
func RegisterMarketRoutes(router *gin.RouterGroup, handler *MarketHandler) {
	market := router.Group("/market")
	{
		market.GET("/symbols", handler.ListSymbols)
		market.GET("/intervals/:symbol", handler.ListIntervals)
		market.GET("/cache/stats", handler.CacheStats)
		market.POST("/cache/invalidate/:symbol", handler.InvalidateSymbol)
		market.DELETE("/cache", handler.ClearCache)
	}

	sessions := router.Group("/sessions")
	{
		sessions.GET("/:id/quote/:symbol", handler.GetQuote)
		sessions.GET("/:id/bar/:symbol", handler.GetCurrentBar)
		sessions.GET("/:id/chart/:symbol", handler.GetChart)
	}
}
