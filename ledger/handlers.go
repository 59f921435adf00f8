package ledger

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
)

// Handler exposes ledger stats as admin JSON endpoints.
type Handler struct {
	store *Store
}

// NewHandler creates a Handler backed by the given store.
func NewHandler(store *Store) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes mounts the ledger API under /admin/ledger/api/ behind the
// caller-supplied auth middleware.
func (h *Handler) RegisterRoutes(e *echo.Echo, authMiddleware echo.MiddlewareFunc) {
	g := e.Group("/admin/ledger/api", authMiddleware)
	g.GET("/stats", h.handleStats)
	g.GET("/users/:id/transactions", h.handleUserTransactions)
}

// handleStats returns aggregate revenue for the last N days (default 30).
func (h *Handler) handleStats(c echo.Context) error {
	days := 30
	if v := c.QueryParam("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 365 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "days must be 1-365"})
		}
		days = n
	}

	to := time.Now().UTC()
	from := to.AddDate(0, 0, -days)
	stats, err := h.store.GetStats(from, to)
	if err != nil {
		c.Logger().Errorf("ledger stats: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "stats unavailable"})
	}
	return c.JSON(http.StatusOK, stats)
}

func (h *Handler) handleUserTransactions(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid user id"})
	}
	txs, err := h.store.ListUserTransactions(id, 100)
	if err != nil {
		c.Logger().Errorf("ledger user transactions: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "transactions unavailable"})
	}
	if txs == nil {
		txs = []Transaction{}
	}
	return c.JSON(http.StatusOK, txs)
}
