package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/UmeshKumar0143/Utour-devbhoomi/internal/ledger"
)

// identityLedger is the part of *ledger.Ledger exposed over HTTP.
type identityLedger interface {
	Lookup(ctx context.Context, address string) (ledger.Fields, bool)
	ClearAll(ctx context.Context) error
	Stats() ledger.Stats
	Count() int
}

// LedgerHandler exposes ledger statistics and administrative operations.
type LedgerHandler struct {
	ledger      identityLedger
	adminSecret string
	logger      *zap.Logger
}

// NewLedgerHandler creates a new LedgerHandler. Admin routes accept requests
// carrying adminSecret in the X-Admin-Secret header.
func NewLedgerHandler(l identityLedger, adminSecret string, logger *zap.Logger) *LedgerHandler {
	return &LedgerHandler{ledger: l, adminSecret: adminSecret, logger: logger}
}

// Register mounts the ledger routes on the given router group.
func (h *LedgerHandler) Register(rg *gin.RouterGroup) {
	l := rg.Group("/ledger")
	{
		l.GET("/stats", h.Stats)

		admin := l.Group("", RequireAdminSecret(h.adminSecret))
		admin.GET("/entries/:address", h.GetEntry)
		admin.DELETE("", h.Clear)
	}
}

// Stats handles GET /ledger/stats.
func (h *LedgerHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.ledger.Stats())
}

// GetEntry handles GET /ledger/entries/:address and returns the stored fields.
func (h *LedgerHandler) GetEntry(c *gin.Context) {
	addr := c.Param("address")
	fields, ok := h.ledger.Lookup(c.Request.Context(), addr)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "address not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"address": addr, "userData": fields})
}

// Clear handles DELETE /ledger, wiping every anchored identity.
func (h *LedgerHandler) Clear(c *gin.Context) {
	before := h.ledger.Count()
	if err := h.ledger.ClearAll(c.Request.Context()); err != nil {
		h.logger.Error("ledger ClearAll", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to clear ledger"})
		return
	}
	h.logger.Warn("ledger cleared via admin API", zap.Int("removed", before), zap.String("client_ip", c.ClientIP()))
	c.JSON(http.StatusOK, gin.H{"cleared": before})
}
