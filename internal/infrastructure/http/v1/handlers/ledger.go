package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"txchain/internal/domain/ledger"
	"txchain/internal/infrastructure/http/v1/dto"
)

// LedgerService is the part of ledger.Service the HTTP API needs.
type LedgerService interface {
	Open(ctx context.Context, owner string, initial decimal.Decimal) (*ledger.Account, error)
	Transfer(ctx context.Context, from, to string, amount decimal.Decimal) (*ledger.TransferResult, error)
	Balance(ctx context.Context, accountID string) (*ledger.Account, error)
	Entries(ctx context.Context, accountID string) ([]ledger.Entry, error)
}

// LedgerHandler serves accounts and transfers.
type LedgerHandler struct {
	*BaseHandler
	service LedgerService
}

func NewLedgerHandler(base *BaseHandler, service LedgerService) *LedgerHandler {
	return &LedgerHandler{BaseHandler: base, service: service}
}

// RegisterRoutes mounts the ledger endpoints on rg.
func (h *LedgerHandler) RegisterRoutes(rg *gin.RouterGroup) {
	accounts := rg.Group("/accounts")
	{
		accounts.POST("", h.OpenAccount)
		accounts.GET("/:id", h.GetAccount)
		accounts.GET("/:id/entries", h.ListEntries)
	}
	rg.POST("/transfers", h.Transfer)
}

// OpenAccount handles POST /accounts.
func (h *LedgerHandler) OpenAccount(c *gin.Context) {
	var req dto.OpenAccountRequest
	if !h.BindJSON(c, &req) {
		return
	}

	acc, err := h.service.Open(c.Request.Context(), req.Owner, req.Balance)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromAccount(acc))
}

// GetAccount handles GET /accounts/:id.
func (h *LedgerHandler) GetAccount(c *gin.Context) {
	acc, err := h.service.Balance(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromAccount(acc))
}

// ListEntries handles GET /accounts/:id/entries.
func (h *LedgerHandler) ListEntries(c *gin.Context) {
	entries, err := h.service.Entries(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(dto.FromEntries(entries)))
}

// Transfer handles POST /transfers.
func (h *LedgerHandler) Transfer(c *gin.Context) {
	var req dto.TransferRequest
	if !h.BindJSON(c, &req) {
		return
	}

	res, err := h.service.Transfer(c.Request.Context(), req.From, req.To, req.Amount)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromTransfer(res))
}
