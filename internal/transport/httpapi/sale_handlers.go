package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vladislavdragonenkov/bookstore-backoffice/internal/domain"
	"github.com/vladislavdragonenkov/bookstore-backoffice/internal/service/sales"
)

// createSaleItemRequest — позиция запроса на создание продажи.
type createSaleItemRequest struct {
	BookID        string `json:"book_id" binding:"required"`
	Qty           int32  `json:"quantity" binding:"required,gt=0"`
	DiscountMinor int64  `json:"discount_minor" binding:"gte=0"`
}

type createSaleRequest struct {
	Items         []createSaleItemRequest `json:"items" binding:"required,min=1,dive"`
	DiscountMinor int64                   `json:"discount_minor" binding:"gte=0"`
	SellerID      string                  `json:"seller_id" binding:"required"`
}

type updateSaleStatusRequest struct {
	Status        string `json:"status" binding:"required"`
	PaymentMethod string `json:"payment_method"`
}

// saleItemResponse — позиция продажи в HTTP-ответе.
type saleItemResponse struct {
	ID             string `json:"id"`
	BookID         string `json:"book_id"`
	Qty            int32  `json:"quantity"`
	UnitPriceMinor int64  `json:"unit_price_minor"`
	DiscountMinor  int64  `json:"discount_minor"`
	SubtotalMinor  int64  `json:"subtotal_minor"`
}

type saleResponse struct {
	ID            string             `json:"id"`
	SellerID      string             `json:"seller_id"`
	Status        string             `json:"status"`
	Items         []saleItemResponse `json:"items"`
	SubtotalMinor int64              `json:"subtotal_minor"`
	DiscountMinor int64              `json:"discount_minor"`
	TaxMinor      int64              `json:"tax_minor"`
	TotalMinor    int64              `json:"total_minor"`
	PaymentMethod string             `json:"payment_method,omitempty"`
	Version       int64              `json:"version"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
	CompletedAt   *time.Time         `json:"completed_at,omitempty"`
	CancelledAt   *time.Time         `json:"cancelled_at,omitempty"`
}

func (h *Handler) createSale(c *gin.Context) {
	var req createSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	input := sales.CreateSaleInput{
		SellerID:      req.SellerID,
		DiscountMinor: req.DiscountMinor,
		Items:         make([]sales.CreateSaleItemInput, 0, len(req.Items)),
	}
	for _, item := range req.Items {
		input.Items = append(input.Items, sales.CreateSaleItemInput{
			BookID:        item.BookID,
			Qty:           item.Qty,
			DiscountMinor: item.DiscountMinor,
		})
	}

	sale, err := h.sales.CreateSale(input)
	if err != nil {
		h.writeDomainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toSaleResponse(sale))
}

func (h *Handler) updateSaleStatus(c *gin.Context) {
	var req updateSaleStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	sale, err := h.sales.UpdateStatus(c.Param("id"), domain.SaleStatus(req.Status), req.PaymentMethod)
	if err != nil {
		h.writeDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, toSaleResponse(sale))
}

func (h *Handler) getSale(c *gin.Context) {
	sale, err := h.sales.GetSale(c.Param("id"))
	if err != nil {
		h.writeDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, toSaleResponse(sale))
}

func toSaleResponse(sale domain.Sale) saleResponse {
	items := make([]saleItemResponse, 0, len(sale.Items))
	for _, item := range sale.Items {
		items = append(items, saleItemResponse{
			ID:             item.ID,
			BookID:         item.BookID,
			Qty:            item.Qty,
			UnitPriceMinor: item.UnitPriceMinor,
			DiscountMinor:  item.DiscountMinor,
			SubtotalMinor:  item.SubtotalMinor,
		})
	}
	return saleResponse{
		ID:            sale.ID,
		SellerID:      sale.SellerID,
		Status:        string(sale.Status),
		Items:         items,
		SubtotalMinor: sale.SubtotalMinor,
		DiscountMinor: sale.DiscountMinor,
		TaxMinor:      sale.TaxMinor,
		TotalMinor:    sale.TotalMinor,
		PaymentMethod: sale.PaymentMethod,
		Version:       sale.Version,
		CreatedAt:     sale.CreatedAt,
		UpdatedAt:     sale.UpdatedAt,
		CompletedAt:   sale.CompletedAt,
		CancelledAt:   sale.CancelledAt,
	}
}

type errorResponse struct {
	Error  string              `json:"error"`
	Fields []domain.FieldError `json:"fields,omitempty"`
}

func writeError(c *gin.Context, status int, message string) {
	c.JSON(status, errorResponse{Error: message})
}

// writeDomainError переводит доменные ошибки в HTTP-статусы:
// валидация — 400, отсутствие сущности — 404, конфликт жизненного
// цикла или версии — 409, всё остальное — 500 без деталей.
func (h *Handler) writeDomainError(c *gin.Context, err error) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, errorResponse{Error: "validation failed", Fields: ve.Fields})
	case errors.Is(err, domain.ErrSaleNotFound),
		errors.Is(err, domain.ErrProductNotFound),
		errors.Is(err, domain.ErrInventoryNotFound),
		errors.Is(err, domain.ErrAnalyticsNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrSaleAlreadyFinal),
		errors.Is(err, domain.ErrInvalidStatusTransition),
		errors.Is(err, domain.ErrSaleVersionConflict):
		writeError(c, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrPaymentMethodRequired):
		writeError(c, http.StatusBadRequest, err.Error())
	default:
		h.logger.WithError(err).Error("internal error")
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}
