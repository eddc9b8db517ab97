package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/fjod/go_cart/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// CartEngine is the set of cart operations served over HTTP.
type CartEngine interface {
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
	AddItem(ctx context.Context, userID string, req domain.ItemRequest) error
	UpdateItem(ctx context.Context, userID string, req domain.ItemRequest) error
	RemoveItem(ctx context.Context, userID, lineID string) (*domain.Cart, error)
	ClearCart(ctx context.Context, userID string) (*domain.Cart, error)
}

type CartHandler struct {
	carts  CartEngine
	logger *slog.Logger
}

func NewCartHandler(carts CartEngine, logger *slog.Logger) *CartHandler {
	return &CartHandler{carts: carts, logger: logger}
}

type ItemRequestDTO struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	Size      string `json:"size"`
	Color     string `json:"color"`
}

type LineDTO struct {
	ID           string      `json:"id"`
	ProductID    string      `json:"productId"`
	Size         string      `json:"size"`
	Color        string      `json:"color"`
	Quantity     int         `json:"quantity"`
	UnitPrice    json.Number `json:"unitPrice"`
	LineTotal    json.Number `json:"lineTotal"`
	DisplayName  string      `json:"displayName"`
	DisplayImage string      `json:"displayImage"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}

type CartDTO struct {
	UserID        string      `json:"userId"`
	Lines         []LineDTO   `json:"lines"`
	TotalPrice    json.Number `json:"totalPrice"`
	TotalQuantity int         `json:"totalQuantity"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

type SummaryDTO struct {
	TotalItems    int         `json:"totalItems"`
	TotalQuantity int         `json:"totalQuantity"`
	TotalPrice    json.Number `json:"totalPrice"`
}

type AckResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type GetCartResponse struct {
	Success       bool        `json:"success"`
	Message       string      `json:"message,omitempty"`
	Lines         []LineDTO   `json:"lines"`
	TotalPrice    json.Number `json:"totalPrice"`
	TotalQuantity int         `json:"totalQuantity"`
}

type CartChangeResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Data    CartChangeData `json:"data"`
}

type CartChangeData struct {
	Cart    CartDTO    `json:"cart"`
	Summary SummaryDTO `json:"summary"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeItem(w, r)
	if !ok {
		return
	}
	if err := h.carts.AddItem(r.Context(), userIDFromContext(r.Context()), req); err != nil {
		h.handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, AckResponse{Success: true, Message: "Product added to cart"})
}

func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeItem(w, r)
	if !ok {
		return
	}
	if err := h.carts.UpdateItem(r.Context(), userIDFromContext(r.Context()), req); err != nil {
		h.handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, AckResponse{Success: true, Message: "Cart updated"})
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	cart, err := h.carts.GetCart(r.Context(), userIDFromContext(r.Context()))
	if err != nil {
		h.handleError(w, err)
		return
	}

	dto := toCartDTO(cart)
	resp := GetCartResponse{
		Success:       true,
		Lines:         dto.Lines,
		TotalPrice:    dto.TotalPrice,
		TotalQuantity: dto.TotalQuantity,
	}
	if !cart.Stored() {
		resp.Message = "Cart not found"
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	lineID := chi.URLParam(r, "lineId")
	cart, err := h.carts.RemoveItem(r.Context(), userIDFromContext(r.Context()), lineID)
	if err != nil {
		h.handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cartChange("Item removed from cart", cart))
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	cart, err := h.carts.ClearCart(r.Context(), userIDFromContext(r.Context()))
	if err != nil {
		h.handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cartChange("Cart cleared successfully", cart))
}

func (h *CartHandler) decodeItem(w http.ResponseWriter, r *http.Request) (domain.ItemRequest, bool) {
	var dto ItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "request_too_large", "request body too large")
			return domain.ItemRequest{}, false
		}
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return domain.ItemRequest{}, false
	}
	return domain.ItemRequest{
		ProductID: dto.ProductID,
		Quantity:  dto.Quantity,
		Size:      dto.Size,
		Color:     dto.Color,
	}, true
}

// handleError maps engine errors onto HTTP statuses by error class.
func (h *CartHandler) handleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		respondError(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrUnavailable):
		respondError(w, http.StatusBadRequest, "unavailable", err.Error())
	default:
		h.logger.Error("request failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func cartChange(message string, cart *domain.Cart) CartChangeResponse {
	summary := cart.Summary()
	return CartChangeResponse{
		Success: true,
		Message: message,
		Data: CartChangeData{
			Cart: toCartDTO(cart),
			Summary: SummaryDTO{
				TotalItems:    summary.TotalItems,
				TotalQuantity: summary.TotalQuantity,
				TotalPrice:    money(summary.TotalPrice),
			},
		},
	}
}

func toCartDTO(cart *domain.Cart) CartDTO {
	lines := make([]LineDTO, 0, len(cart.Lines))
	for _, l := range cart.Lines {
		lines = append(lines, LineDTO{
			ID:           l.ID,
			ProductID:    l.ProductID,
			Size:         l.Size,
			Color:        l.Color,
			Quantity:     l.Quantity,
			UnitPrice:    money(l.UnitPrice),
			LineTotal:    money(l.LineTotal),
			DisplayName:  l.DisplayName,
			DisplayImage: l.DisplayImage,
			CreatedAt:    l.CreatedAt,
			UpdatedAt:    l.UpdatedAt,
		})
	}
	return CartDTO{
		UserID:        cart.UserID,
		Lines:         lines,
		TotalPrice:    money(cart.TotalPrice),
		TotalQuantity: cart.TotalQuantity,
		UpdatedAt:     cart.UpdatedAt,
	}
}

// money renders an amount as a JSON number with two decimals.
func money(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Success: false,
		Message: message,
		Code:    code,
	})
}
