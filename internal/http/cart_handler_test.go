package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fjod/go_cart/internal/domain"
	"github.com/fjod/go_cart/internal/inventory"
	"github.com/fjod/go_cart/internal/repository"
	"github.com/fjod/go_cart/internal/service"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type engineMock struct {
	cart    *domain.Cart
	err     error
	lastReq domain.ItemRequest
	lastID  string
}

func (e *engineMock) GetCart(context.Context, string) (*domain.Cart, error) {
	return e.cart, e.err
}

func (e *engineMock) AddItem(_ context.Context, _ string, req domain.ItemRequest) error {
	e.lastReq = req
	return e.err
}

func (e *engineMock) UpdateItem(_ context.Context, _ string, req domain.ItemRequest) error {
	e.lastReq = req
	return e.err
}

func (e *engineMock) RemoveItem(_ context.Context, _ string, lineID string) (*domain.Cart, error) {
	e.lastID = lineID
	return e.cart, e.err
}

func (e *engineMock) ClearCart(context.Context, string) (*domain.Cart, error) {
	return e.cart, e.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRouter(engine CartEngine) http.Handler {
	return NewRouter(engine, RouterConfig{
		Auth:               AuthConfig{Secret: testSecret},
		RequestTimeout:     5 * time.Second,
		MaxRequestBodySize: 1 << 10,
	}, discardLogger())
}

type client struct {
	t      *testing.T
	router http.Handler
	token  string
}

func newClient(t *testing.T, router http.Handler, userID string) *client {
	return &client{t: t, router: router, token: signToken(t, testSecret, jwt.MapClaims{"id": userID})}
}

func (c *client) do(method, path string, body any) *httptest.ResponseRecorder {
	c.t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		payload, err := json.Marshal(b)
		require.NoError(c.t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func amount(t *testing.T, n json.Number) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(n.String())
	require.NoError(t, err)
	return d
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	testRouter(&engineMock{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestCartRoutesRequireAuth(t *testing.T) {
	router := testRouter(&engineMock{})
	routes := []struct{ method, path string }{
		{http.MethodPost, "/cart/add-to-cart"},
		{http.MethodGet, "/cart/get-cart"},
		{http.MethodPut, "/cart/update-cart"},
		{http.MethodDelete, "/cart/delete-cart/line-1"},
		{http.MethodDelete, "/cart/clear-cart"},
	}
	for _, rt := range routes {
		t.Run(rt.method+" "+rt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(rt.method, rt.path, nil))
			assert.Equal(t, http.StatusUnauthorized, rec.Code)

			resp := decodeBody[ErrorResponse](t, rec)
			assert.False(t, resp.Success)
			assert.Equal(t, "unauthorized", resp.Code)
		})
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantCode    string
		wantMessage string
	}{
		{
			name:        "validation",
			err:         &domain.ValidationError{Field: "size", Reason: "is required"},
			wantStatus:  http.StatusBadRequest,
			wantCode:    "validation_error",
			wantMessage: "size is required",
		},
		{
			name:        "product not found",
			err:         domain.ErrProductNotFound,
			wantStatus:  http.StatusNotFound,
			wantCode:    "not_found",
			wantMessage: "product not found",
		},
		{
			name:        "cart not found",
			err:         domain.ErrCartNotFound,
			wantStatus:  http.StatusNotFound,
			wantCode:    "not_found",
			wantMessage: "cart not found",
		},
		{
			name:        "unavailable",
			err:         domain.ErrProductUnavailable,
			wantStatus:  http.StatusBadRequest,
			wantCode:    "unavailable",
			wantMessage: "product is unavailable",
		},
		{
			name:        "insufficient stock",
			err:         &domain.StockError{ProductID: "p1", Requested: 9, Available: 2},
			wantStatus:  http.StatusBadRequest,
			wantCode:    "unavailable",
			wantMessage: "Only 2 items available in stock",
		},
		{
			name:        "internal",
			err:         errors.New("mongo: connection refused"),
			wantStatus:  http.StatusInternalServerError,
			wantCode:    "internal_error",
			wantMessage: "internal server error",
		},
		{
			name:        "concurrent update",
			err:         domain.ErrConcurrentUpdate,
			wantStatus:  http.StatusInternalServerError,
			wantCode:    "internal_error",
			wantMessage: "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newClient(t, testRouter(&engineMock{err: tt.err}), "user-1")

			rec := c.do(http.MethodPost, "/cart/add-to-cart", ItemRequestDTO{ProductID: "p1", Quantity: 1, Size: "M", Color: "Red"})

			assert.Equal(t, tt.wantStatus, rec.Code)
			resp := decodeBody[ErrorResponse](t, rec)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.wantCode, resp.Code)
			assert.Equal(t, tt.wantMessage, resp.Message)
		})
	}
}

func TestAddItem_DecodesBody(t *testing.T) {
	engine := &engineMock{}
	c := newClient(t, testRouter(engine), "user-1")

	rec := c.do(http.MethodPost, "/cart/add-to-cart", `{"productId":"p1","quantity":3,"size":"L","color":"Blue"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"message":"Product added to cart"}`, rec.Body.String())
	assert.Equal(t, domain.ItemRequest{ProductID: "p1", Quantity: 3, Size: "L", Color: "Blue"}, engine.lastReq)
}

func TestAddItem_InvalidBody(t *testing.T) {
	c := newClient(t, testRouter(&engineMock{}), "user-1")

	rec := c.do(http.MethodPost, "/cart/add-to-cart", `{"productId":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", decodeBody[ErrorResponse](t, rec).Code)

	rec = c.do(http.MethodPost, "/cart/add-to-cart", `{"productId":"p1","quantity":"two","size":"M","color":"Red"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAddItem_BodyTooLarge(t *testing.T) {
	c := newClient(t, testRouter(&engineMock{}), "user-1")

	body := `{"productId":"` + strings.Repeat("x", 2<<10) + `","quantity":1,"size":"M","color":"Red"}`
	rec := c.do(http.MethodPost, "/cart/add-to-cart", body)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestUpdateItem_Ack(t *testing.T) {
	engine := &engineMock{}
	c := newClient(t, testRouter(engine), "user-1")

	rec := c.do(http.MethodPut, "/cart/update-cart", ItemRequestDTO{ProductID: "p1", Quantity: 1, Size: "M", Color: "Red"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"message":"Cart updated"}`, rec.Body.String())
}

func TestRemoveItem_PassesLineID(t *testing.T) {
	engine := &engineMock{cart: domain.NewCart("user-1", time.Now())}
	c := newClient(t, testRouter(engine), "user-1")

	rec := c.do(http.MethodDelete, "/cart/delete-cart/line-42", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "line-42", engine.lastID)
}

// TestCartFlow runs the HTTP surface against the real engine and an
// in-memory store.
func TestCartFlow(t *testing.T) {
	catalog := inventory.NewMemoryCatalog(domain.Product{
		ID:       "p1",
		Name:     "Linen Shirt",
		Image:    "https://img.example/p1.jpg",
		Price:    decimal.NewFromInt(10),
		Stock:    5,
		IsActive: true,
	})
	engine := service.NewCartService(repository.NewMemoryRepository(), catalog, nil, service.WithLogger(discardLogger()))
	router := testRouter(engine)
	c := newClient(t, router, "user-1")

	// no cart yet
	rec := c.do(http.MethodGet, "/cart/get-cart", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	empty := decodeBody[GetCartResponse](t, rec)
	assert.True(t, empty.Success)
	assert.Equal(t, "Cart not found", empty.Message)
	assert.Empty(t, empty.Lines)
	assert.True(t, amount(t, empty.TotalPrice).IsZero())

	rec = c.do(http.MethodDelete, "/cart/clear-cart", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = c.do(http.MethodPut, "/cart/update-cart", ItemRequestDTO{ProductID: "p1", Quantity: 1, Size: "M", Color: "Red"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// add twice, merge into one line
	rec = c.do(http.MethodPost, "/cart/add-to-cart", ItemRequestDTO{ProductID: "p1", Quantity: 2, Size: "M", Color: "Red"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = c.do(http.MethodPost, "/cart/add-to-cart", ItemRequestDTO{ProductID: "p1", Quantity: 1, Size: "M", Color: "Red"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = c.do(http.MethodGet, "/cart/get-cart", nil)
	cart := decodeBody[GetCartResponse](t, rec)
	assert.Empty(t, cart.Message)
	require.Len(t, cart.Lines, 1)
	assert.Equal(t, 3, cart.Lines[0].Quantity)
	assert.Equal(t, "Linen Shirt", cart.Lines[0].DisplayName)
	assert.True(t, decimal.NewFromInt(30).Equal(amount(t, cart.TotalPrice)))
	assert.Equal(t, 3, cart.TotalQuantity)

	// stock is checked before anything is written
	rec = c.do(http.MethodPost, "/cart/add-to-cart", ItemRequestDTO{ProductID: "p1", Quantity: 6, Size: "M", Color: "Red"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Only 5 items available in stock", decodeBody[ErrorResponse](t, rec).Message)

	rec = c.do(http.MethodPost, "/cart/add-to-cart", ItemRequestDTO{ProductID: "missing", Quantity: 1, Size: "M", Color: "Red"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = c.do(http.MethodPut, "/cart/update-cart", ItemRequestDTO{ProductID: "p1", Quantity: 1, Size: "M", Color: "Red"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = c.do(http.MethodGet, "/cart/get-cart", nil)
	cart = decodeBody[GetCartResponse](t, rec)
	require.Len(t, cart.Lines, 1)
	assert.Equal(t, 1, cart.Lines[0].Quantity)
	assert.True(t, decimal.NewFromInt(10).Equal(amount(t, cart.TotalPrice)))

	rec = c.do(http.MethodDelete, "/cart/delete-cart/not-a-line", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = c.do(http.MethodDelete, "/cart/delete-cart/"+cart.Lines[0].ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	removed := decodeBody[CartChangeResponse](t, rec)
	assert.True(t, removed.Success)
	assert.Equal(t, "Item removed from cart", removed.Message)
	assert.Empty(t, removed.Data.Cart.Lines)
	assert.Equal(t, 0, removed.Data.Summary.TotalItems)
	assert.Equal(t, 0, removed.Data.Summary.TotalQuantity)
	assert.True(t, amount(t, removed.Data.Summary.TotalPrice).IsZero())

	// the emptied cart is still stored
	rec = c.do(http.MethodDelete, "/cart/clear-cart", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cleared := decodeBody[CartChangeResponse](t, rec)
	assert.Equal(t, "Cart cleared successfully", cleared.Message)
	assert.Equal(t, SummaryDTO{TotalItems: 0, TotalQuantity: 0, TotalPrice: "0.00"}, cleared.Data.Summary)

	// other users are unaffected
	other := newClient(t, router, "user-2")
	rec = other.do(http.MethodGet, "/cart/get-cart", nil)
	assert.Equal(t, "Cart not found", decodeBody[GetCartResponse](t, rec).Message)
}
