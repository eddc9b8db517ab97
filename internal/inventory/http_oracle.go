package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fjod/go_cart/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	breakerFailureThreshold = 5
	breakerOpenTimeout      = 30 * time.Second
	maxResponseSize         = 1 << 20
)

// ErrCatalogUnavailable is returned while the circuit to the catalog is open.
var ErrCatalogUnavailable = errors.New("catalog service unavailable")

// catalogProduct is the product document served by the catalog API.
type catalogProduct struct {
	ID        string          `json:"_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Stock     int             `json:"stock"`
	IsActive  *bool           `json:"isActive"`
	IsDeleted bool            `json:"isDeleted"`
	Images    []catalogImage  `json:"images"`
}

type catalogImage struct {
	URL       string `json:"url"`
	IsPrimary bool   `json:"isPrimary"`
}

type catalogResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    *catalogProduct `json:"data"`
}

// HTTPOracle reads products from the catalog service over HTTP. Calls go
// through a circuit breaker; a product that does not exist is an answer,
// not a failure, and never trips it. Catalog ids are ObjectIDs, so any
// other id is not found without asking the catalog.
type HTTPOracle struct {
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[domain.Product]
}

func NewHTTPOracle(baseURL string, client *http.Client, logger *slog.Logger) *HTTPOracle {
	if client == nil {
		client = http.DefaultClient
	}
	settings := gobreaker.Settings{
		Name:    "catalog",
		Timeout: breakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerFailureThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, domain.ErrProductNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	}
	return &HTTPOracle{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		breaker: gobreaker.NewCircuitBreaker[domain.Product](settings),
	}
}

func (o *HTTPOracle) GetProduct(ctx context.Context, productID string) (domain.Product, error) {
	if !primitive.IsValidObjectID(productID) {
		return domain.Product{}, domain.ErrProductNotFound
	}

	p, err := o.breaker.Execute(func() (domain.Product, error) {
		return o.fetch(ctx, productID)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return domain.Product{}, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	return p, err
}

func (o *HTTPOracle) fetch(ctx context.Context, productID string) (domain.Product, error) {
	endpoint := o.baseURL + "/" + url.PathEscape(productID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.Product{}, fmt.Errorf("build catalog request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return domain.Product{}, fmt.Errorf("catalog request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusBadRequest:
		return domain.Product{}, domain.ErrProductNotFound
	case resp.StatusCode != http.StatusOK:
		return domain.Product{}, fmt.Errorf("catalog returned status %d", resp.StatusCode)
	}

	var body catalogResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&body); err != nil {
		return domain.Product{}, fmt.Errorf("decode catalog response: %w", err)
	}
	if body.Data == nil {
		return domain.Product{}, domain.ErrProductNotFound
	}

	return body.Data.toDomain(productID), nil
}

func (p catalogProduct) toDomain(requestedID string) domain.Product {
	id := p.ID
	if id == "" {
		id = requestedID
	}
	return domain.Product{
		ID:        id,
		Name:      p.Name,
		Image:     primaryImage(p.Images),
		Price:     p.Price,
		Stock:     p.Stock,
		IsActive:  p.IsActive == nil || *p.IsActive,
		IsDeleted: p.IsDeleted,
	}
}

func primaryImage(images []catalogImage) string {
	for _, img := range images {
		if img.IsPrimary {
			return img.URL
		}
	}
	if len(images) > 0 {
		return images[0].URL
	}
	return ""
}
