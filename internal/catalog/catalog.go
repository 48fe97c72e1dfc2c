package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/Harry808275/evertrust23-sub000/internal/consul"

	consulapi "github.com/hashicorp/consul/api"
)

// Product is the catalog's authoritative view of one product: the price
// the checkout must charge, current availability and the category used
// by coupon applicability rules.
type Product struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Price     int64  `json:"price"` // minor units
	Stock     int    `json:"stock"`
	Category  string `json:"category"`
	ImageRef  string `json:"image_ref"`
}

// Lookup resolves a product reference to its catalog record.
type Lookup interface {
	GetProduct(ctx context.Context, productRef string) (Product, error)
}

// Client fetches products from the product service, discovered via consul.
type Client struct {
	consul *consulapi.Client
}

func NewClient(consulClient *consulapi.Client) (*Client, error) {
	if consulClient == nil {
		return nil, fmt.Errorf("consul client is nil")
	}
	return &Client{consul: consulClient}, nil
}

func (cl *Client) GetProduct(ctx context.Context, productRef string) (Product, error) {
	address, port, err := consul.GetServiceAddress(cl.consul, "products")
	if err != nil {
		return Product{}, fmt.Errorf("product service unavailable: %w", err)
	}

	productURL := fmt.Sprintf("http://%s:%d/products/stock/%s", address, port, productRef)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, productURL, nil)
	if err != nil {
		return Product{}, fmt.Errorf("error creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return Product{}, fmt.Errorf("error fetching product %s: %w", productRef, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Product{}, fmt.Errorf("error fetching product %s: %s", productRef, resp.Status)
	}

	var product Product
	if err := json.NewDecoder(resp.Body).Decode(&product); err != nil {
		return Product{}, fmt.Errorf("error decoding product response: %w", err)
	}

	return product, nil
}
