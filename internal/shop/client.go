// Package shop provides typed read-only access to the external shop's admin
// API: the orders placed by a customer email, the product titles they
// contain, and the customer's purchase totals.
package shop

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/RAFOUgg/LaFoncedalleBot-sub000/internal/config"
)

// maxOrders caps how many orders one lookup fetches from the shop.
const maxOrders = 250

// ExcludedKeywords are dropped from the ratable product set: social-media
// add-on SKUs and non-consumable accessories. Matching is case-insensitive
// substring on the line-item title.
var ExcludedKeywords = []string{"telegram", "instagram", "tiktok", "briquet", "feuille"}

var (
	// ErrInvalidCredential indicates the shop rejected the admin token.
	ErrInvalidCredential = errors.New("shop rejected credentials")
)

// shopRequests counts outbound shop API calls by outcome ("ok" / "error").
var shopRequests = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "shop_requests_total",
		Help: "Total number of outbound shop API requests.",
	},
	[]string{"outcome"},
)

func init() {
	prometheus.MustRegister(shopRequests)
}

// LineItem is one purchased product line within an order.
type LineItem struct {
	Title    string `json:"title"`
	Quantity int    `json:"quantity"`
}

// Order is the subset of a shop order the facade cares about.
type Order struct {
	Name       string     `json:"name"`
	CreatedAt  time.Time  `json:"created_at"`
	TotalPrice string     `json:"total_price"`
	LineItems  []LineItem `json:"line_items"`
}

// Purchases summarizes a customer's order history: the deduplicated ratable
// product titles, the order count, and the decimal sum of order totals.
type Purchases struct {
	Products      []string        `json:"products"`
	PurchaseCount int             `json:"purchase_count"`
	TotalSpent    decimal.Decimal `json:"total_spent"`
}

// Client provides typed access to the shop admin API.
type Client struct {
	baseURL    string
	token      string
	apiVersion string
	http       *http.Client
}

// New builds a shop client. The HTTP client carries the configured timeout;
// callers may shorten it further per call via ctx.
func New(cfg config.ShopConfig) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		token:      cfg.Token,
		apiVersion: cfg.APIVersion,
		http:       &http.Client{Timeout: cfg.Timeout},
	}
}

// OrdersByEmail fetches up to 250 orders placed by email, newest first,
// with any fulfillment status.
func (c *Client) OrdersByEmail(ctx context.Context, email string) ([]Order, error) {
	q := url.Values{}
	q.Set("email", email)
	q.Set("status", "any")
	q.Set("limit", fmt.Sprintf("%d", maxOrders))

	endpoint := fmt.Sprintf("%s/admin/api/%s/orders.json?%s", c.baseURL, c.apiVersion, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Shopify-Access-Token", c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		shopRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("shop request failed: %w", err)
	}
	// Always drain and release the connection, whatever the status.
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		shopRequests.WithLabelValues("error").Inc()
		return nil, ErrInvalidCredential
	case resp.StatusCode != http.StatusOK:
		shopRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("shop returned status %d", resp.StatusCode)
	}

	var envelope struct {
		Orders []Order `json:"orders"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		shopRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("decode shop response: %w", err)
	}

	shopRequests.WithLabelValues("ok").Inc()
	return envelope.Orders, nil
}

// PurchasesByEmail aggregates a customer's order history into the ratable
// product set, the order count, and the total spent.
func (c *Client) PurchasesByEmail(ctx context.Context, email string) (*Purchases, error) {
	orders, err := c.OrdersByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	seen := map[string]string{} // lowercase title -> preserved casing
	total := decimal.Zero
	for _, o := range orders {
		if amt, err := decimal.NewFromString(o.TotalPrice); err == nil {
			total = total.Add(amt)
		}
		for _, li := range o.LineItems {
			title := strings.TrimSpace(li.Title)
			if title == "" || isExcluded(title) {
				continue
			}
			key := strings.ToLower(title)
			if _, ok := seen[key]; !ok {
				seen[key] = title
			}
		}
	}

	products := make([]string, 0, len(seen))
	for _, title := range seen {
		products = append(products, title)
	}
	sort.Strings(products)

	return &Purchases{
		Products:      products,
		PurchaseCount: len(orders),
		TotalSpent:    total,
	}, nil
}

// LastOrderByEmail returns the customer's most recent order, or nil when
// they have none.
func (c *Client) LastOrderByEmail(ctx context.Context, email string) (*Order, error) {
	orders, err := c.OrdersByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, nil
	}
	last := orders[0]
	for _, o := range orders[1:] {
		if o.CreatedAt.After(last.CreatedAt) {
			last = o
		}
	}
	return &last, nil
}

// isExcluded reports whether a line-item title matches one of the excluded
// keywords.
func isExcluded(title string) bool {
	low := strings.ToLower(title)
	for _, kw := range ExcludedKeywords {
		if strings.Contains(low, kw) {
			return true
		}
	}
	return false
}
